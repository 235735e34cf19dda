// Package notify surfaces short user-facing messages, the terminal
// equivalent of the web client's toasts.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier displays a message to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// Console prints colored notifications to a writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var paint func(format string, a ...interface{}) string
	switch level {
	case LevelSuccess:
		paint = color.New(color.FgGreen).SprintfFunc()
	case LevelError:
		paint = color.New(color.FgRed, color.Bold).SprintfFunc()
	default:
		paint = color.New(color.FgYellow).SprintfFunc()
	}
	fmt.Fprintln(c.out, paint("%s", message))
}

// Entry is one recorded notification.
type Entry struct {
	Level   Level
	Message string
}

// Recorder keeps notifications in memory. The TUI reads the latest one for
// its status line.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last returns the most recent entry.
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}
