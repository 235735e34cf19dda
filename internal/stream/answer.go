package stream

import (
	"fmt"
	"strings"
)

const (
	PlaceholderText = "Generating answer..."
	NoResponseText  = "No response received."
	// FailureText is shown when the request itself failed.
	FailureText = "No response received. Please try again."
	ErrorText   = "The server reported an error."
)

// Answer is the assistant message filled in as events arrive. Rendered text
// only ever grows while tokens stream in.
type Answer struct {
	text        strings.Builder
	started     bool
	errMsg      string
	failed      bool
	noResponse  bool
	finished    bool
	references  []Reference
	annotations []string
}

// NewAnswer returns an answer showing the placeholder.
func NewAnswer() *Answer {
	return &Answer{}
}

// Apply folds one event into the answer.
func (a *Answer) Apply(ev Event) {
	switch ev.Kind {
	case KindToken:
		a.started = true
		a.text.WriteString(ev.Text)
	case KindReferences:
		a.references = append(a.references, ev.References...)
	case KindDone:
		if strings.TrimSpace(ev.Text) != "" {
			a.annotations = append(a.annotations, ev.Text)
		}
	case KindError:
		a.failed = true
		a.errMsg = ev.Text
		if strings.TrimSpace(a.errMsg) == "" {
			a.errMsg = ErrorText
		}
	}
}

// Finish marks the end of the stream. With no token and no error the
// fallback text is shown.
func (a *Answer) Finish() {
	a.finished = true
	if !a.started && !a.failed {
		a.noResponse = true
	}
}

// Fail records a transport failure and ends the answer.
func (a *Answer) Fail(msg string) {
	if msg == "" {
		msg = FailureText
	}
	a.failed = true
	a.errMsg = msg
	a.finished = true
}

// Pending reports whether the placeholder is still showing.
func (a *Answer) Pending() bool {
	return !a.started && !a.failed && !a.noResponse
}

func (a *Answer) Started() bool { return a.started }

func (a *Answer) Finished() bool { return a.finished }

// Text is the accumulated token text.
func (a *Answer) Text() string { return a.text.String() }

// Err is the error message shown in the bubble, if any.
func (a *Answer) Err() string { return a.errMsg }

// NoResponse reports whether the stream ended without content.
func (a *Answer) NoResponse() bool { return a.noResponse }

func (a *Answer) References() []Reference {
	return append([]Reference(nil), a.references...)
}

func (a *Answer) Annotations() []string {
	return append([]string(nil), a.annotations...)
}

// Render produces the plain-text bubble. A partial answer stays visible when
// an error arrives after it; the error is shown beneath.
func (a *Answer) Render() string {
	var b strings.Builder
	switch {
	case a.Pending():
		b.WriteString(PlaceholderText)
	case a.noResponse:
		b.WriteString(NoResponseText)
	default:
		b.WriteString(a.text.String())
		if a.failed {
			if a.started {
				b.WriteString("\n\n")
			}
			b.WriteString("Error: " + a.errMsg)
		}
	}

	if len(a.references) > 0 {
		fmt.Fprintf(&b, "\n\nReferences (%d):", len(a.references))
		for _, ref := range a.references {
			b.WriteString("\n  - " + FormatReference(ref))
		}
	}
	for _, note := range a.annotations {
		b.WriteString("\n\n" + note)
	}
	return b.String()
}

// FormatReference renders "name version [category]".
func FormatReference(ref Reference) string {
	out := ref.OriginalFileName
	if ref.FileVersion != "" {
		out += " " + ref.FileVersion
	}
	if ref.FileCategory != "" {
		out += " [" + ref.FileCategory + "]"
	}
	return out
}
