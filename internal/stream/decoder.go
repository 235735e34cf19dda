package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Decoder turns arbitrarily split chunks of the response body into Events.
// It implements io.Writer so a body can be fed with io.Copy; Close flushes
// a trailing line that had no newline and any record still open.
//
// The pending event tag lives until a blank line ends the record or a new
// "event:" line replaces it, so a record may carry several data lines,
// joined with "\n". Token lines are dispatched as they arrive, extra lines
// with a leading "\n"; references, done and error records are dispatched
// whole when the record ends.
type Decoder struct {
	emit func(Event)
	// OnMalformed, if set, receives ErrMalformedReferences wrapped with the
	// parse error.
	OnMalformed func(error)

	buf       []byte
	tag       string
	dataLines int
	pending   []string
}

// NewDecoder creates a decoder dispatching to emit.
func NewDecoder(emit func(Event)) *Decoder {
	return &Decoder{emit: emit}
}

// Write consumes a chunk. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		d.line(string(d.buf[start : start+i]))
		start += i + 1
	}
	d.buf = append(d.buf[:0], d.buf[start:]...)
	return len(p), nil
}

// Close processes any buffered partial line and ends the open record.
func (d *Decoder) Close() error {
	if len(d.buf) > 0 {
		rest := string(d.buf)
		d.buf = d.buf[:0]
		d.line(rest)
	}
	d.endRecord()
	d.tag = ""
	return nil
}

func (d *Decoder) line(line string) {
	line = strings.TrimSuffix(line, "\r")

	switch {
	case line == "":
		d.endRecord()
		d.tag = ""
	case strings.HasPrefix(line, "event:"):
		d.endRecord()
		d.tag = strings.TrimSpace(line[len("event:"):])
	case strings.HasPrefix(line, "data:"):
		d.data(strings.TrimPrefix(line[len("data:"):], " "))
	}
	// id:, retry: and ":" comment lines are ignored
}

func (d *Decoder) data(payload string) {
	switch d.tag {
	case "token":
		if d.dataLines > 0 {
			payload = "\n" + payload
		}
		d.emit(Event{Kind: KindToken, Text: payload})
	case "references", "done", "error":
		d.pending = append(d.pending, payload)
	default:
		return
	}
	d.dataLines++
}

// endRecord dispatches a buffered record and resets per-record state.
func (d *Decoder) endRecord() {
	d.dataLines = 0
	if len(d.pending) == 0 {
		return
	}
	payload := strings.Join(d.pending, "\n")
	d.pending = d.pending[:0]

	switch d.tag {
	case "references":
		var refs []Reference
		if err := json.Unmarshal([]byte(payload), &refs); err != nil {
			if d.OnMalformed != nil {
				d.OnMalformed(fmt.Errorf("%w: %v", ErrMalformedReferences, err))
			}
			return
		}
		d.emit(Event{Kind: KindReferences, References: refs})
	case "done":
		d.emit(Event{Kind: KindDone, Text: payload})
	case "error":
		d.emit(Event{Kind: KindError, Text: payload})
	}
}
