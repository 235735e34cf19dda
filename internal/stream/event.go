// Package stream decodes the chat response protocol: records made of an
// "event:" line and one or more "data:" lines, separated by blank lines.
package stream

import "errors"

// Kind tags an Event.
type Kind int

const (
	KindToken Kind = iota + 1
	KindReferences
	KindDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindReferences:
		return "references"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Event is one decoded data line.
type Event struct {
	Kind Kind
	// Text is the token text, the done annotation or the error message.
	Text       string
	References []Reference
}

// Reference is a source passage the answer was grounded on.
type Reference struct {
	OriginalFileName string `json:"originalFileName"`
	FileVersion      string `json:"fileVersion"`
	FileCategory     string `json:"fileCategory"`
	ChunkText        string `json:"chunkText,omitempty"`
}

// ErrMalformedReferences is reported to Decoder.OnMalformed when a
// references payload is not a JSON array of references. The record is
// skipped and decoding continues.
var ErrMalformedReferences = errors.New("malformed references payload")
