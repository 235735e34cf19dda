// Package chat runs question/answer exchanges against the chat endpoint and
// keeps the transcript of the current conversation.
package chat

import (
	"github.com/docchat/cli/internal/stream"
)

// Role of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a transcript entry as seen by a renderer.
type Message struct {
	Role Role
	// Text is the user's input, or the answer's accumulated token text.
	Text string
	// Rendered is the full bubble, placeholder and fallbacks included.
	Rendered    string
	Pending     bool
	Error       string
	References  []stream.Reference
	Annotations []string
}

// Conversation is a snapshot of the active conversation.
type Conversation struct {
	ID       string
	Messages []Message
}

// entry is the mutable form of a Message. User entries never change after
// they are appended; an assistant entry changes only through its answer.
type entry struct {
	role   Role
	text   string
	answer *stream.Answer
}

func (e *entry) snapshot() Message {
	if e.role == RoleUser {
		return Message{Role: RoleUser, Text: e.text, Rendered: e.text}
	}
	return Message{
		Role:        RoleAssistant,
		Text:        e.answer.Text(),
		Rendered:    e.answer.Render(),
		Pending:     e.answer.Pending(),
		Error:       e.answer.Err(),
		References:  e.answer.References(),
		Annotations: e.answer.Annotations(),
	}
}
