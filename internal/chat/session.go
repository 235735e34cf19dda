package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/docchat/cli/internal/api"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/scope"
	"github.com/docchat/cli/internal/stream"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("an answer is still streaming")
)

// Transport opens a chat stream.
type Transport interface {
	Chat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error)
}

// PayloadSource supplies the validated scope of the next request.
// *scope.Machine implements it.
type PayloadSource interface {
	Payload() (scope.Payload, error)
}

// Update tells the renderer that the transcript changed.
type Update struct {
	ConversationID string
	// Done is set once the in-flight exchange has ended.
	Done bool
}

// UpdateFunc receives updates. It is called without the session lock held
// and may call back into the session.
type UpdateFunc func(Update)

// Session owns one conversation at a time and at most one in-flight
// exchange. Each exchange is bound to a flight number; once Reset starts a
// new conversation, events from the old flight are dropped.
type Session struct {
	transport     Transport
	payloads      PayloadSource
	systemMessage string
	logger        *logger.Logger
	onUpdate      UpdateFunc

	mu      sync.Mutex
	id      string
	entries []*entry
	flight  uint64 // 0 when idle
	flights uint64
	cancel  context.CancelFunc
}

// NewSession creates a session with a fresh conversation id.
func NewSession(transport Transport, payloads PayloadSource, systemMessage string, log *logger.Logger) *Session {
	return &Session{
		transport:     transport,
		payloads:      payloads,
		systemMessage: systemMessage,
		logger:        log.With("component", "chat"),
		id:            uuid.NewString(),
	}
}

// OnUpdate registers the update callback. Call before the first Send.
func (s *Session) OnUpdate(fn UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// SetSystemMessage sets the optional instruction sent with each request.
func (s *Session) SetSystemMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemMessage = msg
}

func (s *Session) SystemMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemMessage
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Busy reports whether an exchange is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight != 0
}

// Transcript returns a snapshot of the messages.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.snapshot()
	}
	return out
}

// Conversation returns the id and transcript together.
func (s *Session) Conversation() Conversation {
	s.mu.Lock()
	id := s.id
	s.mu.Unlock()
	return Conversation{ID: id, Messages: s.Transcript()}
}

// Reset starts a new conversation: new id, empty transcript. An exchange
// still in flight is cancelled and whatever it produces afterwards is
// discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.flight = 0
	s.entries = nil
	s.id = uuid.NewString()
	id := s.id
	s.mu.Unlock()

	s.logger.Info("conversation reset", "conversationId", id)
	s.notify(Update{ConversationID: id, Done: true})
}

// Send asks a question and blocks until the answer stream ends. Validation
// failures return before any request is made and leave the transcript
// untouched. A transport failure is shown in the answer bubble and also
// returned.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.flight != 0 {
		s.mu.Unlock()
		return ErrBusy
	}
	payload, err := s.payloads.Payload()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	answer := stream.NewAnswer()
	s.entries = append(s.entries,
		&entry{role: RoleUser, text: text},
		&entry{role: RoleAssistant, answer: answer},
	)
	s.flights++
	flight := s.flights
	s.flight = flight
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	req := api.ChatRequest{
		Message:        text,
		ConversationID: s.id,
		Scope:          string(payload.Scope),
		VersionPolicy:  string(payload.VersionPolicy),
		FilterValue:    payload.FilterValue,
		Versions:       payload.Versions,
	}
	if msg := strings.TrimSpace(s.systemMessage); msg != "" {
		req.SystemMessage = &msg
	}
	id := s.id
	s.mu.Unlock()
	defer cancel()

	s.notify(Update{ConversationID: id})
	log := s.logger.With("conversationId", id, "flight", flight)

	body, err := s.transport.Chat(ctx, req)
	if err != nil {
		log.Warn("chat request failed", "error", err)
		s.end(flight, answer, stream.FailureText)
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer body.Close()

	events := 0
	dec := stream.NewDecoder(func(ev stream.Event) {
		events++
		s.apply(flight, answer, ev)
	})
	dec.OnMalformed = func(err error) {
		log.Warn("skipping references record", "error", err)
	}

	// the body is UTF-8; a BOM is dropped and invalid bytes become U+FFFD
	r := transform.NewReader(body, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	n, err := io.Copy(dec, r)
	dec.Close()

	if !s.current(flight) {
		log.Info("discarding stream of a reset conversation", "bytes", n, "events", events)
		return nil
	}
	if err != nil {
		log.Warn("chat stream broke", "bytes", n, "events", events, "error", err)
		s.end(flight, answer, stream.FailureText)
		return fmt.Errorf("failed to read answer: %w", err)
	}

	log.Debug("chat stream finished", "bytes", n, "events", events)
	s.end(flight, answer, "")
	return nil
}

func (s *Session) current(flight uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight == flight
}

func (s *Session) apply(flight uint64, answer *stream.Answer, ev stream.Event) {
	s.mu.Lock()
	if s.flight != flight {
		s.mu.Unlock()
		return
	}
	answer.Apply(ev)
	id := s.id
	s.mu.Unlock()

	s.notify(Update{ConversationID: id})
}

// end finishes the answer of flight and clears the busy flag. failure, if
// set, is shown as a transport error.
func (s *Session) end(flight uint64, answer *stream.Answer, failure string) {
	s.mu.Lock()
	if s.flight != flight {
		s.mu.Unlock()
		return
	}
	if failure != "" {
		answer.Fail(failure)
	} else {
		answer.Finish()
	}
	s.flight = 0
	s.cancel = nil
	id := s.id
	s.mu.Unlock()

	s.notify(Update{ConversationID: id, Done: true})
}

func (s *Session) notify(u Update) {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}
