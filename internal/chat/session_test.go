package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docchat/cli/internal/api"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/scope"
	"github.com/docchat/cli/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	requests []api.ChatRequest
	body     func() io.ReadCloser
	err      error
}

func (f *fakeTransport) Chat(ctx context.Context, req api.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.body(), nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func bodyOf(s string) func() io.ReadCloser {
	return func() io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }
}

type staticPayload struct {
	payload scope.Payload
	err     error
}

func (p staticPayload) Payload() (scope.Payload, error) { return p.payload, p.err }

var allLatest = staticPayload{payload: scope.Payload{Scope: scope.All, VersionPolicy: scope.Latest, Versions: []string{}}}

func TestSend_StreamsAnswerIntoTranscript(t *testing.T) {
	tr := &fakeTransport{body: bodyOf("event: token\ndata: Hel\n\nevent: token\ndata: lo\n\nevent: done\ndata: \n\n")}
	s := NewSession(tr, allLatest, "", logger.NewNop())

	var updates []Update
	s.OnUpdate(func(u Update) { updates = append(updates, u) })

	require.NoError(t, s.Send(context.Background(), "  hi there  "))

	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Text: "hi there", Rendered: "hi there"}, msgs[0])
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Rendered)
	assert.False(t, msgs[1].Pending)
	assert.False(t, s.Busy())

	require.NotEmpty(t, updates)
	assert.True(t, updates[len(updates)-1].Done)

	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, "hi there", req.Message)
	assert.Equal(t, s.ConversationID(), req.ConversationID)
	assert.Nil(t, req.SystemMessage)
	assert.Equal(t, "ALL", req.Scope)
	assert.Equal(t, "LATEST", req.VersionPolicy)
}

func TestSend_RequestCarriesScopeAndSystemMessage(t *testing.T) {
	tr := &fakeTransport{body: bodyOf("")}
	payloads := staticPayload{payload: scope.Payload{
		Scope: scope.Group, VersionPolicy: scope.Specific, FilterValue: "7", Versions: []string{"1.0.0"},
	}}
	s := NewSession(tr, payloads, " answer in Korean ", logger.NewNop())

	require.NoError(t, s.Send(context.Background(), "q"))

	req := tr.requests[0]
	require.NotNil(t, req.SystemMessage)
	assert.Equal(t, "answer in Korean", *req.SystemMessage)
	assert.Equal(t, "GROUP", req.Scope)
	assert.Equal(t, "SPECIFIC", req.VersionPolicy)
	assert.Equal(t, "7", req.FilterValue)
	assert.Equal(t, []string{"1.0.0"}, req.Versions)

	// an empty body falls back to the no-response text
	msgs := s.Transcript()
	assert.Equal(t, stream.NoResponseText, msgs[1].Rendered)
}

func TestSend_ValidationMakesNoRequest(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		payloads PayloadSource
		want     error
	}{
		{"empty message", "   ", allLatest, ErrEmptyMessage},
		{"category not chosen", "q", staticPayload{err: scope.ErrCategoryRequired}, scope.ErrCategoryRequired},
		{"version not chosen", "q", staticPayload{err: scope.ErrVersionRequired}, scope.ErrVersionRequired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := &fakeTransport{body: bodyOf("")}
			s := NewSession(tr, tc.payloads, "", logger.NewNop())

			err := s.Send(context.Background(), tc.text)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, tr.calls())
			assert.Empty(t, s.Transcript())
			assert.False(t, s.Busy())
		})
	}
}

func TestSend_CategoryScopeWithoutSelection(t *testing.T) {
	tr := &fakeTransport{body: bodyOf("")}
	m := scope.New(scope.Current, nopCatalog{}, logger.NewNop())
	require.NoError(t, m.SetScope(context.Background(), scope.Category))
	s := NewSession(tr, m, "", logger.NewNop())

	err := s.Send(context.Background(), "what changed?")
	assert.ErrorIs(t, err, scope.ErrCategoryRequired)
	assert.Equal(t, 0, tr.calls())
}

func TestSend_BusyGuard(t *testing.T) {
	pr, pw := io.Pipe()
	tr := &fakeTransport{body: func() io.ReadCloser { return pr }}
	s := NewSession(tr, allLatest, "", logger.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first") }()

	pw.Write([]byte("event: token\ndata: a\n\n"))
	require.Eventually(t, s.Busy, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Send(context.Background(), "second"), ErrBusy)
	assert.Equal(t, 1, tr.calls())

	pw.Close()
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Len(t, s.Transcript(), 2)
}

func TestSend_TransportFailureShowsErrorBubble(t *testing.T) {
	tr := &fakeTransport{err: &api.StatusError{StatusCode: 500}}
	s := NewSession(tr, allLatest, "", logger.NewNop())

	err := s.Send(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTransport)
	assert.False(t, s.Busy())

	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, stream.FailureText, msgs[1].Error)
	assert.Contains(t, msgs[1].Rendered, stream.FailureText)
}

type brokenBody struct{ r io.Reader }

func (b brokenBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, errors.New("connection reset")
	}
	return n, err
}

func (b brokenBody) Close() error { return nil }

func TestSend_BrokenStreamKeepsPartialAnswer(t *testing.T) {
	tr := &fakeTransport{body: func() io.ReadCloser {
		return brokenBody{strings.NewReader("event: token\ndata: partial\n\n")}
	}}
	s := NewSession(tr, allLatest, "", logger.NewNop())

	require.Error(t, s.Send(context.Background(), "q"))
	msgs := s.Transcript()
	assert.Equal(t, "partial", msgs[1].Text)
	assert.Equal(t, "partial\n\nError: "+stream.FailureText, msgs[1].Rendered)
}

func TestSend_StripsByteOrderMark(t *testing.T) {
	tr := &fakeTransport{body: bodyOf("\ufeffevent: token\ndata: 안녕\n\n")}
	s := NewSession(tr, allLatest, "", logger.NewNop())

	require.NoError(t, s.Send(context.Background(), "q"))
	assert.Equal(t, "안녕", s.Transcript()[1].Text)
}

func TestReset_DiscardsStaleStream(t *testing.T) {
	pr, pw := io.Pipe()
	tr := &fakeTransport{body: func() io.ReadCloser { return pr }}
	s := NewSession(tr, allLatest, "", logger.NewNop())
	oldID := s.ConversationID()

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "old question") }()

	pw.Write([]byte("event: token\ndata: stale\n\n"))
	require.Eventually(t, func() bool {
		msgs := s.Transcript()
		return len(msgs) == 2 && msgs[1].Text == "stale"
	}, time.Second, 5*time.Millisecond)

	s.Reset()
	assert.NotEqual(t, oldID, s.ConversationID())
	assert.Empty(t, s.Transcript())
	assert.False(t, s.Busy())

	pw.Write([]byte("event: token\ndata: more stale\n\n"))
	pw.Close()
	require.NoError(t, <-done)

	assert.Empty(t, s.Transcript())
	assert.False(t, s.Busy())
}

type nopCatalog struct{}

func (nopCatalog) Categories(context.Context) ([]string, error) { return nil, nil }
func (nopCatalog) FileNames(context.Context) ([]string, error)  { return nil, nil }
func (nopCatalog) Groups(context.Context) ([]docs.Group, error) { return nil, nil }
func (nopCatalog) VersionLabels(context.Context, scope.Scope, string) ([]string, error) {
	return nil, nil
}
