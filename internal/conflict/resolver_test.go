package conflict

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/docchat/cli/internal/api"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedConfirmer struct {
	answer  bool
	prompts []string
}

func (c *scriptedConfirmer) Confirm(prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

type recordingNavigator struct {
	opened []int64
	err    error
}

func (n *recordingNavigator) OpenFile(ctx context.Context, fileID int64) error {
	n.opened = append(n.opened, fileID)
	return n.err
}

func newResolver(answer bool) (*Resolver, *scriptedConfirmer, *recordingNavigator, *notify.Recorder, *docs.ViewCache) {
	c := &scriptedConfirmer{answer: answer}
	n := &recordingNavigator{}
	rec := &notify.Recorder{}
	cache := docs.NewViewCache(0)
	return NewResolver(c, n, cache, rec, logger.NewNop()), c, n, rec, cache
}

// wrapped the way docs.Service returns it
func createErr(err error) error {
	return fmt.Errorf("failed to create file: %w", err)
}

func TestResolve_DuplicateContentAccepted(t *testing.T) {
	r, confirm, nav, _, _ := newResolver(true)
	err := createErr(&api.ConflictError{
		Code:              api.CodeDuplicateContent,
		DuplicateFileID:   42,
		DuplicateFileName: "x.pdf",
		DuplicateVersion:  "1.0.0",
	})

	res := r.Resolve(context.Background(), err)

	assert.Equal(t, Navigated, res.Outcome)
	assert.True(t, res.DiscardForm)
	assert.Equal(t, int64(42), res.FileID)
	assert.Equal(t, []int64{42}, nav.opened)
	require.Len(t, confirm.prompts, 1)
	assert.Contains(t, confirm.prompts[0], "x.pdf (v1.0.0)")
}

func TestResolve_DuplicateContentDeclinedKeepsForm(t *testing.T) {
	r, _, nav, _, _ := newResolver(false)
	res := r.Resolve(context.Background(), &api.ConflictError{Code: api.CodeDuplicateContent, DuplicateFileID: 42})

	assert.Equal(t, Declined, res.Outcome)
	assert.False(t, res.DiscardForm)
	assert.Empty(t, nav.opened)
}

func TestResolve_DuplicateContentFillsFromCache(t *testing.T) {
	r, confirm, _, _, cache := newResolver(false)
	cache.Put(docs.FileRecord{FileID: 42, OriginalFileName: "manual.pdf", FileVersion: docs.Version{Major: 2}})

	r.Resolve(context.Background(), &api.ConflictError{Code: api.CodeDuplicateContent, DuplicateFileID: 42})

	require.Len(t, confirm.prompts, 1)
	assert.Contains(t, confirm.prompts[0], "manual.pdf (v2.0.0)")
}

func TestResolve_NavigationFailureKeepsForm(t *testing.T) {
	r, _, nav, rec, _ := newResolver(true)
	nav.err = &api.StatusError{StatusCode: 404, Message: "file not found"}

	res := r.Resolve(context.Background(), &api.ConflictError{Code: api.CodeDuplicateContent, DuplicateFileID: 42})

	assert.Equal(t, Failed, res.Outcome)
	assert.False(t, res.DiscardForm)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, last.Level)
	assert.Contains(t, last.Message, "file not found")
}

func TestResolve_TerminalConflicts(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{api.CodeDuplicateGroup, "group with this name already exists"},
		{api.CodeDuplicateName, "new version"},
		{api.CodeDuplicateVersion, "Version 1.2.0 already exists"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			r, confirm, nav, rec, _ := newResolver(true)
			res := r.Resolve(context.Background(), createErr(&api.ConflictError{Code: tc.code, DuplicateVersion: "1.2.0"}))

			assert.Equal(t, Rejected, res.Outcome)
			assert.False(t, res.DiscardForm)
			assert.Contains(t, res.Message, tc.want)
			assert.Empty(t, confirm.prompts)
			assert.Empty(t, nav.opened)

			last, _ := rec.Last()
			assert.Equal(t, res.Message, last.Message)
		})
	}
}

func TestResolve_UnknownCodeUsesServerMessage(t *testing.T) {
	r, _, _, _, _ := newResolver(true)
	res := r.Resolve(context.Background(), &api.ConflictError{Code: "DUPLICATE_OTHER_GROUP", Message: "이미 다른 그룹에 존재합니다"})
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "이미 다른 그룹에 존재합니다", res.Message)
}

func TestResolve_TransportFailure(t *testing.T) {
	r, _, _, rec, _ := newResolver(true)
	err := createErr(&api.TransportError{Op: "POST /api/files", Err: errors.New("dial tcp: connection refused")})

	res := r.Resolve(context.Background(), err)
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, "Request failed: server unreachable", res.Message)
	last, _ := rec.Last()
	assert.Equal(t, notify.LevelError, last.Level)
}

func TestResolve_NothingToChange(t *testing.T) {
	r, _, _, _, _ := newResolver(true)
	res := r.Resolve(context.Background(), docs.ErrNothingToChange)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "Nothing to change.", res.Message)
}
