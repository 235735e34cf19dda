// Package conflict turns failed document mutations into user-facing
// outcomes, including the "open the existing copy instead" workflow for
// duplicate content.
package conflict

import (
	"context"
	"errors"
	"fmt"

	"github.com/docchat/cli/internal/api"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/notify"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Navigator opens a file's detail view.
type Navigator interface {
	OpenFile(ctx context.Context, fileID int64) error
}

// Outcome of resolving a failed mutation.
type Outcome int

const (
	// Navigated: the user chose to open the existing duplicate.
	Navigated Outcome = iota + 1
	// Declined: the user stayed on the form after a duplicate prompt.
	Declined
	// Rejected: a terminal message was shown; the form stays open.
	Rejected
	// Failed: the request did not get a structured answer.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Navigated:
		return "navigated"
	case Declined:
		return "declined"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Resolution is what the form should do next.
type Resolution struct {
	Outcome Outcome
	Message string
	// FileID is the duplicate's id when one was reported.
	FileID int64
	// DiscardForm is set only after navigating away.
	DiscardForm bool
}

// Resolver maps mutation errors to resolutions and reports them through a
// Notifier.
type Resolver struct {
	confirm  Confirmer
	navigate Navigator
	cache    *docs.ViewCache
	notifier notify.Notifier
	logger   *logger.Logger
}

// NewResolver creates a resolver. cache and notifier may be nil.
func NewResolver(confirm Confirmer, navigate Navigator, cache *docs.ViewCache, notifier notify.Notifier, log *logger.Logger) *Resolver {
	return &Resolver{
		confirm:  confirm,
		navigate: navigate,
		cache:    cache,
		notifier: notifier,
		logger:   log.With("component", "conflict"),
	}
}

// Resolve handles err from Create, UploadVersion, Edit or Replace.
func (r *Resolver) Resolve(ctx context.Context, err error) Resolution {
	var conflict *api.ConflictError
	switch {
	case errors.As(err, &conflict):
		return r.conflict(ctx, conflict)
	case errors.Is(err, docs.ErrNothingToChange):
		return r.report(Resolution{Outcome: Rejected, Message: "Nothing to change."}, notify.LevelInfo)
	case errors.Is(err, api.ErrTransport):
		r.logger.Warn("mutation failed", "error", err)
		return r.report(Resolution{Outcome: Failed, Message: "Request failed: " + shortReason(err)}, notify.LevelError)
	default:
		return r.report(Resolution{Outcome: Rejected, Message: err.Error()}, notify.LevelError)
	}
}

func (r *Resolver) conflict(ctx context.Context, c *api.ConflictError) Resolution {
	r.logger.Info("conflict", "code", c.Code, "duplicateFileId", int64(c.DuplicateFileID))

	switch c.Code {
	case api.CodeDuplicateContent:
		return r.duplicateContent(ctx, c)
	case api.CodeDuplicateGroup:
		return r.report(Resolution{
			Outcome: Rejected,
			Message: "A group with this name already exists. Choose another name or upload a new version into that group.",
		}, notify.LevelError)
	case api.CodeDuplicateName:
		return r.report(Resolution{
			Outcome: Rejected,
			Message: "A file with this name already exists. Upload it as a new version of that file instead.",
			FileID:  int64(c.DuplicateFileID),
		}, notify.LevelError)
	case api.CodeDuplicateVersion:
		msg := "This version already exists in the group. Pick another version number."
		if c.DuplicateVersion != "" {
			msg = fmt.Sprintf("Version %s already exists in the group. Pick another version number.", c.DuplicateVersion)
		}
		return r.report(Resolution{Outcome: Rejected, Message: msg}, notify.LevelError)
	}

	msg := c.Message
	if msg == "" {
		msg = "Conflict: " + c.Code
	}
	return r.report(Resolution{Outcome: Rejected, Message: msg, FileID: int64(c.DuplicateFileID)}, notify.LevelError)
}

func (r *Resolver) duplicateContent(ctx context.Context, c *api.ConflictError) Resolution {
	id := int64(c.DuplicateFileID)
	name, version := c.DuplicateFileName, c.DuplicateVersion
	if r.cache != nil && id != 0 && (name == "" || version == "") {
		if rec, ok := r.cache.Get(id); ok {
			if name == "" {
				name = rec.DisplayName()
			}
			if version == "" {
				version = rec.FileVersion.String()
			}
		}
	}

	if id == 0 {
		return r.report(Resolution{Outcome: Rejected, Message: "An identical file already exists."}, notify.LevelError)
	}

	label := name
	if label == "" {
		label = fmt.Sprintf("file #%d", id)
	}
	if version != "" {
		label += " (v" + version + ")"
	}
	prompt := fmt.Sprintf("An identical file already exists: %s.\nOpen it instead?", label)

	if !r.confirm.Confirm(prompt) {
		return r.report(Resolution{Outcome: Declined, Message: "Kept the form open.", FileID: id}, notify.LevelInfo)
	}
	if err := r.navigate.OpenFile(ctx, id); err != nil {
		r.logger.Warn("failed to open duplicate", "fileId", id, "error", err)
		return r.report(Resolution{
			Outcome: Failed,
			Message: fmt.Sprintf("Could not open file #%d: %s", id, shortReason(err)),
			FileID:  id,
		}, notify.LevelError)
	}
	return r.report(Resolution{
		Outcome:     Navigated,
		Message:     "Opened the existing file " + label + ".",
		FileID:      id,
		DiscardForm: true,
	}, notify.LevelInfo)
}

func (r *Resolver) report(res Resolution, level notify.Level) Resolution {
	if r.notifier != nil {
		r.notifier.Notify(level, res.Message)
	}
	return res
}

// shortReason keeps notifications to one clause: the server message or
// status when there is one, the error text otherwise.
func shortReason(err error) string {
	var status *api.StatusError
	if errors.As(err, &status) {
		if status.Message != "" {
			return status.Message
		}
		return fmt.Sprintf("server returned %d", status.StatusCode)
	}
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return "server unreachable"
	}
	return err.Error()
}
