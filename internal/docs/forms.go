package docs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNothingToChange is returned by Edit when the form matches the loaded
// record, before any request is made.
var ErrNothingToChange = errors.New("nothing to change")

var validate = validator.New()

// CreateForm creates a new group holding its first version.
type CreateForm struct {
	GroupName string  `validate:"required"`
	Category  string  `validate:"required"`
	Version   Version `validate:"-"`
	Path      string  `validate:"required"`
}

// VersionForm uploads a new version into an existing group.
type VersionForm struct {
	Category string  `validate:"required"`
	Version  Version `validate:"-"`
	Path     string  `validate:"required"`
}

// EditForm changes a record in place. Path is optional.
type EditForm struct {
	Category string  `validate:"required"`
	Version  Version `validate:"-"`
	Path     string
}

// Metadata is the JSON "metadata" part of upload requests.
type Metadata struct {
	GroupName    string `json:"groupName,omitempty"`
	FileCategory string `json:"fileCategory"`
	MajorVersion int    `json:"majorVersion"`
	MinorVersion int    `json:"minorVersion"`
	PatchVersion int    `json:"patchVersion"`
}

func newMetadata(groupName, category string, v Version) Metadata {
	return Metadata{
		GroupName:    strings.TrimSpace(groupName),
		FileCategory: category,
		MajorVersion: v.Major,
		MinorVersion: v.Minor,
		PatchVersion: v.Patch,
	}
}

func (f CreateForm) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid create form: %w", err)
	}
	return nil
}

func (f CreateForm) Metadata() Metadata {
	return newMetadata(f.GroupName, f.Category, f.Version)
}

func (f VersionForm) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid version form: %w", err)
	}
	return nil
}

func (f VersionForm) Metadata() Metadata {
	return newMetadata("", f.Category, f.Version)
}

func (f EditForm) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid edit form: %w", err)
	}
	return nil
}

func (f EditForm) Metadata() Metadata {
	return newMetadata("", f.Category, f.Version)
}

// Diff returns ErrNothingToChange when applying the form to rec would be a
// no-op: same category, same version, and no replacement file.
func (f EditForm) Diff(rec FileRecord) error {
	if f.Path != "" {
		return nil
	}
	if f.Category == rec.FileCategory && f.Version.Compare(rec.FileVersion) == 0 {
		return ErrNothingToChange
	}
	return nil
}
