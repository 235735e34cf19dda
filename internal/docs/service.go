package docs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docchat/cli/internal/logger"
)

// Attachment is a file body sent as the "file" multipart part.
type Attachment struct {
	Name    string
	Content io.Reader
}

// Backend is the remote file API the model reads from and mutates through.
type Backend interface {
	ListFiles(ctx context.Context, page, size int) (Page, error)
	GetFile(ctx context.Context, fileID int64) (FileRecord, error)
	GroupVersions(ctx context.Context, groupID int64) ([]FileRecord, error)
	PatchCategory(ctx context.Context, fileID int64, category string) (FileRecord, error)
	DeleteFile(ctx context.Context, fileID int64) error
	CreateFile(ctx context.Context, meta Metadata, file Attachment) (FileRecord, error)
	UploadVersion(ctx context.Context, fileID int64, meta Metadata, file Attachment) (FileRecord, error)
	EditFile(ctx context.Context, fileID int64, meta Metadata, file *Attachment) (FileRecord, error)
	ReplaceFile(ctx context.Context, fileID int64, file Attachment) (FileRecord, error)
	Download(ctx context.Context, fileID int64, w io.Writer) (int64, error)
}

// Service lists, inspects and mutates documents, keeping the current view's
// records in a ViewCache.
type Service struct {
	backend  Backend
	cache    *ViewCache
	pageSize int
	logger   *logger.Logger
}

// NewService creates a new document service
func NewService(backend Backend, cache *ViewCache, pageSize int, log *logger.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	if cache == nil {
		cache = NewViewCache(0)
	}
	return &Service{
		backend:  backend,
		cache:    cache,
		pageSize: pageSize,
		logger:   log.With("component", "docs"),
	}
}

// Cache exposes the current view's records.
func (s *Service) Cache() *ViewCache {
	return s.cache
}

// PageSize returns the listing page size.
func (s *Service) PageSize() int {
	return s.pageSize
}

// ListPage loads one page of the listing and makes it the current view.
func (s *Service) ListPage(ctx context.Context, page int) (Page, error) {
	if page < 0 {
		page = 0
	}
	p, err := s.backend.ListFiles(ctx, page, s.pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list files: %w", err)
	}
	s.cache.Reset()
	s.cache.Put(p.Content...)
	return p, nil
}

// Get fetches one record.
func (s *Service) Get(ctx context.Context, fileID int64) (FileRecord, error) {
	rec, err := s.backend.GetFile(ctx, fileID)
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to get file %d: %w", fileID, err)
	}
	s.cache.Put(rec)
	return rec, nil
}

// Detail opens the detail view for a file: the record and every version in
// its group, in the order the backend returned them.
func (s *Service) Detail(ctx context.Context, fileID int64) (FileRecord, []FileRecord, error) {
	rec, err := s.backend.GetFile(ctx, fileID)
	if err != nil {
		return FileRecord{}, nil, fmt.Errorf("failed to get file %d: %w", fileID, err)
	}
	versions, err := s.GroupVersions(ctx, rec.GroupID)
	if err != nil {
		return FileRecord{}, nil, err
	}
	s.cache.Reset()
	s.cache.Put(rec)
	s.cache.Put(versions...)
	return rec, versions, nil
}

// GroupVersions lists a group's versions. The order is the backend's.
func (s *Service) GroupVersions(ctx context.Context, groupID int64) ([]FileRecord, error) {
	versions, err := s.backend.GroupVersions(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of group %d: %w", groupID, err)
	}
	return versions, nil
}

// PatchCategory changes the category of a file.
func (s *Service) PatchCategory(ctx context.Context, fileID int64, category string) (FileRecord, error) {
	rec, err := s.backend.PatchCategory(ctx, fileID, category)
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to change category of file %d: %w", fileID, err)
	}
	s.cache.Put(rec)
	s.logger.Info("category changed", "fileId", fileID, "category", category)
	return rec, nil
}

// Delete removes a file.
func (s *Service) Delete(ctx context.Context, fileID int64) error {
	if err := s.backend.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file %d: %w", fileID, err)
	}
	s.cache.Delete(fileID)
	s.logger.Info("file deleted", "fileId", fileID)
	return nil
}

// Create uploads the first version of a new group.
func (s *Service) Create(ctx context.Context, form CreateForm) (FileRecord, error) {
	if err := form.Validate(); err != nil {
		return FileRecord{}, err
	}
	var rec FileRecord
	err := withAttachment(form.Path, func(att Attachment) error {
		var err error
		rec, err = s.backend.CreateFile(ctx, form.Metadata(), att)
		return err
	})
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to create file: %w", err)
	}
	s.logger.Info("file created", "fileId", rec.FileID, "group", form.GroupName, "version", form.Version.String())
	return rec, nil
}

// UploadVersion adds a new version to the group of fileID. The old record is
// left untouched.
func (s *Service) UploadVersion(ctx context.Context, fileID int64, form VersionForm) (FileRecord, error) {
	if err := form.Validate(); err != nil {
		return FileRecord{}, err
	}
	var rec FileRecord
	err := withAttachment(form.Path, func(att Attachment) error {
		var err error
		rec, err = s.backend.UploadVersion(ctx, fileID, form.Metadata(), att)
		return err
	})
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to upload new version: %w", err)
	}
	s.logger.Info("version uploaded", "fromFileId", fileID, "fileId", rec.FileID, "version", form.Version.String())
	return rec, nil
}

// Edit applies form to the loaded record. A form that changes nothing is
// rejected with ErrNothingToChange before any request is made.
func (s *Service) Edit(ctx context.Context, loaded FileRecord, form EditForm) (FileRecord, error) {
	if err := form.Diff(loaded); err != nil {
		return FileRecord{}, err
	}
	if err := form.Validate(); err != nil {
		return FileRecord{}, err
	}

	var rec FileRecord
	var err error
	if form.Path == "" {
		rec, err = s.backend.EditFile(ctx, loaded.FileID, form.Metadata(), nil)
	} else {
		err = withAttachment(form.Path, func(att Attachment) error {
			var err error
			rec, err = s.backend.EditFile(ctx, loaded.FileID, form.Metadata(), &att)
			return err
		})
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to edit file %d: %w", loaded.FileID, err)
	}
	s.cache.Put(rec)
	return rec, nil
}

// Replace swaps the content of a file without changing its metadata.
func (s *Service) Replace(ctx context.Context, fileID int64, path string) (FileRecord, error) {
	var rec FileRecord
	err := withAttachment(path, func(att Attachment) error {
		var err error
		rec, err = s.backend.ReplaceFile(ctx, fileID, att)
		return err
	})
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to replace file %d: %w", fileID, err)
	}
	s.cache.Put(rec)
	return rec, nil
}

// Download writes a file's content to dest.
func (s *Service) Download(ctx context.Context, fileID int64, dest string) (int64, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	n, err := s.backend.Download(ctx, fileID, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("failed to download file %d: %w", fileID, err)
	}
	return n, nil
}

func withAttachment(path string, fn func(Attachment) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return fn(Attachment{Name: filepath.Base(path), Content: f})
}
