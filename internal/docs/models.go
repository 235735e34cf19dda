// Package docs holds the in-memory document version model: groups, the
// versioned files inside them, and the per-view cache and service used to
// browse and change them.
package docs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Group is a stable identity for a document across its version history.
type Group struct {
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
	Category  string `json:"category"`
}

// FileRecord represents one uploaded version of a file.
type FileRecord struct {
	FileID           int64      `json:"fileId"`
	GroupID          int64      `json:"groupId"`
	GroupName        string     `json:"groupName,omitempty"`
	FileName         string     `json:"fileName"`
	OriginalFileName string     `json:"originalFileName,omitempty"`
	FileExtension    string     `json:"fileExtension"`
	FileVersion      Version    `json:"fileVersion"`
	FileCategory     string     `json:"fileCategory"`
	DownloadURL      string     `json:"downloadUrl,omitempty"`
	UploadedAt       Timestamp  `json:"uploadedAt"`
	UpdatedAt        *Timestamp `json:"updatedAt"`
	FileCount        int        `json:"fileCount,omitempty"`
}

// Edited reports whether the record carries an update time worth showing.
// The backend sets updatedAt equal to uploadedAt when nothing was edited.
func (f FileRecord) Edited() bool {
	return f.UpdatedAt != nil && !f.UpdatedAt.IsZero() && !f.UpdatedAt.Equal(f.UploadedAt.Time)
}

// DisplayName prefers the original upload name.
func (f FileRecord) DisplayName() string {
	if f.OriginalFileName != "" {
		return f.OriginalFileName
	}
	return f.FileName
}

// Timestamp decodes the backend's zone-less LocalDateTime as well as RFC3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format("2006-01-02T15:04:05"))
}

// String renders the timestamp the way listings show it, "-" when unset.
func (t Timestamp) String() string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

// Page is one page of the file listing.
type Page struct {
	Content       []FileRecord
	Number        int
	Size          int
	TotalElements int64
	TotalPages    int
}

// UnmarshalJSON accepts both the "page" key of the project's PageResponse
// and the "number" key of a raw Spring page.
func (p *Page) UnmarshalJSON(data []byte) error {
	var raw struct {
		Content       []FileRecord `json:"content"`
		Page          *int         `json:"page"`
		Number        *int         `json:"number"`
		Size          int          `json:"size"`
		TotalElements int64        `json:"totalElements"`
		TotalPages    int          `json:"totalPages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Content = raw.Content
	p.Size = raw.Size
	p.TotalElements = raw.TotalElements
	p.TotalPages = raw.TotalPages
	switch {
	case raw.Page != nil:
		p.Number = *raw.Page
	case raw.Number != nil:
		p.Number = *raw.Number
	default:
		p.Number = 0
	}
	return nil
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool {
	return p.Number > 0
}

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool {
	return p.Number < p.TotalPages-1
}
