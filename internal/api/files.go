package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/docchat/cli/internal/docs"
)

// ListFiles fetches one page of the file listing.
func (c *Client) ListFiles(ctx context.Context, page, size int) (docs.Page, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))

	var p docs.Page
	if err := c.getJSON(ctx, "/api/files?"+q.Encode(), &p); err != nil {
		return docs.Page{}, err
	}
	return p, nil
}

// GetFile fetches one file's record.
func (c *Client) GetFile(ctx context.Context, fileID int64) (docs.FileRecord, error) {
	var rec docs.FileRecord
	if err := c.getJSON(ctx, fmt.Sprintf("/api/files/%d", fileID), &rec); err != nil {
		return docs.FileRecord{}, err
	}
	return rec, nil
}

// GroupVersions lists every version in a group, in server order.
func (c *Client) GroupVersions(ctx context.Context, groupID int64) ([]docs.FileRecord, error) {
	var recs []docs.FileRecord
	if err := c.getJSON(ctx, fmt.Sprintf("/api/files/groups/%d/versions", groupID), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// PatchCategory changes a file's category.
func (c *Client) PatchCategory(ctx context.Context, fileID int64, category string) (docs.FileRecord, error) {
	body := map[string]string{"fileCategory": category}
	var rec docs.FileRecord
	if err := c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/files/%d/category", fileID), body, &rec); err != nil {
		return docs.FileRecord{}, err
	}
	return rec, nil
}

// DeleteFile removes a file.
func (c *Client) DeleteFile(ctx context.Context, fileID int64) error {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/files/%d", fileID), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CreateFile creates a group with its first version.
func (c *Client) CreateFile(ctx context.Context, meta docs.Metadata, file docs.Attachment) (docs.FileRecord, error) {
	return c.multipart(ctx, http.MethodPost, "/api/files", &meta, &file)
}

// UploadVersion adds a version to the group of fileID.
func (c *Client) UploadVersion(ctx context.Context, fileID int64, meta docs.Metadata, file docs.Attachment) (docs.FileRecord, error) {
	meta.GroupName = ""
	return c.multipart(ctx, http.MethodPost, fmt.Sprintf("/api/files/%d/versions", fileID), &meta, &file)
}

// EditFile updates a file in place. file may be nil.
func (c *Client) EditFile(ctx context.Context, fileID int64, meta docs.Metadata, file *docs.Attachment) (docs.FileRecord, error) {
	meta.GroupName = ""
	return c.multipart(ctx, http.MethodPatch, fmt.Sprintf("/api/files/%d", fileID), &meta, file)
}

// ReplaceFile swaps a file's content, keeping its metadata.
func (c *Client) ReplaceFile(ctx context.Context, fileID int64, file docs.Attachment) (docs.FileRecord, error) {
	return c.multipart(ctx, http.MethodPut, fmt.Sprintf("/api/files/%d", fileID), nil, &file)
}

// Download streams a file's content into w.
func (c *Client) Download(ctx context.Context, fileID int64, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/files/%d/download", fileID), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: "download", Err: err}
	}
	return n, nil
}

// multipart sends a "metadata" JSON part and a "file" part, either of which
// may be omitted.
func (c *Client) multipart(ctx context.Context, method, path string, meta *docs.Metadata, file *docs.Attachment) (docs.FileRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if meta != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="metadata"`)
		h.Set("Content-Type", "application/json")
		part, err := mw.CreatePart(h)
		if err != nil {
			return docs.FileRecord{}, fmt.Errorf("failed to create metadata part: %w", err)
		}
		if err := json.NewEncoder(part).Encode(meta); err != nil {
			return docs.FileRecord{}, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	if file != nil {
		part, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return docs.FileRecord{}, fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return docs.FileRecord{}, fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return docs.FileRecord{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.do(ctx, method, path, &buf, mw.FormDataContentType())
	if err != nil {
		return docs.FileRecord{}, err
	}
	defer resp.Body.Close()

	var rec docs.FileRecord
	if err := decodeBody(resp.Body, &rec); err != nil {
		return docs.FileRecord{}, err
	}
	return rec, nil
}
