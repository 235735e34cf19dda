package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, logger.NewNop())
}

const fileJSON = `{"fileId":42,"groupId":7,"groupName":"handbook","fileName":"x.pdf","originalFileName":"x.pdf",
"fileExtension":"pdf","fileVersion":"1.2.0","fileCategory":"가이드","uploadedAt":"2025-01-02T03:04:05",
"updatedAt":"2025-01-02T03:04:05"}`

func TestListFiles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/files", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		w.Write([]byte(`{"content":[` + fileJSON + `],"page":2,"size":10,"totalElements":21,"totalPages":3}`))
	})

	p, err := c.ListFiles(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, p.Content, 1)
	assert.Equal(t, int64(42), p.Content[0].FileID)
	assert.Equal(t, docs.Version{Major: 1, Minor: 2}, p.Content[0].FileVersion)
	assert.Equal(t, 2, p.Number)
	assert.False(t, p.HasNext())
}

func TestGroupVersions_KeepsServerOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files/groups/7/versions", r.URL.Path)
		w.Write([]byte(`[{"fileId":3,"fileVersion":"1.0.0"},{"fileId":1,"fileVersion":"3.0.0"},{"fileId":2,"fileVersion":"2.0.0"}]`))
	})

	recs, err := c.GroupVersions(context.Background(), 7)
	require.NoError(t, err)
	var ids []int64
	for _, r := range recs {
		ids = append(ids, r.FileID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestPatchCategory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/files/42/category", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "보고서", body["fileCategory"])
		w.Write([]byte(fileJSON))
	})

	_, err := c.PatchCategory(context.Background(), 42, "보고서")
	require.NoError(t, err)
}

func TestCreateFile_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/files", r.URL.Path)
		mr, err := r.MultipartReader()
		require.NoError(t, err)

		parts := map[string]string{}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(part)
			parts[part.FormName()] = string(data)

			switch part.FormName() {
			case "metadata":
				assert.Equal(t, "application/json", part.Header.Get("Content-Type"))
			case "file":
				assert.Equal(t, "x.pdf", part.FileName())
			}
		}

		assert.Equal(t, "%PDF-1.4", parts["file"])
		var meta docs.Metadata
		require.NoError(t, json.Unmarshal([]byte(parts["metadata"]), &meta))
		assert.Equal(t, docs.Metadata{GroupName: "handbook", FileCategory: "가이드", MajorVersion: 1, MinorVersion: 2}, meta)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(fileJSON))
	})

	meta := docs.Metadata{GroupName: "handbook", FileCategory: "가이드", MajorVersion: 1, MinorVersion: 2}
	rec, err := c.CreateFile(context.Background(), meta, docs.Attachment{Name: "x.pdf", Content: strings.NewReader("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.FileID)
}

func TestUploadVersion_OmitsGroupName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files/42/versions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Len(t, r.MultipartForm.Value["metadata"], 1)
		assert.NotContains(t, r.MultipartForm.Value["metadata"][0], "groupName")
		assert.Len(t, r.MultipartForm.File["file"], 1)
		w.Write([]byte(fileJSON))
	})

	meta := docs.Metadata{GroupName: "ignored", FileCategory: "가이드", MajorVersion: 2}
	_, err := c.UploadVersion(context.Background(), 42, meta, docs.Attachment{Name: "x.pdf", Content: strings.NewReader("v2")})
	require.NoError(t, err)
}

func TestEditFile_WithoutAttachment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/files/42", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Empty(t, r.MultipartForm.File["file"])
		assert.Len(t, r.MultipartForm.Value["metadata"], 1)
		w.Write([]byte(fileJSON))
	})

	_, err := c.EditFile(context.Background(), 42, docs.Metadata{FileCategory: "기타"}, nil)
	require.NoError(t, err)
}

func TestReplaceFile_SendsOnlyFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Empty(t, r.MultipartForm.Value["metadata"])
		assert.Len(t, r.MultipartForm.File["file"], 1)
		w.Write([]byte(fileJSON))
	})

	_, err := c.ReplaceFile(context.Background(), 42, docs.Attachment{Name: "x.pdf", Content: strings.NewReader("v2")})
	require.NoError(t, err)
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files/42/download", r.URL.Path)
		w.Write([]byte("content"))
	})

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), 42, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "content", buf.String())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"accepted is success", http.StatusAccepted, "", func(t *testing.T, err error) {
			assert.NoError(t, err)
		}},
		{"conflict with code", http.StatusConflict,
			`{"code":"DUPLICATE_CONTENT","message":"same file","duplicateFileId":42,"duplicateFileName":"x.pdf","duplicateVersion":"1.0.0"}`,
			func(t *testing.T, err error) {
				var conflict *ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, CodeDuplicateContent, conflict.Code)
				assert.Equal(t, FlexID(42), conflict.DuplicateFileID)
				assert.Equal(t, "x.pdf", conflict.DuplicateFileName)
				assert.False(t, errors.Is(err, ErrTransport))
			}},
		{"conflict with string id", http.StatusConflict,
			`{"code":"DUPLICATE_CONTENT","duplicateFileId":"42","duplicateGroupId":"7"}`,
			func(t *testing.T, err error) {
				var conflict *ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, FlexID(42), conflict.DuplicateFileID)
				assert.Equal(t, FlexID(7), conflict.DuplicateGroupID)
			}},
		{"conflict without code is generic", http.StatusConflict, `oops`, func(t *testing.T, err error) {
			var status *StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, http.StatusConflict, status.StatusCode)
			assert.ErrorIs(t, err, ErrTransport)
		}},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, func(t *testing.T, err error) {
			var status *StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, "boom", status.Message)
			assert.ErrorIs(t, err, ErrTransport)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			tc.check(t, c.DeleteFile(context.Background(), 1))
		})
	}
}

func TestUnreachableServerIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, logger.NewNop())
	_, err := c.Categories(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestVersionLabels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/api/chat/groups/7/versions":
			w.Write([]byte(`["2.0.0","1.0.0"]`))
		case "/api/chat/files/my%20notes.pdf/versions":
			w.Write([]byte(`["1.0.0"]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	labels, err := c.VersionLabels(ctx, scope.Group, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"2.0.0", "1.0.0"}, labels)

	labels, err = c.VersionLabels(ctx, scope.File, "my notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0"}, labels)

	_, err = c.VersionLabels(ctx, scope.Group, "abc")
	assert.Error(t, err)
}

func TestChat_SendsRequestAndReturnsStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "hi", body["message"])
		assert.Equal(t, "conv-1", body["conversationId"])
		assert.Nil(t, body["systemMessage"])
		assert.Equal(t, "ALL", body["scope"])
		assert.Equal(t, []interface{}{}, body["versions"])

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event:token\ndata:hi\n\n"))
	})

	body, err := c.Chat(context.Background(), ChatRequest{
		Message:        "hi",
		ConversationID: "conv-1",
		Scope:          "ALL",
		VersionPolicy:  "LATEST",
	})
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "event:token\ndata:hi\n\n", string(data))
}

func TestFlexID_Marshal(t *testing.T) {
	data, err := json.Marshal(struct {
		A FlexID `json:"a"`
		B FlexID `json:"b"`
	}{A: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":5,"b":null}`, string(data))
}

func TestChat_StreamOutlivesRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event:token\ndata:slow\n\n"))
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("event:token\ndata: answer\n\n"))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 100*time.Millisecond, logger.NewNop())

	body, err := c.Chat(context.Background(), ChatRequest{Message: "hi", Scope: "ALL", VersionPolicy: "LATEST"})
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "event:token\ndata:slow\n\nevent:token\ndata: answer\n\n", string(data))
}

func TestChat_HeaderTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c := NewClient(srv.URL, 100*time.Millisecond, logger.NewNop())

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", Scope: "ALL", VersionPolicy: "LATEST"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestChat_ContextCancelsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("event:token\ndata:a\n\n"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c := NewClient(srv.URL, time.Second, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	body, err := c.Chat(ctx, ChatRequest{Message: "hi", Scope: "ALL", VersionPolicy: "LATEST"})
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 64)
	_, err = body.Read(buf)
	require.NoError(t, err)
	cancel()
	_, err = io.ReadAll(body)
	assert.Error(t, err)
}
