package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/doclens/internal/api/middleware"
	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/service"
)

type fakeDocuments struct {
	mu       sync.Mutex
	docs     map[uint]*domain.Document
	statuses map[uint][]domain.UploadStatus // consumed one per GetStatus call, last one sticks
	submitErr error
	lastBody  string
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{docs: map[uint]*domain.Document{}, statuses: map[uint][]domain.UploadStatus{}}
}

func (f *fakeDocuments) Submit(_ context.Context, ownerID uint, filename, contentType string, r io.Reader) (*domain.Document, error) {
	if !domain.IsAllowedContentType(contentType) {
		return nil, domain.ErrUnsupportedContentType
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	body, _ := io.ReadAll(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastBody = string(body)
	doc := &domain.Document{
		ID: uint(len(f.docs) + 1), OwnerID: ownerID, Filename: filename,
		ContentType: domain.NormalizeContentType(contentType), FileSize: int64(len(body)),
		Status: domain.DocumentStatusUploading, FilePath: "secret/path",
	}
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeDocuments) GetRecord(_ context.Context, id, ownerID uint) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocuments) GetStatus(ctx context.Context, id, ownerID uint) (*domain.UploadStatus, error) {
	doc, err := f.GetRecord(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.statuses[id]
	if len(seq) == 0 {
		return domain.UploadStatusFromDocument(doc), nil
	}
	st := seq[0]
	if len(seq) > 1 {
		f.statuses[id] = seq[1:]
	}
	return &st, nil
}

func (f *fakeDocuments) ListRecords(_ context.Context, ownerID uint) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Document{}
	for i := uint(1); i <= uint(len(f.docs)); i++ {
		if d, ok := f.docs[i]; ok && d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeChats struct {
	asked []string
}

func (f *fakeChats) Ask(_ context.Context, ownerID uint, message string, mode domain.QueryMode) (*service.ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	f.asked = append(f.asked, string(mode)+":"+message)
	return &service.ChatResult{
		Chat:    &domain.Chat{ID: 1, OwnerID: ownerID, Message: message, Response: "42"},
		Sources: []service.Source{{DocumentID: 1, Filename: "a.md"}},
	}, nil
}

func (f *fakeChats) List(_ context.Context, ownerID uint) ([]domain.Chat, error) {
	return []domain.Chat{{ID: 1, OwnerID: ownerID, Message: "q", Response: "a"}}, nil
}

func (f *fakeChats) Get(_ context.Context, id, ownerID uint) (*domain.Chat, error) {
	if id != 1 || ownerID != 7 {
		return nil, domain.ErrNotFound
	}
	return &domain.Chat{ID: 1, OwnerID: ownerID, Message: "q", Response: "a"}, nil
}

func newTestRouter(docs *fakeDocuments, chats *fakeChats) http.Handler {
	return SetupRouter(&Services{
		Documents: docs,
		Status:    docs,
		Chats:     chats,
		QueueLen:  func() int { return 3 },
	}, &RouterConfig{
		Mode:           "test",
		MaxUploadBytes: 1 << 20,
		StreamPoll:     5 * time.Millisecond,
		CORS:           middleware.CORSConfig{AllowAllOrigins: true},
	})
}

func multipartUpload(t *testing.T, filename, contentType, body string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func do(r http.Handler, method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r := newTestRouter(newFakeDocuments(), &fakeChats{})
	rec := do(r, http.MethodGet, "/health", "", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","ingest_queue":3}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(newFakeDocuments(), &fakeChats{})

	for _, user := range []string{"", "abc", "0", "-1"} {
		rec := do(r, http.MethodGet, "/api/v1/documents", user, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "user %q", user)
	}
}

func TestUploadAndRead(t *testing.T) {
	docs := newFakeDocuments()
	r := newTestRouter(docs, &fakeChats{})

	body, ct := multipartUpload(t, "notes.md", "text/markdown", "# Hi\nbody\n")
	rec := do(r, http.MethodPost, "/api/v1/documents", "7", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "notes.md", doc["filename"])
	assert.Equal(t, float64(7), doc["user_id"])
	assert.Equal(t, "uploading", doc["status"])
	assert.Equal(t, float64(10), doc["file_size"])
	assert.NotContains(t, doc, "file_path", "storage key never exposed")
	assert.Equal(t, "# Hi\nbody\n", docs.lastBody)

	rec = do(r, http.MethodGet, "/api/v1/documents", "7", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Documents []domain.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Documents, 1)

	rec = do(r, http.MethodGet, "/api/v1/documents/1", "7", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/documents/1", "8", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "other owner sees nothing")

	rec = do(r, http.MethodGet, "/api/v1/documents/1/status", "8", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/documents/abc", "7", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/documents/1/status", "7", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"filename":"notes.md","content_type":"text/markdown","progress":25,"status":"uploading"}`, rec.Body.String())
}

func TestUploadErrors(t *testing.T) {
	docs := newFakeDocuments()
	r := newTestRouter(docs, &fakeChats{})

	body, ct := multipartUpload(t, "evil.exe", "application/exe", "MZ")
	rec := do(r, http.MethodPost, "/api/v1/documents", "7", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, docs.docs)

	rec = do(r, http.MethodPost, "/api/v1/documents", "7", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	docs.submitErr = domain.ErrQueueFull
	body, ct = multipartUpload(t, "a.pdf", "application/pdf", "%PDF")
	rec = do(r, http.MethodPost, "/api/v1/documents", "7", body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	docs.submitErr = domain.ErrStorageFailure
	body, ct = multipartUpload(t, "a.pdf", "application/pdf", "%PDF")
	rec = do(r, http.MethodPost, "/api/v1/documents", "7", body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusEvents(t *testing.T) {
	docs := newFakeDocuments()
	docs.docs[1] = &domain.Document{ID: 1, OwnerID: 7, Filename: "a.md", ContentType: domain.ContentTypeMarkdown}
	docs.statuses[1] = []domain.UploadStatus{
		{Filename: "a.md", ContentType: domain.ContentTypeMarkdown, Progress: 25, Status: domain.DocumentStatusUploading},
		{Filename: "a.md", ContentType: domain.ContentTypeMarkdown, Progress: 50, Status: domain.DocumentStatusProcessing},
		{Filename: "a.md", ContentType: domain.ContentTypeMarkdown, Progress: 50, Status: domain.DocumentStatusProcessing},
		{Filename: "a.md", ContentType: domain.ContentTypeMarkdown, Progress: 100, Status: domain.DocumentStatusCompleted},
	}
	r := newTestRouter(docs, &fakeChats{})

	rec := do(r, http.MethodGet, "/api/v1/documents/1/events", "7", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	out := rec.Body.String()
	assert.Equal(t, 3, strings.Count(out, "event:status"), out)
	assert.Contains(t, out, `"status":"uploading"`)
	assert.Contains(t, out, `"status":"processing"`)
	assert.Contains(t, out, `"status":"completed"`)
}

func TestChats(t *testing.T) {
	chats := &fakeChats{}
	r := newTestRouter(newFakeDocuments(), chats)

	rec := do(r, http.MethodPost, "/api/v1/chats", "7", strings.NewReader(`{"message":"what?"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "42", resp["response"])
	assert.Len(t, resp["sources"], 1)
	assert.Equal(t, []string{"hybrid:what?"}, chats.asked)

	rec = do(r, http.MethodPost, "/api/v1/chats", "7", strings.NewReader(`{"message":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/chats", "7", strings.NewReader(`{"message":"x","mode":"global"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/chats", "7", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chats"`)

	rec = do(r, http.MethodGet, "/api/v1/chats/1", "8", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(newFakeDocuments(), &fakeChats{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
