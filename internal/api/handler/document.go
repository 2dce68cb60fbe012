package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/doclens/internal/domain"
)

// Submitter accepts uploads for ingestion. *service.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, ownerID uint, filename, contentType string, r io.Reader) (*domain.Document, error)
}

// StatusReader answers owner-scoped document reads. *service.StatusService satisfies it.
type StatusReader interface {
	GetStatus(ctx context.Context, documentID, ownerID uint) (*domain.UploadStatus, error)
	GetRecord(ctx context.Context, documentID, ownerID uint) (*domain.Document, error)
	ListRecords(ctx context.Context, ownerID uint) ([]domain.Document, error)
}

// DocumentHandler handles document upload and status endpoints.
type DocumentHandler struct {
	submitter      Submitter
	status         StatusReader
	maxUploadBytes int64
	streamPoll     time.Duration
}

// NewDocumentHandler creates a new document handler.
// Parameters:
//   - submitter: ingestion entry point.
//   - status: record and progress reader.
//   - maxUploadBytes: request body limit for uploads; 0 disables it.
//   - streamPoll: status polling interval for the event stream.
// Returns:
//   - *DocumentHandler: initialized handler.
func NewDocumentHandler(submitter Submitter, status StatusReader, maxUploadBytes int64, streamPoll time.Duration) *DocumentHandler {
	if streamPoll <= 0 {
		streamPoll = time.Second
	}
	return &DocumentHandler{
		submitter:      submitter,
		status:         status,
		maxUploadBytes: maxUploadBytes,
		streamPoll:     streamPoll,
	}
}

// Upload handles POST /api/v1/documents (multipart field "file").
func (h *DocumentHandler) Upload(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart field 'file' is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, err, "Open upload")
		return
	}
	defer f.Close()

	doc, err := h.submitter.Submit(c.Request.Context(), ownerID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), f)
	if err != nil {
		respondError(c, err, "Upload")
		return
	}

	c.JSON(http.StatusOK, doc)
}

// List handles GET /api/v1/documents.
func (h *DocumentHandler) List(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	docs, err := h.status.ListRecords(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err, "List documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Get handles GET /api/v1/documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := h.status.GetRecord(c.Request.Context(), id, ownerID)
	if err != nil {
		respondError(c, err, "Get document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Status handles GET /api/v1/documents/:id/status.
func (h *DocumentHandler) Status(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	st, err := h.status.GetStatus(c.Request.Context(), id, ownerID)
	if err != nil {
		respondError(c, err, "Get status")
		return
	}
	c.JSON(http.StatusOK, st)
}

// Events handles GET /api/v1/documents/:id/events: a server-sent event stream
// that emits a "status" event on every change and closes after a terminal status.
func (h *DocumentHandler) Events(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	current, err := h.status.GetStatus(ctx, id, ownerID)
	if err != nil {
		respondError(c, err, "Get status")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.streamPoll)
	defer ticker.Stop()

	var sent *domain.UploadStatus
	for {
		if sent == nil || *sent != *current {
			c.SSEvent("status", current)
			c.Writer.Flush()
			sent = current
		}
		if current.Status.IsTerminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := h.status.GetStatus(ctx, id, ownerID)
		if err != nil {
			c.SSEvent("error", gin.H{"error": err.Error()})
			c.Writer.Flush()
			return
		}
		current = next
	}
}
