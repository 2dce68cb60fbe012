package domain

import (
	"mime"
	"strings"
	"time"
)

// DocumentStatus represents the ingestion status of an uploaded document.
// Values move forward only: uploading -> processing -> completed | failed.
type DocumentStatus string

const (
	DocumentStatusUploading  DocumentStatus = "uploading"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether no further transitions can follow s.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// Predecessors returns the statuses a record may hold immediately before moving to s.
// failed may be entered straight from uploading: the dispatcher fails a record whose
// job could not be scheduled, before any worker moved it to processing. Observed
// statuses stay a subsequence of uploading, processing, failed.
// Parameters: none.
// Returns:
//   - []DocumentStatus: allowed source statuses; nil when s cannot be entered by a transition.
func (s DocumentStatus) Predecessors() []DocumentStatus {
	switch s {
	case DocumentStatusProcessing:
		return []DocumentStatus{DocumentStatusUploading}
	case DocumentStatusCompleted:
		return []DocumentStatus{DocumentStatusProcessing}
	case DocumentStatusFailed:
		return []DocumentStatus{DocumentStatusUploading, DocumentStatusProcessing}
	default:
		return nil
	}
}

// CanTransition reports whether a record in status from may move to status to.
func CanTransition(from, to DocumentStatus) bool {
	for _, p := range to.Predecessors() {
		if p == from {
			return true
		}
	}
	return false
}

// Supported upload content types.
const (
	ContentTypePDF      = "application/pdf"
	ContentTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeMarkdown = "text/markdown"
)

// AllowedContentTypes lists the content types accepted for ingestion.
var AllowedContentTypes = []string{ContentTypePDF, ContentTypeDOCX, ContentTypeMarkdown}

// NormalizeContentType strips parameters and case from a Content-Type header value.
// Example: "Text/Markdown; charset=utf-8" -> "text/markdown".
func NormalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// IsAllowedContentType reports whether contentType is on the ingestion allow-list.
func IsAllowedContentType(contentType string) bool {
	ct := NormalizeContentType(contentType)
	for _, allowed := range AllowedContentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// Document is the durable record of an uploaded document.
type Document struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	OwnerID      uint           `gorm:"not null;index:idx_documents_owner" json:"user_id"`
	Filename     string         `gorm:"type:text;not null" json:"filename"`
	ContentType  string         `gorm:"type:text;not null" json:"content_type"`
	FilePath     string         `gorm:"type:text;not null" json:"-"`
	FileSize     int64          `gorm:"not null;default:0" json:"file_size"`
	Status       DocumentStatus `gorm:"type:text;not null;index:idx_documents_status;default:uploading" json:"status"`
	UploadedAt   time.Time      `gorm:"not null;autoCreateTime;<-:create" json:"uploaded_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string {
	return "documents"
}
