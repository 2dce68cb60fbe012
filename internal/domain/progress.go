package domain

import "time"

// Progress values seeded at each ingestion stage.
const (
	ProgressUploaded   = 25
	ProgressProcessing = 50
	ProgressDone       = 100
)

// Progress is the ephemeral, process-local view of one document's ingestion.
type Progress struct {
	DocumentID  uint
	Filename    string
	ContentType string
	Progress    float64
	Status      DocumentStatus
	Message     string
	UpdatedAt   time.Time
}

// UploadStatus is the status snapshot returned to clients.
type UploadStatus struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Progress    float64        `json:"progress"`
	Status      DocumentStatus `json:"status"`
	Message     string         `json:"message,omitempty"`
}

// ToUploadStatus converts a progress entry into its client-facing snapshot.
func (p *Progress) ToUploadStatus() *UploadStatus {
	return &UploadStatus{
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Progress:    p.Progress,
		Status:      p.Status,
		Message:     p.Message,
	}
}

// UploadStatusFromDocument synthesizes a snapshot from the durable record when
// no progress entry is available.
func UploadStatusFromDocument(doc *Document) *UploadStatus {
	st := &UploadStatus{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Progress:    ProgressDone,
		Status:      DocumentStatusCompleted,
	}
	switch doc.Status {
	case DocumentStatusFailed:
		st.Status = DocumentStatusFailed
		st.Message = doc.ErrorMessage
	case DocumentStatusUploading:
		st.Status = DocumentStatusUploading
		st.Progress = ProgressUploaded
	case DocumentStatusProcessing:
		st.Status = DocumentStatusProcessing
		st.Progress = ProgressProcessing
	}
	return st
}
