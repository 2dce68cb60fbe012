package service

import (
	"context"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/progress"
)

// StatusService answers owner-scoped questions about uploaded documents.
// It never writes.
type StatusService struct {
	store   DocumentStore
	tracker *progress.Tracker
}

// NewStatusService creates a StatusService.
func NewStatusService(store DocumentStore, tracker *progress.Tracker) *StatusService {
	return &StatusService{store: store, tracker: tracker}
}

// GetStatus returns the live progress entry for a document when one exists and
// otherwise a snapshot synthesized from the durable record.
// Returns domain.ErrNotFound unless the record exists and belongs to ownerID.
func (s *StatusService) GetStatus(ctx context.Context, documentID, ownerID uint) (*domain.UploadStatus, error) {
	doc, err := s.store.GetOwned(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if p, ok := s.tracker.Get(documentID); ok {
		return p.ToUploadStatus(), nil
	}
	return domain.UploadStatusFromDocument(doc), nil
}

// GetRecord returns the durable record, scoped to ownerID.
func (s *StatusService) GetRecord(ctx context.Context, documentID, ownerID uint) (*domain.Document, error) {
	return s.store.GetOwned(ctx, documentID, ownerID)
}

// ListRecords returns every record owned by ownerID in upload order.
func (s *StatusService) ListRecords(ctx context.Context, ownerID uint) ([]domain.Document, error) {
	docs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}
