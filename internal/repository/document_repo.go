package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/doclens/internal/domain"
	"gorm.io/gorm"
)

// DocumentRepository is the durable store for document records.
// Status changes go through Transition so a record never moves backwards.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document record and fills in its ID and UploadedAt.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusUploading
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document regardless of owner.
// Returns domain.ErrNotFound when no record matches.
func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// GetOwned retrieves a document only if it belongs to ownerID.
// A record owned by someone else is reported exactly like a missing one.
func (r *DocumentRepository) GetOwned(ctx context.Context, id, ownerID uint) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// ListByOwner returns the owner's documents in creation order.
func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID uint) ([]domain.Document, error) {
	docs := []domain.Document{}
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at ASC").
		Order("id ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ListByStatus returns every document in one of the given statuses, oldest first.
func (r *DocumentRepository) ListByStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Document, error) {
	docs := []domain.Document{}
	if len(statuses) == 0 {
		return docs, nil
	}
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %w", err)
	}
	return docs, nil
}

// Transition moves a document to status to, if its current status allows it.
// Allowed moves are uploading to processing, processing to completed, and
// processing or uploading to failed. The direct uploading to failed jump is used
// only when a queued job could not be handed to a worker; it skips processing
// but never goes backwards.
// Entering processing stamps started_at. Terminal statuses also stamp
// processed_at; failed stores errMessage.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: document ID.
//   - to: target status.
//   - errMessage: failure description, only stored when to is failed.
// Returns:
//   - error: domain.ErrNotFound if the record is missing, domain.ErrInvalidTransition if
//     the current status does not precede to.
func (r *DocumentRepository) Transition(ctx context.Context, id uint, to domain.DocumentStatus, errMessage string) error {
	from := to.Predecessors()
	if len(from) == 0 {
		return fmt.Errorf("%w: cannot enter %s", domain.ErrInvalidTransition, to)
	}

	updates := map[string]interface{}{"status": to}
	if to == domain.DocumentStatusProcessing {
		updates["started_at"] = time.Now().UTC()
	}
	if to.IsTerminal() {
		updates["processed_at"] = time.Now().UTC()
	}
	if to == domain.DocumentStatusFailed {
		if errMessage == "" {
			errMessage = "ingestion failed"
		}
		updates["error_message"] = errMessage
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update document status: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, to)
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Document{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
