package repository

import (
	"context"
	"fmt"

	"github.com/timmy/doclens/internal/domain"
	"gorm.io/gorm"
)

// ChatRepository persists question/answer exchanges.
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create inserts a chat record.
func (r *ChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

// GetOwned retrieves a chat only if it belongs to ownerID.
func (r *ChatRepository) GetOwned(ctx context.Context, id, ownerID uint) (*domain.Chat, error) {
	var chat domain.Chat
	if err := r.db.WithContext(ctx).First(&chat, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// ListByOwner returns the owner's chats, newest first.
func (r *ChatRepository) ListByOwner(ctx context.Context, ownerID uint, limit int) ([]domain.Chat, error) {
	chats := []domain.Chat{}
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}
