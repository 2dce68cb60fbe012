package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/logger"
)

const defaultChatHistory = 50

// ChatResult is a stored exchange together with the chunks behind its answer.
type ChatResult struct {
	Chat    *domain.Chat `json:"chat"`
	Sources []Source     `json:"sources"`
}

// ChatService answers questions over an owner's documents and keeps the history.
type ChatService struct {
	retriever Retriever
	chats     ChatStore
}

func NewChatService(retriever Retriever, chats ChatStore) *ChatService {
	return &ChatService{retriever: retriever, chats: chats}
}

// Ask answers message from the owner's documents and stores the exchange.
func (s *ChatService) Ask(ctx context.Context, ownerID uint, message string, mode domain.QueryMode) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrEmptyQuestion
	}

	answer, err := s.retriever.Query(ctx, ownerID, message, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	chat := &domain.Chat{
		OwnerID:  ownerID,
		Message:  message,
		Response: answer.Text,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to save chat: %w", err)
	}

	logger.With(logger.Fields{"mode": string(mode)}).WithCount(len(answer.Sources)).
		Info(ctx, "Answered question")
	return &ChatResult{Chat: chat, Sources: answer.Sources}, nil
}

// List returns the owner's most recent exchanges, newest first.
func (s *ChatService) List(ctx context.Context, ownerID uint) ([]domain.Chat, error) {
	chats, err := s.chats.ListByOwner(ctx, ownerID, defaultChatHistory)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// Get returns one exchange, scoped to ownerID.
func (s *ChatService) Get(ctx context.Context, id, ownerID uint) (*domain.Chat, error) {
	return s.chats.GetOwned(ctx, id, ownerID)
}
