package domain

import (
	"fmt"
	"strings"
	"time"
)

// QueryMode selects how much retrieved context backs an answer.
type QueryMode string

const (
	QueryModeNaive  QueryMode = "naive"
	QueryModeHybrid QueryMode = "hybrid"
)

// ParseQueryMode maps a client-supplied mode to a QueryMode. Empty selects hybrid.
func ParseQueryMode(s string) (QueryMode, error) {
	switch QueryMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", QueryModeHybrid:
		return QueryModeHybrid, nil
	case QueryModeNaive:
		return QueryModeNaive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidQueryMode, s)
	}
}

// Chat is one question/answer exchange grounded in the owner's documents.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index:idx_chats_owner" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Response  string    `gorm:"type:text" json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string {
	return "chats"
}
