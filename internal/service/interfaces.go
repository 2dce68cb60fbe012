package service

import (
	"context"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/repository"
)

// DocumentStore is the durable record store. *repository.DocumentRepository satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id uint) (*domain.Document, error)
	GetOwned(ctx context.Context, id, ownerID uint) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]domain.Document, error)
	ListByStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Document, error)
	Transition(ctx context.Context, id uint, to domain.DocumentStatus, errMessage string) error
	Delete(ctx context.Context, id uint) error
}

// ChatStore persists question/answer exchanges. *repository.ChatRepository satisfies it.
type ChatStore interface {
	Create(ctx context.Context, chat *domain.Chat) error
	GetOwned(ctx context.Context, id, ownerID uint) (*domain.Chat, error)
	ListByOwner(ctx context.Context, ownerID uint, limit int) ([]domain.Chat, error)
}

// TextExtractor decodes document bytes by content type. *extract.Registry satisfies it.
type TextExtractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (string, error)
}

// IndexRequest carries one document's extracted text into the retrieval index.
type IndexRequest struct {
	DocumentID uint
	OwnerID    uint
	Filename   string
	Text       string
}

// Indexer makes extracted text retrievable. Remove withdraws everything indexed
// for a document, so a failed ingestion never contributes to answers.
type Indexer interface {
	Index(ctx context.Context, req IndexRequest) error
	Remove(ctx context.Context, documentID uint) error
}

// Source identifies a chunk that backed an answer.
type Source struct {
	DocumentID uint    `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// Answer is a generated reply plus the chunks it was grounded on.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Retriever answers questions from an owner's indexed documents.
type Retriever interface {
	Query(ctx context.Context, ownerID uint, question string, mode domain.QueryMode) (*Answer, error)
}

// Embedder is the embedding capability the retrieval index needs.
type Embedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorStore is the chunk store behind the retrieval index. *repository.QdrantRepository satisfies it.
type VectorStore interface {
	UpsertChunks(ctx context.Context, chunks []repository.ChunkPoint) error
	Search(ctx context.Context, vector []float32, topK int, ownerID uint) ([]repository.SearchResult, error)
	DeleteDocument(ctx context.Context, documentID uint) error
}

// Completer generates text from a system and user prompt. *LLMService satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
