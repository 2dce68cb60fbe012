package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/logger"
	"github.com/timmy/doclens/internal/prompts"
	"github.com/timmy/doclens/internal/repository"
)

// chunkNamespace seeds deterministic point IDs so re-indexing a document overwrites its chunks.
var chunkNamespace = uuid.MustParse("6f1c3c4e-5d1b-4b8e-9a57-2f4b8d0c9e31")

const (
	upsertBatchSize = 64

	naiveTopK       = 5
	hybridTopK      = 20
	hybridMaxChunks = 8
	hybridPerDoc    = 3
)

// RetrievalConfig tunes chunking and upsert concurrency.
type RetrievalConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	UpsertParallel int
}

// RetrievalIndex chunks, embeds and stores document text, and answers questions
// from the stored chunks. It implements both Indexer and Retriever.
type RetrievalIndex struct {
	embedder Embedder
	vectors  VectorStore
	llm      Completer
	splitter textsplitter.RecursiveCharacter
	parallel int
}

// NewRetrievalIndex creates a RetrievalIndex.
func NewRetrievalIndex(embedder Embedder, vectors VectorStore, llm Completer, cfg *RetrievalConfig) *RetrievalIndex {
	parallel := cfg.UpsertParallel
	if parallel <= 0 {
		parallel = 1
	}
	return &RetrievalIndex{
		embedder: embedder,
		vectors:  vectors,
		llm:      llm,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		parallel: parallel,
	}
}

// ChunkID returns the point ID for one chunk of a document.
func ChunkID(documentID uint, chunkIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%d:%d", documentID, chunkIndex))).String()
}

// Index replaces all chunks of req.DocumentID with freshly embedded ones.
func (r *RetrievalIndex) Index(ctx context.Context, req IndexRequest) error {
	start := time.Now()

	chunks, err := r.splitter.SplitText(req.Text)
	if err != nil {
		return fmt.Errorf("%w: split text: %v", domain.ErrIndexingFailure, err)
	}
	chunks = nonEmpty(chunks)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks produced", domain.ErrIndexingFailure)
	}

	vectors, err := r.embedder.EmbedPassages(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%w: embed chunks: %v", domain.ErrIndexingFailure, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrIndexingFailure, len(vectors), len(chunks))
	}

	// Drop chunks left over from an earlier, longer version of the document.
	if err := r.vectors.DeleteDocument(ctx, req.DocumentID); err != nil {
		return fmt.Errorf("%w: clear previous chunks: %v", domain.ErrIndexingFailure, err)
	}

	points := make([]repository.ChunkPoint, len(chunks))
	for i, text := range chunks {
		points[i] = repository.ChunkPoint{
			ID:     ChunkID(req.DocumentID, i),
			Vector: vectors[i],
			Payload: repository.ChunkPayload{
				DocumentID: req.DocumentID,
				OwnerID:    req.OwnerID,
				Filename:   req.Filename,
				ChunkIndex: i,
				Text:       text,
			},
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for lo := 0; lo < len(points); lo += upsertBatchSize {
		hi := lo + upsertBatchSize
		if hi > len(points) {
			hi = len(points)
		}
		batch := points[lo:hi]
		g.Go(func() error {
			return r.vectors.UpsertChunks(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		// Batches that landed before the failure must not stay searchable.
		if rmErr := r.Remove(context.WithoutCancel(ctx), req.DocumentID); rmErr != nil {
			logger.FromContext(ctx).WithError(rmErr).Warn("Failed to remove partially indexed chunks")
		}
		return fmt.Errorf("%w: upsert chunks: %v", domain.ErrIndexingFailure, err)
	}

	logger.With(logger.Fields{
		logger.FieldDocumentID: req.DocumentID,
		logger.FieldComponent:  "retrieval",
	}).WithCount(len(points)).WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Indexed document chunks")
	return nil
}

// Remove deletes every chunk stored for documentID.
func (r *RetrievalIndex) Remove(ctx context.Context, documentID uint) error {
	if err := r.vectors.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: remove chunks of document %d: %v", domain.ErrIndexingFailure, documentID, err)
	}
	return nil
}

// Query answers question from the owner's chunks. Unknown modes fall back to hybrid.
func (r *RetrievalIndex) Query(ctx context.Context, ownerID uint, question string, mode domain.QueryMode) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	topK := hybridTopK
	if mode == domain.QueryModeNaive {
		topK = naiveTopK
	}
	results, err := r.vectors.Search(ctx, vector, topK, ownerID)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if mode != domain.QueryModeNaive {
		results = diversify(results, hybridMaxChunks, hybridPerDoc)
	}

	chunks := make([]prompts.ContextChunk, 0, len(results))
	sources := make([]Source, 0, len(results))
	for _, res := range results {
		if res.Payload == nil || res.Payload.OwnerID != ownerID {
			continue
		}
		chunks = append(chunks, prompts.ContextChunk{
			Filename: res.Payload.Filename,
			Index:    res.Payload.ChunkIndex,
			Text:     res.Payload.Text,
		})
		sources = append(sources, Source{
			DocumentID: res.Payload.DocumentID,
			Filename:   res.Payload.Filename,
			ChunkIndex: res.Payload.ChunkIndex,
			Score:      res.Score,
		})
	}

	if len(chunks) == 0 {
		return &Answer{Text: prompts.NoContextAnswer, Sources: sources}, nil
	}

	text, err := r.llm.Complete(ctx, prompts.AnswerSystemPrompt, prompts.BuildAnswerPrompt(question, chunks))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{Text: text, Sources: sources}, nil
}

// diversify drops repeated chunk text and caps chunks per document, keeping score order.
func diversify(results []repository.SearchResult, maxTotal, perDoc int) []repository.SearchResult {
	seen := make(map[string]struct{}, len(results))
	perDocCount := make(map[uint]int)
	out := make([]repository.SearchResult, 0, maxTotal)

	for _, res := range results {
		if len(out) == maxTotal {
			break
		}
		if res.Payload == nil {
			continue
		}
		key := strings.TrimSpace(res.Payload.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		if perDocCount[res.Payload.DocumentID] >= perDoc {
			continue
		}
		seen[key] = struct{}{}
		perDocCount[res.Payload.DocumentID]++
		out = append(out, res)
	}
	return out
}

func nonEmpty(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}
