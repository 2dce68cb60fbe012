package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"
)

// EmbeddingService turns text into vectors through a Jina-compatible /embeddings API.
type EmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
	batchSize  int
}

// EmbeddingConfig holds configuration for embedding service
type EmbeddingConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1"
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	return &EmbeddingService{
		client:     client,
		endpoint:   baseURL + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
	}
}

// GetModel returns the model name being used
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Dimensions returns the vector size the service requests.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

type embeddingRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// EmbedPassages embeds document chunks, splitting them into API-sized batches.
// The returned slice is index-aligned with texts.
func (s *EmbeddingService) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := s.embed(ctx, taskPassage, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery generates an embedding optimized for query/search
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embed(ctx, taskQuery, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) embed(ctx context.Context, task string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{
		Model:         s.model,
		Task:          task,
		Dimensions:    s.dimensions,
		Input:         texts,
		EmbeddingType: "float",
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		if resp.Detail != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// The API may answer out of order; place each vector by its index.
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return embeddings, nil
}
