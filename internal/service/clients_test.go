package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingService_BatchesAndOrders(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, taskPassage, req.Task)
		assert.LessOrEqual(t, len(req.Input), 2)

		// Answer in reverse order to exercise index placement.
		resp := embeddingResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(len(req.Input[i]))}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{Model: "m", APIKey: "secret", BaseURL: srv.URL + "/v1/", Dimensions: 1, BatchSize: 2})

	vectors, err := svc.EmbedPassages(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i + 1)}, v)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbeddingService_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{Model: "m", BaseURL: srv.URL})
	_, err := svc.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestLLMService_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "hello?", req.Messages[1].Content)
		assert.Equal(t, 64, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hi there  "}}]}`))
	}))
	defer srv.Close()

	svc := NewLLMService(&LLMConfig{Model: "gpt", BaseURL: srv.URL, MaxTokens: 64})
	out, err := svc.Complete(context.Background(), "be brief", "hello?")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestLLMService_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	svc := NewLLMService(&LLMConfig{Model: "gpt", BaseURL: srv.URL})
	_, err := svc.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
