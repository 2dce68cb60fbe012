package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsAreEmitted(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := log.WithContext(context.Background())
	ctx = WithRequest(ctx, "req-1")
	ctx = WithDocument(ctx, "ingest_worker", 7, 3)

	With(Fields{FieldDurationMs: int64(12)}).Info(ctx, "done %s", "x")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "done x", line["message"])
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, float64(7), line[FieldDocumentID])
	assert.Equal(t, float64(3), line[FieldOwnerID])
	assert.Equal(t, "ingest_worker", line[FieldComponent])
	assert.Equal(t, float64(12), line[FieldDurationMs])
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "req-1", RequestID(ctx))

	id, ok := DocumentID(ctx)
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))

	_, ok := DocumentID(context.Background())
	assert.False(t, ok)
	assert.Empty(t, RequestID(context.Background()))
}
