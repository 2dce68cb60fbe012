package progress

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/doclens/internal/domain"
)

func seeded(id uint) domain.Progress {
	return domain.Progress{
		DocumentID:  id,
		Filename:    "doc.md",
		ContentType: domain.ContentTypeMarkdown,
		Progress:    domain.ProgressUploaded,
		Status:      domain.DocumentStatusUploading,
	}
}

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()
	tr.Seed(seeded(1))

	p, ok := tr.Get(1)
	require.True(t, ok)
	assert.Equal(t, domain.DocumentStatusUploading, p.Status)
	assert.Equal(t, float64(25), p.Progress)

	assert.True(t, tr.Advance(1, domain.DocumentStatusProcessing, domain.ProgressProcessing, ""))
	assert.True(t, tr.Advance(1, domain.DocumentStatusCompleted, domain.ProgressDone, ""))

	p, _ = tr.Get(1)
	assert.Equal(t, domain.DocumentStatusCompleted, p.Status)
	assert.Equal(t, float64(100), p.Progress)
	assert.Equal(t, "doc.md", p.Filename)
}

func TestTracker_RejectsRegression(t *testing.T) {
	tr := NewTracker()
	tr.Seed(seeded(1))

	require.True(t, tr.Advance(1, domain.DocumentStatusProcessing, 50, ""))
	assert.False(t, tr.Advance(1, domain.DocumentStatusUploading, 25, ""))

	require.True(t, tr.Advance(1, domain.DocumentStatusFailed, 0, "bad pdf"))
	assert.False(t, tr.Advance(1, domain.DocumentStatusCompleted, 100, ""))

	p, _ := tr.Get(1)
	assert.Equal(t, domain.DocumentStatusFailed, p.Status)
	assert.Equal(t, float64(50), p.Progress, "progress must not decrease")
	assert.Equal(t, "bad pdf", p.Message)
}

func TestTracker_AdvanceMissing(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Advance(7, domain.DocumentStatusProcessing, 50, ""))
	_, ok := tr.Get(7)
	assert.False(t, ok)
}

func TestTracker_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.Seed(seeded(1))
	tr.Seed(seeded(2))
	require.True(t, tr.Advance(1, domain.DocumentStatusProcessing, 50, ""))
	require.True(t, tr.Advance(1, domain.DocumentStatusCompleted, 100, ""))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, tr.Sweep(time.Hour))

	_, ok := tr.Get(1)
	assert.False(t, ok, "terminal entry evicted")
	_, ok = tr.Get(2)
	assert.True(t, ok, "in-flight entry kept")
}

func TestTracker_Forget(t *testing.T) {
	tr := NewTracker()
	tr.Seed(seeded(3))
	tr.Forget(3)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	const docs = 50

	var wg sync.WaitGroup
	for i := uint(1); i <= docs; i++ {
		wg.Add(2)
		go func(id uint) {
			defer wg.Done()
			p := seeded(id)
			p.Filename = fmt.Sprintf("doc-%d.md", id)
			tr.Seed(p)
			tr.Advance(id, domain.DocumentStatusProcessing, 50, "")
			tr.Advance(id, domain.DocumentStatusCompleted, 100, "")
		}(i)
		go func(id uint) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if p, ok := tr.Get(id); ok {
					assert.Equal(t, fmt.Sprintf("doc-%d.md", id), p.Filename)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, docs, tr.Len())
	for i := uint(1); i <= docs; i++ {
		p, ok := tr.Get(i)
		require.True(t, ok)
		assert.Equal(t, domain.DocumentStatusCompleted, p.Status)
	}
}
