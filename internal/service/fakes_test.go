package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/extract"
	"github.com/timmy/doclens/internal/progress"
	"github.com/timmy/doclens/internal/repository"
	"github.com/timmy/doclens/internal/storage"
)

// memStore is an in-memory DocumentStore that enforces the same transition rules
// as the gorm repository.
type memStore struct {
	mu     sync.Mutex
	nextID uint
	docs   map[uint]domain.Document
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uint]domain.Document)}
}

func (m *memStore) Create(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	doc.ID = m.nextID
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusUploading
	}
	doc.UploadedAt = time.Now()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (m *memStore) GetOwned(ctx context.Context, id, ownerID uint) (*domain.Document, error) {
	doc, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID uint) ([]domain.Document, error) {
	return m.list(func(d domain.Document) bool { return d.OwnerID == ownerID }), nil
}

func (m *memStore) ListByStatus(_ context.Context, statuses ...domain.DocumentStatus) ([]domain.Document, error) {
	return m.list(func(d domain.Document) bool {
		for _, s := range statuses {
			if d.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) list(keep func(domain.Document) bool) []domain.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Document
	for _, d := range m.docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) Transition(ctx context.Context, id uint, to domain.DocumentStatus, errMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(doc.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, doc.Status, to)
	}
	doc.Status = to
	if to == domain.DocumentStatusProcessing {
		now := time.Now()
		doc.StartedAt = &now
	}
	if to.IsTerminal() {
		now := time.Now()
		doc.ProcessedAt = &now
	}
	if to == domain.DocumentStatusFailed {
		doc.ErrorMessage = errMessage
	}
	m.docs[id] = doc
	return nil
}

func (m *memStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// backdate moves a record's processing start into the past.
func (m *memStore) backdate(id uint, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[id]
	started := time.Now().Add(-by)
	doc.StartedAt = &started
	m.docs[id] = doc
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// recordingIndexer captures index requests and delegates to hook when set.
type recordingIndexer struct {
	mu       sync.Mutex
	requests []IndexRequest
	removed  []uint
	hook     func(ctx context.Context, req IndexRequest) error
}

func (r *recordingIndexer) Remove(_ context.Context, documentID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, documentID)
	return nil
}

func (r *recordingIndexer) removals() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.removed...)
}

func (r *recordingIndexer) Index(ctx context.Context, req IndexRequest) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		return hook(ctx, req)
	}
	return nil
}

func (r *recordingIndexer) calls() []IndexRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]IndexRequest(nil), r.requests...)
}

// failingStorage wraps an ObjectStorage and fails selected operations.
type failingStorage struct {
	storage.ObjectStorage
	uploadErr   error
	downloadErr error
}

func (f *failingStorage) Upload(ctx context.Context, key string, r io.Reader, ct string) (int64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	return f.ObjectStorage.Upload(ctx, key, r, ct)
}

func (f *failingStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.ObjectStorage.Download(ctx, key)
}

// pipeline bundles a dispatcher with everything it touches.
type pipeline struct {
	store      *memStore
	storage    storage.ObjectStorage
	tracker    *progress.Tracker
	indexer    *recordingIndexer
	worker     *IngestWorker
	dispatcher *Dispatcher
	status     *StatusService
}

type pipelineOpts struct {
	workers   int
	queueSize int
	timeout    time.Duration
	staleAfter time.Duration
	storage    func(storage.ObjectStorage) storage.ObjectStorage
	// store is shared with another pipeline when set.
	store *memStore
}

func newPipeline(t *testing.T, opts pipelineOpts) *pipeline {
	t.Helper()
	if opts.workers == 0 {
		opts.workers = 2
	}
	if opts.queueSize == 0 {
		opts.queueSize = 16
	}
	if opts.timeout == 0 {
		opts.timeout = 5 * time.Second
	}

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	var objects storage.ObjectStorage = local
	if opts.storage != nil {
		objects = opts.storage(local)
	}

	if opts.store == nil {
		opts.store = newMemStore()
	}

	p := &pipeline{
		store:   opts.store,
		storage: objects,
		tracker: progress.NewTracker(),
		indexer: &recordingIndexer{},
	}
	p.worker = NewIngestWorker(p.store, p.storage, extract.NewRegistry(), p.indexer, p.tracker, opts.timeout)
	p.dispatcher, err = NewDispatcher(p.store, p.storage, p.tracker, p.worker, &DispatcherConfig{
		Workers:    opts.workers,
		QueueSize:  opts.queueSize,
		StaleAfter: opts.staleAfter,
	})
	require.NoError(t, err)
	p.status = NewStatusService(p.store, p.tracker)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.dispatcher.Stop(ctx)
	})
	return p
}

// waitTerminal polls the status query until the document reaches a terminal status.
func (p *pipeline) waitTerminal(t *testing.T, id, owner uint) *domain.UploadStatus {
	t.Helper()
	var last *domain.UploadStatus
	require.Eventually(t, func() bool {
		st, err := p.status.GetStatus(context.Background(), id, owner)
		if err != nil {
			return false
		}
		last = st
		return st.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return last
}

var errBoom = errors.New("boom")

// fakeVectors is an in-memory VectorStore. When failBatch is set, only the
// upsert call with that 1-based number fails.
type fakeVectors struct {
	mu        sync.Mutex
	points    map[string]repository.ChunkPoint
	deleted   []uint
	upsertErr error
	failBatch int
	upserts   int
	results   []repository.SearchResult
	searchK   int
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{points: make(map[string]repository.ChunkPoint)}
}

func (f *fakeVectors) UpsertChunks(_ context.Context, chunks []repository.ChunkPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	if f.failBatch > 0 && f.upserts == f.failBatch {
		return errBoom
	}
	for _, c := range chunks {
		f.points[c.ID] = c
	}
	return nil
}

func (f *fakeVectors) Search(_ context.Context, _ []float32, topK int, _ uint) ([]repository.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchK = topK
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeVectors) DeleteDocument(_ context.Context, documentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	for id, p := range f.points {
		if p.Payload.DocumentID == documentID {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeVectors) countFor(documentID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.points {
		if p.Payload.DocumentID == documentID {
			n++
		}
	}
	return n
}

// refusingStore is a DocumentStore that rejects one target status.
type refusingStore struct {
	*memStore
	refuse domain.DocumentStatus
}

func (s *refusingStore) Transition(ctx context.Context, id uint, to domain.DocumentStatus, errMessage string) error {
	if to == s.refuse {
		return errBoom
	}
	return s.memStore.Transition(ctx, id, to, errMessage)
}

// fakeEmbedder returns a fixed-size vector per text.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

// fakeCompleter records the prompt it was given.
type fakeCompleter struct {
	reply  string
	system string
	user   string
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.reply, nil
}
