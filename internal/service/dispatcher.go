package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/logger"
	"github.com/timmy/doclens/internal/progress"
	"github.com/timmy/doclens/internal/storage"
)

// RestartInterruptedMessage is recorded on documents that were mid-ingestion when the process stopped.
const RestartInterruptedMessage = "ingestion interrupted by restart"

const defaultStaleAfter = 15 * time.Minute

// DispatcherConfig sizes the ingestion queue and worker pool.
// StaleAfter is how long a record may stay in processing before recovery treats
// it as abandoned. It must exceed the job timeout: any live worker, in this
// process or another, finishes or fails its job within that time.
type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	StaleAfter time.Duration
}

// Dispatcher accepts uploads, persists them and hands ingestion jobs to a bounded
// worker pool. Submit never waits for ingestion.
type Dispatcher struct {
	store   DocumentStore
	storage storage.ObjectStorage
	tracker *progress.Tracker
	worker  *IngestWorker

	queue chan Job
	pool  *ants.Pool

	mu      sync.RWMutex
	closed  bool
	started bool

	baseCtx    context.Context
	cancelJobs context.CancelFunc
	feederDone chan struct{}
	running    sync.WaitGroup

	staleAfter time.Duration
	now        func() time.Time
}

// NewDispatcher creates a Dispatcher. Call Start before submitting and Stop on shutdown.
func NewDispatcher(
	store DocumentStore,
	objectStorage storage.ObjectStorage,
	tracker *progress.Tracker,
	worker *IngestWorker,
	cfg *DispatcherConfig,
) (*Dispatcher, error) {
	if cfg.Workers <= 0 || cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("invalid dispatcher config: workers=%d queue_size=%d", cfg.Workers, cfg.QueueSize)
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:      store,
		storage:    objectStorage,
		tracker:    tracker,
		worker:     worker,
		queue:      make(chan Job, cfg.QueueSize),
		pool:       pool,
		baseCtx:    baseCtx,
		cancelJobs: cancel,
		feederDone: make(chan struct{}),
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

// Start launches the feeder that moves queued jobs into the worker pool.
// The logger carried by ctx is inherited by every job.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.baseCtx = logger.FromContext(ctx).WithContext(d.baseCtx)
	go d.feed()
}

func (d *Dispatcher) feed() {
	defer close(d.feederDone)
	for job := range d.queue {
		d.running.Add(1)
		err := d.pool.Submit(func() {
			defer d.running.Done()
			_ = d.worker.Run(d.baseCtx, job)
		})
		if err != nil {
			d.running.Done()
			logger.CtxError(d.baseCtx, "Failed to schedule ingestion for document %d: %v", job.DocumentID, err)
			d.worker.fail(context.WithoutCancel(d.baseCtx), job, fmt.Sprintf("failed to schedule ingestion: %v", err))
		}
	}
}

// StorageKey builds the object key for an upload:
// <owner>/<yyyymmddhhmmss>_<8 hex chars>_<base filename>.
func StorageKey(ownerID uint, filename string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d/%s_%s_%s", ownerID, now.UTC().Format("20060102150405"), suffix, base)
}

// Submit validates and stores an upload, creates its record in status uploading,
// seeds its progress at 25 and enqueues it for ingestion.
// Parameters:
//   - ctx: request context; only bounds the synchronous storage and record writes.
//   - ownerID: authenticated uploader.
//   - filename: client-supplied name, kept on the record.
//   - contentType: declared media type; parameters after ';' are ignored.
//   - r: file contents.
//
// Returns:
//   - *domain.Document: the created record.
//   - error: ErrUnsupportedContentType, ErrStorageFailure, ErrQueueFull, ErrDispatcherClosed
//     or a record store error. Nothing is left behind on error.
func (d *Dispatcher) Submit(ctx context.Context, ownerID uint, filename, contentType string, r io.Reader) (*domain.Document, error) {
	normalized := domain.NormalizeContentType(contentType)
	if !domain.IsAllowedContentType(normalized) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedContentType, contentType)
	}
	if d.isClosed() {
		return nil, domain.ErrDispatcherClosed
	}

	cleanupCtx := context.WithoutCancel(ctx)
	key := StorageKey(ownerID, filename, d.now())
	if _, err := d.storage.Upload(ctx, key, r, normalized); err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", domain.ErrStorageFailure, key, err)
	}

	size, err := d.storage.Size(ctx, key)
	if err != nil {
		d.deleteBlob(cleanupCtx, key)
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrStorageFailure, key, err)
	}

	doc := &domain.Document{
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: normalized,
		FilePath:    key,
		FileSize:    size,
		Status:      domain.DocumentStatusUploading,
	}
	if err := d.store.Create(ctx, doc); err != nil {
		d.deleteBlob(cleanupCtx, key)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	d.seed(doc)
	if err := d.enqueue(JobFromDocument(doc)); err != nil {
		d.rollback(cleanupCtx, doc)
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldDocumentID: doc.ID,
		logger.FieldSize:       size,
	}).Info(ctx, "Document accepted for ingestion")
	return doc, nil
}

// Recover repairs state left by an unclean stop. Abandoned processing records
// (see FailStale) are failed and uploading records are queued again. Records a
// live worker elsewhere is processing are left alone; an uploading record that
// another process also holds is run once, because the move to processing is
// conditional. Recover blocks while the queue is full.
// Returns how many records were requeued and failed.
func (d *Dispatcher) Recover(ctx context.Context) (requeued, failed int, err error) {
	failed, err = d.FailStale(ctx)
	if err != nil {
		return 0, failed, err
	}

	pending, err := d.store.ListByStatus(ctx, domain.DocumentStatusUploading)
	if err != nil {
		return requeued, failed, fmt.Errorf("list uploading documents: %w", err)
	}
	for i := range pending {
		doc := &pending[i]
		d.seed(doc)
		if err := d.enqueueWait(ctx, JobFromDocument(doc)); err != nil {
			d.tracker.Forget(doc.ID)
			return requeued, failed, err
		}
		requeued++
	}

	logger.With(logger.Fields{"requeued": requeued, "failed": failed}).
		Info(ctx, "Recovered ingestion state")
	return requeued, failed, nil
}

// FailStale marks processing records whose processing started more than
// StaleAfter ago as failed. No live worker can still own them.
func (d *Dispatcher) FailStale(ctx context.Context) (int, error) {
	processing, err := d.store.ListByStatus(ctx, domain.DocumentStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}

	cutoff := d.now().Add(-d.staleAfter)
	failed, live := 0, 0
	for _, doc := range processing {
		started := doc.UploadedAt
		if doc.StartedAt != nil {
			started = *doc.StartedAt
		}
		if started.After(cutoff) {
			live++
			continue
		}
		if err := d.store.Transition(ctx, doc.ID, domain.DocumentStatusFailed, RestartInterruptedMessage); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return failed, fmt.Errorf("fail document %d: %w", doc.ID, err)
		}
		if err := d.worker.indexer.Remove(ctx, doc.ID); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldDocumentID, doc.ID).
				Warn("Failed to remove chunks of interrupted document")
		}
		d.tracker.Forget(doc.ID)
		failed++
	}
	if live > 0 {
		logger.CtxInfo(ctx, "Left %d recently started document(s) to their workers", live)
	}
	return failed, nil
}

// RunStaleSweep calls FailStale every interval until ctx is done, so records
// abandoned by a crash shortly before startup are eventually failed too.
func (d *Dispatcher) RunStaleSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.FailStale(ctx); err != nil {
				logger.CtxWarn(ctx, "Stale ingestion sweep failed: %v", err)
			}
		}
	}
}

// Stop refuses new submissions, lets queued and running jobs finish and releases
// the pool. If ctx ends first, running jobs are cancelled and recorded as failed.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// Queued records stay uploading; Recover picks them up on the next start.
		d.pool.Release()
		d.cancelJobs()
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-d.feederDone
		d.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.pool.Release()
		d.cancelJobs()
		return nil
	case <-ctx.Done():
		d.cancelJobs()
		<-done
		d.pool.Release()
		return ctx.Err()
	}
}

// QueueLen reports how many jobs are waiting for a worker.
func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}

func (d *Dispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

func (d *Dispatcher) enqueue(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return domain.ErrDispatcherClosed
	}
	select {
	case d.queue <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

func (d *Dispatcher) enqueueWait(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return domain.ErrDispatcherClosed
	}
	select {
	case d.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) seed(doc *domain.Document) {
	d.tracker.Seed(domain.Progress{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Progress:    domain.ProgressUploaded,
		Status:      domain.DocumentStatusUploading,
	})
}

// rollback undoes a submission that could not be queued.
func (d *Dispatcher) rollback(ctx context.Context, doc *domain.Document) {
	d.tracker.Forget(doc.ID)
	if err := d.store.Delete(ctx, doc.ID); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to delete rejected document record")
	}
	d.deleteBlob(ctx, doc.FilePath)
}

func (d *Dispatcher) deleteBlob(ctx context.Context, key string) {
	if err := d.storage.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Failed to delete orphaned upload")
	}
}
