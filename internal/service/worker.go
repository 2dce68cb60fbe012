package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/timmy/doclens/internal/domain"
	"github.com/timmy/doclens/internal/logger"
	"github.com/timmy/doclens/internal/progress"
	"github.com/timmy/doclens/internal/storage"
)

// Job is one queued ingestion: everything the worker needs without re-reading the record.
type Job struct {
	DocumentID  uint
	OwnerID     uint
	Filename    string
	ContentType string
	FilePath    string
}

// JobFromDocument builds the ingestion job for a stored record.
func JobFromDocument(doc *domain.Document) Job {
	return Job{
		DocumentID:  doc.ID,
		OwnerID:     doc.OwnerID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		FilePath:    doc.FilePath,
	}
}

// IngestWorker runs a single document through extraction and indexing and records
// the outcome in both the durable store and the progress tracker.
type IngestWorker struct {
	store     DocumentStore
	storage   storage.ObjectStorage
	extractor TextExtractor
	indexer   Indexer
	tracker   *progress.Tracker
	timeout   time.Duration
}

// NewIngestWorker creates an IngestWorker. A zero timeout disables the per-job deadline.
func NewIngestWorker(
	store DocumentStore,
	objectStorage storage.ObjectStorage,
	extractor TextExtractor,
	indexer Indexer,
	tracker *progress.Tracker,
	timeout time.Duration,
) *IngestWorker {
	return &IngestWorker{
		store:     store,
		storage:   objectStorage,
		extractor: extractor,
		indexer:   indexer,
		tracker:   tracker,
		timeout:   timeout,
	}
}

// Run processes job to a terminal status. The returned error is the ingestion
// failure, already recorded; callers only need it for reporting.
func (w *IngestWorker) Run(ctx context.Context, job Job) (err error) {
	ctx = logger.WithDocument(ctx, "ingest_worker", job.DocumentID, job.OwnerID)
	// Final status writes must land even when the job context has expired.
	finalCtx := context.WithoutCancel(ctx)
	start := time.Now()

	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(ctx, "Ingestion panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("ingestion panicked: %v", r)
			w.fail(finalCtx, job, err.Error())
		}
	}()

	if err := w.store.Transition(jobCtx, job.DocumentID, domain.DocumentStatusProcessing, ""); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			// Deleted, or already picked up by another process.
			logger.CtxWarn(ctx, "Skipping ingestion: %v", err)
			w.tracker.Forget(job.DocumentID)
			return err
		}
		w.fail(finalCtx, job, w.failureMessage(ctx, jobCtx, err))
		return err
	}
	w.tracker.Advance(job.DocumentID, domain.DocumentStatusProcessing, domain.ProgressProcessing, "")

	if err := w.process(jobCtx, job); err != nil {
		msg := w.failureMessage(ctx, jobCtx, err)
		w.fail(finalCtx, job, msg)
		logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
			WithStatus(string(domain.DocumentStatusFailed)).Warn(ctx, "Ingestion failed: %s", msg)
		return errors.New(msg)
	}

	if err := w.store.Transition(finalCtx, job.DocumentID, domain.DocumentStatusCompleted, ""); err != nil {
		msg := fmt.Sprintf("failed to record completion: %v", err)
		w.fail(finalCtx, job, msg)
		return errors.New(msg)
	}
	w.tracker.Advance(job.DocumentID, domain.DocumentStatusCompleted, domain.ProgressDone, "")

	logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
		WithStatus(string(domain.DocumentStatusCompleted)).Info(ctx, "Ingestion completed")
	return nil
}

func (w *IngestWorker) process(ctx context.Context, job Job) error {
	rc, err := w.storage.Download(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrStorageFailure, job.FilePath, err)
	}

	text, err := w.extractor.Extract(ctx, job.ContentType, data)
	if err != nil {
		return err
	}
	logger.With(logger.Fields{logger.FieldSize: len(text)}).Info(ctx, "Extracted text")

	return w.indexer.Index(ctx, IndexRequest{
		DocumentID: job.DocumentID,
		OwnerID:    job.OwnerID,
		Filename:   job.Filename,
		Text:       text,
	})
}

// failureMessage reports deadline and shutdown aborts in words rather than as context errors.
func (w *IngestWorker) failureMessage(parent, jobCtx context.Context, err error) string {
	switch {
	case parent.Err() != nil:
		return "ingestion cancelled: service shutting down"
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("ingestion timed out after %s", w.timeout)
	default:
		return err.Error()
	}
}

// fail records msg as the terminal failure of job and withdraws any chunks the
// job managed to index, including after a timeout or a failed completion write.
func (w *IngestWorker) fail(ctx context.Context, job Job, msg string) {
	if err := w.indexer.Remove(ctx, job.DocumentID); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to remove chunks of failed document")
	}
	w.tracker.Advance(job.DocumentID, domain.DocumentStatusFailed, 0, msg)
	if err := w.store.Transition(ctx, job.DocumentID, domain.DocumentStatusFailed, msg); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to record ingestion failure")
	}
}
