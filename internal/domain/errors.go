package domain

import "errors"

// Sentinel errors for the ingestion pipeline. Wrap with fmt.Errorf("...: %w", err)
// and match with errors.Is.
var (
	// ErrUnsupportedContentType is returned when an upload is not PDF, DOCX or Markdown.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrStorageFailure is returned when uploaded bytes cannot be stored or read back.
	ErrStorageFailure = errors.New("storage failure")

	// ErrExtractionFailure marks a document whose text could not be decoded.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrIndexingFailure marks a document the retrieval index rejected.
	ErrIndexingFailure = errors.New("indexing failure")

	// ErrNotFound is returned when no record owned by the caller matches.
	ErrNotFound = errors.New("not found")

	// ErrQueueFull is returned when the ingestion queue has no free slot.
	ErrQueueFull = errors.New("ingestion queue full")

	// ErrDispatcherClosed is returned for submissions after shutdown began.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrInvalidTransition is returned when a status update would move a record backwards.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrEmptyQuestion = errors.New("question is empty")

	ErrInvalidQueryMode = errors.New("invalid query mode")
)
