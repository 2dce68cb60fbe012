package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Fields attached to a context logger and inherited by every line below it.
const (
	FieldRequestID  = "request_id"
	FieldDocumentID = "document_id"
	FieldOwnerID    = "owner_id"
	// FieldComponent names the stage that logged: api, ingest_worker, retrieval.
	FieldComponent = "component"
)

// Per-line metric fields, set through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	// FieldSize is a byte count.
	FieldSize   = "size"
	FieldStatus = "status"
)
