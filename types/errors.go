package types

import "errors"

// Error taxonomy of the answering pipeline. Handlers map these onto HTTP
// statuses; internal provider error text is never shown to clients.
var (
	// ErrIngestion covers download, extraction, embedding and index-write
	// failures during ingestion. Not retried automatically; re-ingestion
	// is idempotent and converges.
	ErrIngestion = errors.New("ingestion failed")

	// ErrRetrieval is a hard vector index query failure. Distinct from the
	// soft zero-match fallback, which is not an error.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrModelConfiguration means no credential is available for the
	// resolved provider. Surfaced before any model call, client-correctable.
	ErrModelConfiguration = errors.New("model configuration error")

	// ErrGeneration is a streaming model call failing mid-stream. Partial
	// output is discarded and no assistant turn is persisted.
	ErrGeneration = errors.New("answer generation failed")

	// ErrUsageLimit is returned by the usage gate before any pipeline work.
	ErrUsageLimit = errors.New("usage limit reached")

	// ErrEmbedding is the single error kind the embedding client reports.
	ErrEmbedding = errors.New("embedding failed")

	ErrNotFound = errors.New("not found")
)
