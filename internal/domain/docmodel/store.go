package docmodel

import "context"

// DocumentStore is the persistence contract the retrieval engine and sync
// service run against. The production implementation is the neo4j-backed
// graph store; tests inject fakes.
type DocumentStore interface {
	// Initialize idempotently ensures uniqueness constraints and, when the
	// server supports it, a vector index sized to dimensions.
	Initialize(ctx context.Context, dimensions int) error

	UpsertDocument(ctx context.Context, doc Document) error
	// ReplaceChunks atomically swaps the whole chunk set of a document.
	ReplaceChunks(ctx context.Context, documentId string, chunks []Chunk) error
	RemoveDocument(ctx context.Context, id string) error
	Clear(ctx context.Context) error

	// KnownHashes returns documentId -> contentHash for the reconcile diff.
	KnownHashes(ctx context.Context) (map[string]string, error)
	// FindByContentHash reports whether any document already stores content
	// with this hash, returning its id.
	FindByContentHash(ctx context.Context, hash string) (string, bool, error)
	Stats(ctx context.Context) (Stats, error)

	// VectorQuery runs the native k-NN index search. When no usable vector
	// index exists it returns a fault of kind INDEX_UNAVAILABLE so the engine
	// can degrade.
	VectorQuery(ctx context.Context, vector []float32, k int) ([]QueryResult, error)
	// SampleChunks loads up to limit chunks with embeddings for the
	// brute-force scan.
	SampleChunks(ctx context.Context, limit int) ([]Chunk, error)
	// SiblingChunks returns up to n other chunks of the same owning document.
	SiblingChunks(ctx context.Context, chunkId string, n int) ([]QueryResult, error)
	// TextMatch is the last-resort substring scan over chunk content.
	TextMatch(ctx context.Context, query string, k int) ([]QueryResult, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
