package docmodel

import (
	"fmt"
	"time"
)

type Document struct {
	Id          string         `json:"id"`
	ContentHash string         `json:"content_hash"`
	Content     string         `json:"content"`
	Size        int            `json:"size"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Chunk struct {
	Id         string         `json:"chunk_id"`
	DocumentId string         `json:"document_id"`
	Text       string         `json:"content"`
	Index      int            `json:"chunk_index"`
	Size       int            `json:"size"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChunkId builds the stable chunk identity used as the graph node key.
func ChunkId(documentId string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentId, index)
}

// SourceDocument is one entry of the set the sync service reconciles against.
type SourceDocument struct {
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryResult pairs a matched chunk with its owning document and score.
// Origin is only set by fan-out retrieval and names the sub-query that
// surfaced the chunk.
type QueryResult struct {
	ChunkId          string         `json:"chunk_id"`
	ChunkText        string         `json:"chunk_text"`
	DocumentId       string         `json:"document_id"`
	DocumentMetadata map[string]any `json:"document_metadata,omitempty"`
	Score            float64        `json:"score"`
	Origin           string         `json:"origin,omitempty"`
}

type Stats struct {
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
}

// ReconcileSummary reports what a reconciliation pass did. Failed maps
// document name to the failure hint; partial failure never aborts the pass.
type ReconcileSummary struct {
	Added       int               `json:"added"`
	Modified    int               `json:"modified"`
	Removed     int               `json:"removed"`
	Skipped     int               `json:"skipped"`
	TotalChunks int               `json:"total_chunks"`
	Failed      map[string]string `json:"failed,omitempty"`
	ElapsedMs   int64             `json:"elapsed_ms"`
}

// ContextResult is the SearchWithContext payload handed to the prompt layer.
type ContextResult struct {
	ConcatenatedContext string   `json:"concatenated_context"`
	Sources             []string `json:"sources"`
	TotalDocuments      int      `json:"total_documents"`
	ConfidenceScore     float64  `json:"confidence_score"`
}
