package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Kind    string `json:"kind,omitempty" example:"TRANSIENT_PROVIDER"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type Result struct {
	Status    string           `json:"status"`
	Document  *DocumentResult  `json:"document,omitempty"`
	Reconcile *ReconcileResult `json:"reconcile,omitempty"`
}

type DocumentResult struct {
	DocumentId string `json:"document_id"`
}

type ReconcileResult struct {
	Added       int               `json:"added"`
	Modified    int               `json:"modified"`
	Removed     int               `json:"removed"`
	Skipped     int               `json:"skipped"`
	TotalChunks int               `json:"total_chunks"`
	Failed      map[string]string `json:"failed,omitempty"`
	ElapsedMs   int64             `json:"elapsed_ms"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type SearchResult struct {
	ChunkId    string         `json:"chunk_id"`
	Text       string         `json:"text"`
	DocumentId string         `json:"document_id"`
	Score      float64        `json:"score"`
	Origin     string         `json:"origin,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Strategy string         `json:"strategy"`
	Count    int            `json:"count"`
}

type ContextResponse struct {
	Context        string   `json:"context"`
	Sources        []string `json:"sources"`
	TotalDocuments int      `json:"total_documents"`
	Confidence     float64  `json:"confidence"`
}

type StatsResponse struct {
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
}

// requests---------------------

type SourceDocumentPayload struct {
	Name     string         `json:"name" validate:"required"`
	Content  string         `json:"content" validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type IngestDocumentRequest struct {
	DocumentName string         `json:"document_name" validate:"required"`
	Content      string         `json:"content" validate:"required"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type SearchRequest struct {
	Query    string `json:"query" validate:"required"`
	Limit    int    `json:"limit,omitempty"`
	Provider string `json:"provider,omitempty"`
	Expand   bool   `json:"expand,omitempty"`
}

type FanOutSearchRequest struct {
	Queries  []string `json:"queries" validate:"required"`
	Limit    int      `json:"limit,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

type ContextSearchRequest struct {
	Query    string `json:"query" validate:"required"`
	Limit    int    `json:"limit,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type ReconcileRequest struct {
	Documents []SourceDocumentPayload `json:"documents" validate:"required"`
}
