package jobmodel

import (
	"context"
	"time"

	"github.com/vharia/threatlens/internal/domain/docmodel"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	IngestInit       InternalStatus = "IngestInit"
	IngestExtracting InternalStatus = "IngestExtracting"
	IngestChunking   InternalStatus = "IngestChunking"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	StoreWrite       InternalStatus = "StoreWrite"
	Reconciling      InternalStatus = "Reconciling"
	Removing         InternalStatus = "Removing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeIngest    JobType = "Ingest"
	JobTypeUpload    JobType = "Upload"
	JobTypeReconcile JobType = "Reconcile"
	JobTypeRemove    JobType = "Remove"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	DocumentName string         `json:"document_name,omitempty"`
	DocumentId   string         `json:"document_id,omitempty"`
	Content      string         `json:"content,omitempty"`
	UploadPath   string         `json:"upload_path,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	// reconcile input and output
	SourceDocuments []docmodel.SourceDocument  `json:"source_documents,omitempty"`
	Summary         *docmodel.ReconcileSummary `json:"summary,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
