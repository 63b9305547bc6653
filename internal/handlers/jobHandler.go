package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
	"github.com/vharia/threatlens/internal/job"
	"github.com/vharia/threatlens/internal/metrics"
	"github.com/vharia/threatlens/internal/semcache"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Handler owns the HTTP-facing state: the job queue for async operations and
// the cache service for the synchronous search paths.
type Handler struct {
	jobService   *job.Service
	cacheService semcache.Service
	logger       *logger_i.Logger
}

func NewHandler(jobService *job.Service, cacheService semcache.Service) *Handler {
	return &Handler{
		jobService:   jobService,
		cacheService: cacheService,
		logger:       logger_i.NewLogger("RequestHandler"),
	}
}

type newJobData struct {
	id              string
	traceId         string
	jobType         jobmodel.JobType
	documentName    string
	documentId      string
	content         string
	uploadPath      string
	metadata        map[string]any
	sourceDocuments []docmodel.SourceDocument
}

func (h *Handler) createNewJob(newJob newJobData) {
	log := h.logger.With("traceId", newJob.traceId, "jobId", newJob.id)
	log.Info("Queueing new job", "type", newJob.jobType)

	queued := jobmodel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		JobType:     newJob.jobType,
		CreatedTime: time.Now().UTC(),
		Status:      jobmodel.JobStatusQueued,
		CurrentStep: initialStep(newJob.jobType),
		JobPayload: jobmodel.JobPayload{
			DocumentName:    newJob.documentName,
			DocumentId:      newJob.documentId,
			Content:         newJob.content,
			UploadPath:      newJob.uploadPath,
			Metadata:        newJob.metadata,
			SourceDocuments: newJob.sourceDocuments,
		},
	}

	metrics.IncrementJobsInQueue()

	// blocking send, backpressure instead of unbounded queueing
	h.jobService.JobChannel <- queued

	// heavy job types get a worker immediately, the rest amortise over
	// RequestsPerNewWorkerCount requests
	accurateCount := atomic.AddInt64(&h.jobService.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || isHeavyJob(newJob.jobType) {
		metrics.StartDispatcherSignalCount()
		h.jobService.DispatcherChannel <- true
	}
}

func (h *Handler) getJobStatus(id string, traceId string) (jobmodel.Job, bool) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	return h.jobService.JobStore.GetJob(ctx, id)
}

func initialStep(jobType jobmodel.JobType) jobmodel.InternalStatus {
	switch jobType {
	case jobmodel.JobTypeUpload:
		return jobmodel.IngestExtracting
	case jobmodel.JobTypeReconcile:
		return jobmodel.Reconciling
	case jobmodel.JobTypeRemove:
		return jobmodel.Removing
	default:
		return jobmodel.IngestInit
	}
}

func isHeavyJob(jobType jobmodel.JobType) bool {
	switch jobType {
	case jobmodel.JobTypeIngest, jobmodel.JobTypeUpload, jobmodel.JobTypeReconcile:
		return true
	default:
		return false
	}
}
