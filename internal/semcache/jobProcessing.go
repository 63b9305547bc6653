package semcache

import (
	"context"
	"time"

	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
)

// ProcessJob executes one queued job end to end and returns the job with its
// terminal state filled in. The worker persists whatever comes back, it
// never inspects the payload itself.
func (s *service) ProcessJob(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	switch job.JobType {
	case jobmodel.JobTypeIngest:
		return s.processIngestJob(ctx, job)
	case jobmodel.JobTypeUpload:
		return s.processUploadJob(ctx, job)
	case jobmodel.JobTypeReconcile:
		return s.processReconcileJob(ctx, job)
	case jobmodel.JobTypeRemove:
		return s.processRemoveJob(ctx, job)
	default:
		return s.jobError(job, nil, "unknown job type "+string(job.JobType))
	}
}

func (s *service) processIngestJob(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.IngestChunking

	documentId, err := s.IngestDocument(ctx, docmodel.SourceDocument{
		Name:     job.JobPayload.DocumentName,
		Content:  job.JobPayload.Content,
		Metadata: job.JobPayload.Metadata,
	})
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE")
	}
	job.JobPayload.DocumentId = documentId
	return completeJob(job)
}

func (s *service) processUploadJob(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.IngestExtracting

	documentId, err := s.IngestFile(ctx, job.JobPayload.UploadPath, job.JobPayload.Metadata)
	if err != nil {
		return s.jobError(job, err, "UPLOAD_INGESTION_FAILURE")
	}
	job.JobPayload.DocumentId = documentId
	return completeJob(job)
}

func (s *service) processReconcileJob(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.Reconciling

	summary, err := s.Reconcile(ctx, job.JobPayload.SourceDocuments)
	if err != nil {
		return s.jobError(job, err, "RECONCILE_FAILURE")
	}
	job.JobPayload.Summary = &summary
	// the raw document set has done its job, keep the stored record small
	job.JobPayload.SourceDocuments = nil
	return completeJob(job)
}

func (s *service) processRemoveJob(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.Removing

	if err := s.RemoveDocument(ctx, job.JobPayload.DocumentId); err != nil {
		return s.jobError(job, err, "REMOVAL_FAILURE")
	}
	return completeJob(job)
}

func completeJob(job jobmodel.Job) jobmodel.Job {
	job.Status = jobmodel.JobStatusComplete
	job.CurrentStep = jobmodel.Complete
	job.EndTime = time.Now().UTC()
	return job
}
