package worker

import (
	"context"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
	"github.com/vharia/threatlens/internal/metrics"
)

func (p *Pool) executeJob(currentJob jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(currentJob.Status), time.Since(start))
	}()

	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, currentJob.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout(currentJob.JobType))
	defer cancel()

	log := p.logger.With("traceId", currentJob.TraceId, "jobId", currentJob.Id)
	log.Debug("Processing job", "type", currentJob.JobType)

	p.saveJobState(ctx, currentJob, jobmodel.JobStatusRunning)

	currentJob = p.cacheService.ProcessJob(ctx, currentJob)

	if currentJob.Status != jobmodel.JobStatusError {
		currentJob.Status = jobmodel.JobStatusComplete
	}
	if currentJob.EndTime.IsZero() {
		currentJob.EndTime = time.Now().UTC()
	}
	if err := p.jobService.JobStore.SaveJob(ctx, currentJob); err != nil {
		log.Error("Failed to persist terminal job state", "error", err)
	}
}

// jobTimeout gives reconcile runs room to re-embed a whole corpus while
// keeping single-document jobs on a short leash.
func jobTimeout(jobType jobmodel.JobType) time.Duration {
	if jobType == jobmodel.JobTypeReconcile {
		return 10 * time.Minute
	}
	return 2 * time.Minute
}

func (p *Pool) saveJobState(ctx context.Context, currentJob jobmodel.Job, status jobmodel.JobStatus) {
	currentJob.Status = status
	if err := p.jobService.JobStore.SaveJob(ctx, currentJob); err != nil {
		p.logger.Error("Failed to update job status", "error", err)
	}
}
