package semcache

import (
	"net/http"
	"strings"

	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
)

func buildContextResult(results []docmodel.QueryResult) docmodel.ContextResult {
	if len(results) == 0 {
		return docmodel.ContextResult{Sources: []string{}}
	}

	var builder strings.Builder
	seenDocs := make(map[string]bool)
	sources := make([]string, 0, len(results))
	var scoreSum float64
	for i, result := range results {
		if i > 0 {
			builder.WriteString("\n\n---\n\n")
		}
		builder.WriteString(result.ChunkText)
		scoreSum += result.Score
		if !seenDocs[result.DocumentId] {
			seenDocs[result.DocumentId] = true
			sources = append(sources, result.DocumentId)
		}
	}

	confidence := scoreSum / float64(len(results)) * 100
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}

	return docmodel.ContextResult{
		ConcatenatedContext: builder.String(),
		Sources:             sources,
		TotalDocuments:      len(sources),
		ConfidenceScore:     confidence,
	}
}

func (s *service) jobError(job jobmodel.Job, err error, message string) jobmodel.Job {
	s.logger.Error(message, "error", err, "jobId", job.Id)

	job.Error = jobmodel.JobError{
		Code:    http.StatusInternalServerError,
		Kind:    string(faults.KindOf(err)),
		Message: faults.HintOf(err),
		Retry:   faults.Retryable(err),
	}
	job.Status = jobmodel.JobStatusError
	job.CurrentStep = jobmodel.Error
	return job
}
