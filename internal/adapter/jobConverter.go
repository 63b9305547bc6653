package adapter

import (
	"fmt"
	"time"

	"github.com/vharia/threatlens/internal/api"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobmodel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:    string(job.Status),
		Document:  toDocumentResult(job.JobPayload),
		Reconcile: toReconcileResult(job.JobPayload.Summary),
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func toDocumentResult(payload jobmodel.JobPayload) *api.DocumentResult {
	if payload.DocumentId == "" {
		return nil
	}
	return &api.DocumentResult{DocumentId: payload.DocumentId}
}

func toReconcileResult(summary *docmodel.ReconcileSummary) *api.ReconcileResult {
	if summary == nil {
		return nil
	}
	return &api.ReconcileResult{
		Added:       summary.Added,
		Modified:    summary.Modified,
		Removed:     summary.Removed,
		Skipped:     summary.Skipped,
		TotalChunks: summary.TotalChunks,
		Failed:      summary.Failed,
		ElapsedMs:   summary.ElapsedMs,
	}
}

func ToSearchResponse(results []docmodel.QueryResult, strategy string) api.SearchResponse {
	converted := make([]api.SearchResult, 0, len(results))
	for _, result := range results {
		converted = append(converted, api.SearchResult{
			ChunkId:    result.ChunkId,
			Text:       result.ChunkText,
			DocumentId: result.DocumentId,
			Score:      result.Score,
			Origin:     result.Origin,
			Metadata:   result.DocumentMetadata,
		})
	}
	return api.SearchResponse{
		Results:  converted,
		Strategy: strategy,
		Count:    len(converted),
	}
}

func ToContextResponse(result docmodel.ContextResult) api.ContextResponse {
	return api.ContextResponse{
		Context:        result.ConcatenatedContext,
		Sources:        result.Sources,
		TotalDocuments: result.TotalDocuments,
		Confidence:     result.ConfidenceScore,
	}
}

func ToSourceDocuments(payloads []api.SourceDocumentPayload) []docmodel.SourceDocument {
	docs := make([]docmodel.SourceDocument, 0, len(payloads))
	for _, payload := range payloads {
		docs = append(docs, docmodel.SourceDocument{
			Name:     payload.Name,
			Content:  payload.Content,
			Metadata: payload.Metadata,
		})
	}
	return docs
}

func BadRequest(id string, message string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: message,
			Retry:   false,
		},
	}
}
