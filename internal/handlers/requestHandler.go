package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vharia/threatlens/internal/adapter"
	"github.com/vharia/threatlens/internal/adapter/utils"
	"github.com/vharia/threatlens/internal/api"
	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
)

// HealthHandler godoc
// @Summary      Liveness and store connectivity check
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  api.JobResponse "Store unreachable"
// @Router       /health [get]
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.cacheService.HealthCheck(r.Context()); err != nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "", "document store unreachable")
		return
	}
	writeJsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PostIngestHandler godoc
// @Summary      Ingest a document from JSON content
// @Description  Queues a background ingestion job for the supplied document text and returns a job ID to track it.
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Param        request  body      api.IngestDocumentRequest  true  "Document name, content and optional metadata"
// @Success      202      {object}  api.InitJobResponse        "Job successfully created"
// @Failure      400      {object}  api.JobResponse            "Invalid request data"
// @Router       /documents [post]
func (h *Handler) PostIngestHandler(w http.ResponseWriter, request *http.Request) {
	if !h.validateContext(request.Context()) {
		h.logger.Warn("Invalid context by request", "remoteAddr", request.RemoteAddr)
		return
	}

	var requestData api.IngestDocumentRequest
	if !h.decodeBody(w, request, &requestData) {
		return
	}
	if requestData.DocumentName == "" || strings.TrimSpace(requestData.Content) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name and content are required")
		return
	}

	newData := newJobData{
		id:           utils.GetNewUUID(),
		traceId:      traceFromContext(request),
		jobType:      jobmodel.JobTypeIngest,
		documentName: requestData.DocumentName,
		content:      requestData.Content,
		metadata:     requestData.Metadata,
	}
	h.createNewJob(newData)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newData.id))
}

// PostUploadHandler godoc
// @Summary      Upload a document file for ingestion
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The PDF, DOCX, TXT or Markdown file to upload"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.JobResponse "Missing fields or file too large"
// @Failure      500  {object}  api.JobResponse "Storage or write error"
// @Router       /documents/upload [post]
func (h *Handler) PostUploadHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		h.logger.Warn("Invalid context by request", "remoteAddr", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		h.logger.Error("Couldn't get target directory", "error", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}

	newData := newJobData{
		id:           utils.GetNewUUID(),
		traceId:      traceFromContext(r),
		jobType:      jobmodel.JobTypeUpload,
		documentName: docName,
		uploadPath:   tempFilePath,
	}
	h.createNewJob(newData)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newData.id))
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found"
// @Router       /status/{id} [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	idString := utils.GetChiURLParam(r, "id")
	if idString == "" {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	result, isFound := h.getJobStatus(idString, traceFromContext(r))
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostSearchHandler godoc
// @Summary      Semantic search
// @Description  Embeds the query and returns the best matching chunks. The response names the strategy that produced the results, so a degraded text-match fallback is visible to the caller.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      api.SearchRequest   true  "Query, optional limit, provider and expansion flag"
// @Success      200      {object}  api.SearchResponse
// @Failure      400      {object}  api.JobResponse "Invalid request data"
// @Router       /search [post]
func (h *Handler) PostSearchHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	var requestData api.SearchRequest
	if !h.decodeBody(w, r, &requestData) {
		return
	}
	if requestData.Query == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "query is required")
		return
	}

	results, path, err := h.cacheService.Search(r.Context(), requestData.Query, requestData.Limit, requestData.Provider, requestData.Expand)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(results, string(path)))
}

// PostFanOutSearchHandler godoc
// @Summary      Parallel multi-query search
// @Description  Runs every sub-query concurrently and merges the deduplicated results, tagging each hit with the sub-query that found it.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      api.FanOutSearchRequest  true  "Sub-queries, optional limit and provider"
// @Success      200      {object}  api.SearchResponse
// @Failure      400      {object}  api.JobResponse "Invalid request data"
// @Router       /search/fanout [post]
func (h *Handler) PostFanOutSearchHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	var requestData api.FanOutSearchRequest
	if !h.decodeBody(w, r, &requestData) {
		return
	}
	if len(requestData.Queries) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "", "queries is required")
		return
	}

	results, err := h.cacheService.FanOutSearch(r.Context(), requestData.Queries, requestData.Limit, requestData.Provider)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(results, "fanout"))
}

// PostContextSearchHandler godoc
// @Summary      Search and build a prompt-ready context block
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      api.ContextSearchRequest  true  "Query, optional limit and provider"
// @Success      200      {object}  api.ContextResponse
// @Failure      400      {object}  api.JobResponse "Invalid request data"
// @Router       /search/context [post]
func (h *Handler) PostContextSearchHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	var requestData api.ContextSearchRequest
	if !h.decodeBody(w, r, &requestData) {
		return
	}
	if requestData.Query == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "query is required")
		return
	}

	result, err := h.cacheService.SearchWithContext(r.Context(), requestData.Query, requestData.Limit, requestData.Provider)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToContextResponse(result))
}

// PostReconcileHandler godoc
// @Summary      Reconcile the store against a desired document set
// @Description  Queues a background job that diffs the supplied documents against the stored content hashes and ingests, re-ingests or removes only what changed.
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Param        request  body      api.ReconcileRequest  true  "The full desired document set"
// @Success      202      {object}  api.InitJobResponse
// @Failure      400      {object}  api.JobResponse "Invalid request data"
// @Router       /reconcile [post]
func (h *Handler) PostReconcileHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	var requestData api.ReconcileRequest
	if !h.decodeBody(w, r, &requestData) {
		return
	}
	if requestData.Documents == nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "documents is required")
		return
	}

	newData := newJobData{
		id:              utils.GetNewUUID(),
		traceId:         traceFromContext(r),
		jobType:         jobmodel.JobTypeReconcile,
		sourceDocuments: adapter.ToSourceDocuments(requestData.Documents),
	}
	h.createNewJob(newData)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newData.id))
}

// DeleteDocumentHandler godoc
// @Summary      Remove a document and its chunks
// @Tags         Ingestion
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  api.InitJobResponse
// @Failure      400  {object}  api.JobResponse "Missing document id"
// @Router       /documents/{id} [delete]
func (h *Handler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	documentId := utils.GetChiURLParam(r, "id")
	if documentId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document id is required")
		return
	}

	newData := newJobData{
		id:         utils.GetNewUUID(),
		traceId:    traceFromContext(r),
		jobType:    jobmodel.JobTypeRemove,
		documentId: documentId,
	}
	h.createNewJob(newData)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newData.id))
}

// GetStatsHandler godoc
// @Summary      Corpus statistics
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  api.StatsResponse
// @Router       /stats [get]
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	stats, err := h.cacheService.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.StatsResponse{
		TotalDocuments: stats.TotalDocuments,
		TotalChunks:    stats.TotalChunks,
	})
}

// DeleteClearHandler godoc
// @Summary      Remove every document and chunk from the store
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /documents [delete]
func (h *Handler) DeleteClearHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}

	if err := h.cacheService.Clear(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			h.logger.Error("Couldn't close the request body reader", "error", err)
		}
	}(r.Body)

	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		h.logger.Warn("Bad request body", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	h.logger.Error("Service call failed", "error", err, "kind", faults.KindOf(err))

	code := http.StatusInternalServerError
	switch faults.KindOf(err) {
	case faults.KindEmptyDocument:
		code = http.StatusBadRequest
	case faults.KindConfiguration, faults.KindUnknownModel:
		code = http.StatusUnprocessableEntity
	case faults.KindStoreConnectivity:
		code = http.StatusServiceUnavailable
	}
	WriteErrorResponse(w, code, "", faults.HintOf(err))
}

func traceFromContext(r *http.Request) string {
	if trace, ok := r.Context().Value(config.TRACE_ID_KEY).(string); ok {
		return trace
	}
	return ""
}
