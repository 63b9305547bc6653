package semcache

import (
	"context"
	"path/filepath"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/internal/ingest"
	"github.com/vharia/threatlens/internal/metrics"
	"github.com/vharia/threatlens/internal/retrieval"
	"github.com/vharia/threatlens/internal/syncer"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Service is the one surface the workers and handlers call. They never touch
// the store, the embedding gateway or the retrieval engine directly, which
// keeps those swappable for mocks in tests.
type Service interface {
	IngestDocument(ctx context.Context, doc docmodel.SourceDocument) (string, error)
	IngestFile(ctx context.Context, path string, metadata map[string]any) (string, error)
	Search(ctx context.Context, query string, k int, providerHint string, expand bool) ([]docmodel.QueryResult, retrieval.Path, error)
	FanOutSearch(ctx context.Context, queries []string, k int, providerHint string) ([]docmodel.QueryResult, error)
	SearchWithContext(ctx context.Context, query string, k int, providerHint string) (docmodel.ContextResult, error)
	Reconcile(ctx context.Context, desired []docmodel.SourceDocument) (docmodel.ReconcileSummary, error)
	RemoveDocument(ctx context.Context, id string) error
	Stats(ctx context.Context) (docmodel.Stats, error)
	Clear(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	ProcessJob(ctx context.Context, job jobmodel.Job) jobmodel.Job
}

type service struct {
	gateway *embedding.Gateway
	store   docmodel.DocumentStore
	engine  *retrieval.Engine
	syncer  *syncer.Syncer
	logger  *logger_i.Logger
}

// NewService wires the facade. The syncer reuses the facade itself as its
// ingestor, so a reconcile run goes through the exact same pipeline as a
// direct ingest.
func NewService(gateway *embedding.Gateway, store docmodel.DocumentStore, engine *retrieval.Engine) Service {
	s := &service{
		gateway: gateway,
		store:   store,
		engine:  engine,
		logger:  logger_i.NewLogger("SemCache Service :"),
	}
	s.syncer = syncer.NewSyncer(store, s)
	return s
}

// IngestDocument runs the full pipeline for one in-memory document: hash,
// chunk, embed, persist. Content already present in the store under any
// identity is skipped without touching a provider. Returns the id the
// document lives under.
func (s *service) IngestDocument(ctx context.Context, doc docmodel.SourceDocument) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	hash := ingest.ComputeContentHash(doc.Content)
	if existingId, found, err := s.store.FindByContentHash(ctx, hash); err == nil && found {
		s.logger.Debug("content already ingested", "document", doc.Name, "existingId", existingId)
		return existingId, nil
	}

	chunks, err := s.executeChunkingStep(doc)
	if err != nil {
		return "", err
	}

	vectors, err := s.executeEmbeddingStep(ctx, chunks)
	if err != nil {
		return "", err
	}

	documentId := doc.Name
	docChunks := make([]docmodel.Chunk, len(chunks))
	for i, text := range chunks {
		docChunks[i] = docmodel.Chunk{
			Id:         docmodel.ChunkId(documentId, i),
			DocumentId: documentId,
			Text:       text,
			Index:      i,
			Size:       len(text),
			Embedding:  vectors[i],
			Metadata:   doc.Metadata,
		}
	}

	document := docmodel.Document{
		Id:          documentId,
		ContentHash: hash,
		Content:     doc.Content,
		Size:        len(doc.Content),
		UploadedAt:  time.Now().UTC(),
		Metadata:    doc.Metadata,
	}
	if err := s.executeStoreStep(ctx, document, docChunks); err != nil {
		return "", err
	}

	s.logger.Info("document ingested", "id", documentId, "chunks", len(docChunks))
	return documentId, nil
}

// IngestFile extracts text from a file on disk before running the normal
// pipeline. PDFs, docx, txt, rtf, odt and markdown are supported.
func (s *service) IngestFile(ctx context.Context, path string, metadata map[string]any) (string, error) {
	content, err := ingest.ExtractText(path)
	if err != nil {
		return "", err
	}
	return s.IngestDocument(ctx, docmodel.SourceDocument{
		Name:     filepath.Base(path),
		Content:  content,
		Metadata: metadata,
	})
}

func (s *service) Search(ctx context.Context, query string, k int, providerHint string, expand bool) ([]docmodel.QueryResult, retrieval.Path, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("search", time.Since(start)) }()

	results, path, err := s.engine.Search(ctx, query, k, providerHint)
	if err != nil {
		return nil, path, err
	}
	if expand && len(results) > 0 {
		results, err = s.engine.Expand(ctx, results, k)
		if err != nil {
			return nil, path, err
		}
	}
	return results, path, nil
}

func (s *service) FanOutSearch(ctx context.Context, queries []string, k int, providerHint string) ([]docmodel.QueryResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("fanout_search", time.Since(start)) }()

	return s.engine.FanOut(ctx, queries, k, providerHint)
}

// SearchWithContext packages a search into a ready-to-prompt context block:
// the matched chunks concatenated, their source documents, and a confidence
// score derived from the mean match score.
func (s *service) SearchWithContext(ctx context.Context, query string, k int, providerHint string) (docmodel.ContextResult, error) {
	results, _, err := s.Search(ctx, query, k, providerHint, true)
	if err != nil {
		return docmodel.ContextResult{}, err
	}
	return buildContextResult(results), nil
}

func (s *service) Reconcile(ctx context.Context, desired []docmodel.SourceDocument) (docmodel.ReconcileSummary, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("reconcile", time.Since(start)) }()

	return s.syncer.Reconcile(ctx, desired)
}

func (s *service) RemoveDocument(ctx context.Context, id string) error {
	return s.store.RemoveDocument(ctx, id)
}

func (s *service) Stats(ctx context.Context) (docmodel.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *service) Clear(ctx context.Context) error {
	s.logger.Warn("clearing all documents and chunks")
	return s.store.Clear(ctx)
}

func (s *service) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

func (s *service) executeChunkingStep(doc docmodel.SourceDocument) ([]string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("chunking", time.Since(start)) }()

	kind := ingest.DetectKind(doc.Name, doc.Content)
	return ingest.Split(doc.Content, kind)
}

func (s *service) executeEmbeddingStep(ctx context.Context, chunks []string) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	embedCtx, cancel := context.WithTimeout(ctx, config.EmbeddingCallTimeout*time.Duration(len(chunks)))
	defer cancel()
	return s.gateway.Embed(embedCtx, chunks, "")
}

func (s *service) executeStoreStep(ctx context.Context, document docmodel.Document, chunks []docmodel.Chunk) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("store_write", time.Since(start)) }()

	if err := s.store.UpsertDocument(ctx, document); err != nil {
		return err
	}
	return s.store.ReplaceChunks(ctx, document.Id, chunks)
}
