package semcache_test

import (
	"context"
	"sync"
	"testing"

	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/domain/jobmodel"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/internal/retrieval"
	"github.com/vharia/threatlens/internal/semcache"
)

type recordingStore struct {
	mu        sync.Mutex
	documents map[string]docmodel.Document
	chunks    map[string][]docmodel.Chunk
	removed   []string
	cleared   bool

	vectorResults []docmodel.QueryResult
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		documents: map[string]docmodel.Document{},
		chunks:    map[string][]docmodel.Chunk{},
	}
}

func (r *recordingStore) Initialize(ctx context.Context, dimensions int) error { return nil }

func (r *recordingStore) UpsertDocument(ctx context.Context, doc docmodel.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[doc.Id] = doc
	return nil
}

func (r *recordingStore) ReplaceChunks(ctx context.Context, documentId string, chunks []docmodel.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[documentId] = chunks
	return nil
}

func (r *recordingStore) RemoveDocument(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
	delete(r.documents, id)
	delete(r.chunks, id)
	return nil
}

func (r *recordingStore) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = true
	r.documents = map[string]docmodel.Document{}
	r.chunks = map[string][]docmodel.Chunk{}
	return nil
}

func (r *recordingStore) KnownHashes(ctx context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hashes := make(map[string]string, len(r.documents))
	for id, doc := range r.documents {
		hashes[id] = doc.ContentHash
	}
	return hashes, nil
}

func (r *recordingStore) FindByContentHash(ctx context.Context, hash string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, doc := range r.documents {
		if doc.ContentHash == hash {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (r *recordingStore) Stats(ctx context.Context) (docmodel.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var chunkCount int
	for _, chunks := range r.chunks {
		chunkCount += len(chunks)
	}
	return docmodel.Stats{TotalDocuments: len(r.documents), TotalChunks: chunkCount}, nil
}

func (r *recordingStore) VectorQuery(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
	return r.vectorResults, nil
}

func (r *recordingStore) SampleChunks(ctx context.Context, limit int) ([]docmodel.Chunk, error) {
	return nil, nil
}

func (r *recordingStore) SiblingChunks(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
	return []docmodel.QueryResult{}, nil
}

func (r *recordingStore) TextMatch(ctx context.Context, query string, k int) ([]docmodel.QueryResult, error) {
	return []docmodel.QueryResult{}, nil
}

func (r *recordingStore) HealthCheck(ctx context.Context) error { return nil }

func (r *recordingStore) Close(ctx context.Context) error { return nil }

type stubProvider struct{}

func (stubProvider) Name() string      { return "stub" }
func (stubProvider) Dimensions() int   { return 2 }
func (stubProvider) IsAvailable() bool { return true }

func (stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.3, 0.7}
	}
	return vectors, nil
}

func (stubProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.3, 0.7}, nil
}

func newTestService(store *recordingStore) semcache.Service {
	gateway := embedding.NewGateway(stubProvider{})
	engine := retrieval.NewEngine(gateway, store)
	return semcache.NewService(gateway, store, engine)
}

func TestIngestDocument_FullPipeline(t *testing.T) {
	store := newRecordingStore()
	service := newTestService(store)

	id, err := service.IngestDocument(context.Background(), docmodel.SourceDocument{
		Name:     "report.txt",
		Content:  "The incident began at 04:00 UTC when the first alert fired.",
		Metadata: map[string]any{"team": "ops"},
	})
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if id != "report.txt" {
		t.Errorf("document id = %s; want report.txt", id)
	}

	doc, found := store.documents["report.txt"]
	if !found {
		t.Fatal("document was not persisted")
	}
	if doc.ContentHash == "" {
		t.Error("content hash is empty")
	}

	chunks := store.chunks["report.txt"]
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short content, got %d", len(chunks))
	}
	if chunks[0].Id != "report.txt_chunk_0" {
		t.Errorf("chunk id = %s; want report.txt_chunk_0", chunks[0].Id)
	}
	if len(chunks[0].Embedding) != 2 {
		t.Errorf("chunk embedding has %d dims; want 2", len(chunks[0].Embedding))
	}
}

func TestIngestDocument_DuplicateContentSkipped(t *testing.T) {
	store := newRecordingStore()
	service := newTestService(store)

	first, err := service.IngestDocument(context.Background(), docmodel.SourceDocument{
		Name: "a.txt", Content: "identical content",
	})
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	second, err := service.IngestDocument(context.Background(), docmodel.SourceDocument{
		Name: "b.txt", Content: "identical content",
	})
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if second != first {
		t.Errorf("duplicate content got a new identity %s; want %s", second, first)
	}
	if len(store.documents) != 1 {
		t.Errorf("store holds %d documents; want 1", len(store.documents))
	}
}

func TestIngestDocument_EmptyContent(t *testing.T) {
	service := newTestService(newRecordingStore())

	_, err := service.IngestDocument(context.Background(), docmodel.SourceDocument{
		Name: "empty.txt", Content: "   \n\t ",
	})
	if err == nil {
		t.Fatal("expected an error for empty content")
	}
	if !faults.IsKind(err, faults.KindEmptyDocument) {
		t.Errorf("error kind = %v; want %v", faults.KindOf(err), faults.KindEmptyDocument)
	}
}

func TestSearchWithContext_Confidence(t *testing.T) {
	store := newRecordingStore()
	store.documents["doc"] = docmodel.Document{Id: "doc", ContentHash: "x"}
	store.chunks["doc"] = []docmodel.Chunk{{Id: "doc_chunk_0"}}
	store.vectorResults = []docmodel.QueryResult{
		{ChunkId: "doc_chunk_0", DocumentId: "doc", ChunkText: "first", Score: 0.8},
		{ChunkId: "doc_chunk_1", DocumentId: "doc", ChunkText: "second", Score: 0.6},
	}
	service := newTestService(store)

	result, err := service.SearchWithContext(context.Background(), "what happened", 5, "")
	if err != nil {
		t.Fatalf("SearchWithContext failed: %v", err)
	}
	if result.ConcatenatedContext == "" {
		t.Error("context block is empty")
	}
	if result.TotalDocuments != 1 {
		t.Errorf("TotalDocuments = %d; want 1", result.TotalDocuments)
	}
	if len(result.Sources) != 1 || result.Sources[0] != "doc" {
		t.Errorf("sources = %v; want the owning document id once", result.Sources)
	}
	want := (0.8 + 0.6) / 2 * 100
	if diff := result.ConfidenceScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v; want %v", result.ConfidenceScore, want)
	}
}

func TestSearchWithContext_EmptyStore(t *testing.T) {
	service := newTestService(newRecordingStore())

	result, err := service.SearchWithContext(context.Background(), "anything", 5, "")
	if err != nil {
		t.Fatalf("SearchWithContext on empty store errored: %v", err)
	}
	if result.ConfidenceScore != 0 {
		t.Errorf("confidence = %v; want 0", result.ConfidenceScore)
	}
	if result.Sources == nil {
		t.Error("sources should be an empty slice, not nil")
	}
}

func TestProcessJob_Ingest(t *testing.T) {
	store := newRecordingStore()
	service := newTestService(store)

	done := service.ProcessJob(context.Background(), jobmodel.Job{
		Id:      "job-1",
		JobType: jobmodel.JobTypeIngest,
		JobPayload: jobmodel.JobPayload{
			DocumentName: "notes.txt",
			Content:      "some meaningful text to index",
		},
	})
	if done.Status != jobmodel.JobStatusComplete {
		t.Fatalf("job status = %v; want %v (error: %+v)", done.Status, jobmodel.JobStatusComplete, done.Error)
	}
	if done.JobPayload.DocumentId != "notes.txt" {
		t.Errorf("payload document id = %s; want notes.txt", done.JobPayload.DocumentId)
	}
	if done.EndTime.IsZero() {
		t.Error("end time not set on completion")
	}
}

func TestProcessJob_IngestFailure(t *testing.T) {
	service := newTestService(newRecordingStore())

	done := service.ProcessJob(context.Background(), jobmodel.Job{
		Id:      "job-2",
		JobType: jobmodel.JobTypeIngest,
		JobPayload: jobmodel.JobPayload{
			DocumentName: "empty.txt",
			Content:      "",
		},
	})
	if done.Status != jobmodel.JobStatusError {
		t.Fatalf("job status = %v; want %v", done.Status, jobmodel.JobStatusError)
	}
	if done.Error.Kind != string(faults.KindEmptyDocument) {
		t.Errorf("error kind = %s; want %s", done.Error.Kind, faults.KindEmptyDocument)
	}
	if done.Error.Retry {
		t.Error("empty document errors must not be marked retryable")
	}
}

func TestProcessJob_Remove(t *testing.T) {
	store := newRecordingStore()
	store.documents["gone.txt"] = docmodel.Document{Id: "gone.txt"}
	service := newTestService(store)

	done := service.ProcessJob(context.Background(), jobmodel.Job{
		Id:         "job-3",
		JobType:    jobmodel.JobTypeRemove,
		JobPayload: jobmodel.JobPayload{DocumentId: "gone.txt"},
	})
	if done.Status != jobmodel.JobStatusComplete {
		t.Fatalf("job status = %v; want %v", done.Status, jobmodel.JobStatusComplete)
	}
	if len(store.removed) != 1 || store.removed[0] != "gone.txt" {
		t.Errorf("removed = %v; want [gone.txt]", store.removed)
	}
}

func TestProcessJob_Reconcile(t *testing.T) {
	store := newRecordingStore()
	service := newTestService(store)

	done := service.ProcessJob(context.Background(), jobmodel.Job{
		Id:      "job-4",
		JobType: jobmodel.JobTypeReconcile,
		JobPayload: jobmodel.JobPayload{
			SourceDocuments: []docmodel.SourceDocument{
				{Name: "one.txt", Content: "first document"},
				{Name: "two.txt", Content: "second document"},
			},
		},
	})
	if done.Status != jobmodel.JobStatusComplete {
		t.Fatalf("job status = %v; want %v (error: %+v)", done.Status, jobmodel.JobStatusComplete, done.Error)
	}
	if done.JobPayload.Summary == nil {
		t.Fatal("reconcile summary missing from payload")
	}
	if done.JobPayload.Summary.Added != 2 {
		t.Errorf("Added = %d; want 2", done.JobPayload.Summary.Added)
	}
	if done.JobPayload.SourceDocuments != nil {
		t.Error("raw source documents should be dropped from the stored job")
	}
}

func TestProcessJob_UnknownType(t *testing.T) {
	service := newTestService(newRecordingStore())

	done := service.ProcessJob(context.Background(), jobmodel.Job{
		Id:      "job-5",
		JobType: jobmodel.JobType("Mystery"),
	})
	if done.Status != jobmodel.JobStatusError {
		t.Errorf("job status = %v; want %v", done.Status, jobmodel.JobStatusError)
	}
}
