package retrieval_test

import (
	"context"

	"github.com/vharia/threatlens/internal/domain/docmodel"
)

// fakeStore implements docmodel.DocumentStore with overridable function
// fields, defaulting to a small healthy corpus.
type fakeStore struct {
	OnStats         func(ctx context.Context) (docmodel.Stats, error)
	OnVectorQuery   func(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error)
	OnSampleChunks  func(ctx context.Context, limit int) ([]docmodel.Chunk, error)
	OnSiblingChunks func(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error)
	OnTextMatch     func(ctx context.Context, query string, k int) ([]docmodel.QueryResult, error)
}

func (f *fakeStore) Initialize(ctx context.Context, dimensions int) error { return nil }

func (f *fakeStore) UpsertDocument(ctx context.Context, doc docmodel.Document) error { return nil }

func (f *fakeStore) ReplaceChunks(ctx context.Context, documentId string, chunks []docmodel.Chunk) error {
	return nil
}

func (f *fakeStore) RemoveDocument(ctx context.Context, id string) error { return nil }

func (f *fakeStore) Clear(ctx context.Context) error { return nil }

func (f *fakeStore) KnownHashes(ctx context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func (f *fakeStore) FindByContentHash(ctx context.Context, hash string) (string, bool, error) {
	return "", false, nil
}

func (f *fakeStore) Stats(ctx context.Context) (docmodel.Stats, error) {
	if f.OnStats != nil {
		return f.OnStats(ctx)
	}
	return docmodel.Stats{TotalDocuments: 1, TotalChunks: 3}, nil
}

func (f *fakeStore) VectorQuery(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
	if f.OnVectorQuery != nil {
		return f.OnVectorQuery(ctx, vector, k)
	}
	return []docmodel.QueryResult{}, nil
}

func (f *fakeStore) SampleChunks(ctx context.Context, limit int) ([]docmodel.Chunk, error) {
	if f.OnSampleChunks != nil {
		return f.OnSampleChunks(ctx, limit)
	}
	return []docmodel.Chunk{}, nil
}

func (f *fakeStore) SiblingChunks(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
	if f.OnSiblingChunks != nil {
		return f.OnSiblingChunks(ctx, chunkId, n)
	}
	return []docmodel.QueryResult{}, nil
}

func (f *fakeStore) TextMatch(ctx context.Context, query string, k int) ([]docmodel.QueryResult, error) {
	if f.OnTextMatch != nil {
		return f.OnTextMatch(ctx, query, k)
	}
	return []docmodel.QueryResult{}, nil
}

func (f *fakeStore) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeStore) Close(ctx context.Context) error { return nil }

// fixedProvider always answers with the same vector, so the engine's query
// embedding step is deterministic in tests.
type fixedProvider struct {
	vector []float32
	err    error
}

func (p *fixedProvider) Name() string      { return "fixed" }
func (p *fixedProvider) Dimensions() int   { return len(p.vector) }
func (p *fixedProvider) IsAvailable() bool { return true }

func (p *fixedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = p.vector
	}
	return vectors, nil
}

func (p *fixedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

// mappingProvider embeds each query text to a preset vector, so fan-out
// tests can steer the store per sub-query without shared counters.
type mappingProvider struct {
	vectors map[string][]float32
}

func (p *mappingProvider) Name() string      { return "mapping" }
func (p *mappingProvider) Dimensions() int   { return 2 }
func (p *mappingProvider) IsAvailable() bool { return true }

func (p *mappingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vectors[text]
	}
	return vectors, nil
}

func (p *mappingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.vectors[text], nil
}
