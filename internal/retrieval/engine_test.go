package retrieval_test

import (
	"context"
	"sort"
	"testing"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/internal/retrieval"
)

func newTestEngine(store *fakeStore, provider embedding.Provider) *retrieval.Engine {
	return retrieval.NewEngine(embedding.NewGateway(provider), store)
}

func TestSearch_EmptyStore(t *testing.T) {
	store := &fakeStore{
		OnStats: func(ctx context.Context) (docmodel.Stats, error) {
			return docmodel.Stats{}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	results, path, err := engine.Search(context.Background(), "anything", 5, "")
	if err != nil {
		t.Fatalf("Search on empty store errored: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected an empty non-nil slice, got %v", results)
	}
	if path != retrieval.PathEmpty {
		t.Errorf("path = %v; want %v", path, retrieval.PathEmpty)
	}
}

func TestSearch_IndexPath(t *testing.T) {
	store := &fakeStore{
		OnVectorQuery: func(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
			return []docmodel.QueryResult{
				{ChunkId: "doc_chunk_0", DocumentId: "doc", Score: 0.9},
			}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	results, path, err := engine.Search(context.Background(), "query", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if path != retrieval.PathIndex {
		t.Errorf("path = %v; want %v", path, retrieval.PathIndex)
	}
	if len(results) != 1 || results[0].ChunkId != "doc_chunk_0" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestSearch_BruteForceFallback(t *testing.T) {
	store := &fakeStore{
		OnVectorQuery: func(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
			return nil, faults.Newf(faults.KindIndexUnavailable, "no vector index")
		},
		OnSampleChunks: func(ctx context.Context, limit int) ([]docmodel.Chunk, error) {
			return []docmodel.Chunk{
				{Id: "a_chunk_0", DocumentId: "a", Text: "close match", Embedding: []float32{1, 0}},
				{Id: "b_chunk_0", DocumentId: "b", Text: "far match", Embedding: []float32{0.2, 0.98}},
				{Id: "c_chunk_0", DocumentId: "c", Text: "orthogonal", Embedding: []float32{0, 1}},
			}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	results, path, err := engine.Search(context.Background(), "query", 2, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if path != retrieval.PathBruteForce {
		t.Errorf("path = %v; want %v", path, retrieval.PathBruteForce)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkId != "a_chunk_0" {
		t.Errorf("best match should rank first, got %s", results[0].ChunkId)
	}
	if results[0].Score < results[1].Score {
		t.Error("results are not sorted by score")
	}
}

func TestSearch_TextFallbackWhenEmbeddingFails(t *testing.T) {
	store := &fakeStore{
		OnTextMatch: func(ctx context.Context, query string, k int) ([]docmodel.QueryResult, error) {
			return []docmodel.QueryResult{
				{ChunkId: "a_chunk_0", DocumentId: "a", ChunkText: "contains the query"},
			}, nil
		},
	}
	provider := &fixedProvider{err: faults.Newf(faults.KindTransientProvider, "provider down")}
	engine := newTestEngine(store, provider)

	results, path, err := engine.Search(context.Background(), "query", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if path != retrieval.PathText {
		t.Errorf("path = %v; want %v", path, retrieval.PathText)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != config.TextMatchScore {
		t.Errorf("text match score = %v; want %v", results[0].Score, config.TextMatchScore)
	}
}

func TestSearch_ConfigurationErrorSurfaces(t *testing.T) {
	store := &fakeStore{}
	engine := retrieval.NewEngine(embedding.NewGateway(), store)

	_, _, err := engine.Search(context.Background(), "query", 5, "")
	if err == nil {
		t.Fatal("expected a configuration error with no providers")
	}
	if !faults.IsKind(err, faults.KindConfiguration) {
		t.Errorf("error kind = %v; want %v", faults.KindOf(err), faults.KindConfiguration)
	}
}

func TestExpand_SiblingsDecayAndDedup(t *testing.T) {
	store := &fakeStore{
		OnSiblingChunks: func(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
			return []docmodel.QueryResult{
				{ChunkId: "doc_chunk_1", DocumentId: "doc"},
				{ChunkId: "doc_chunk_2", DocumentId: "doc"},
			}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	seeds := []docmodel.QueryResult{
		{ChunkId: "doc_chunk_0", DocumentId: "doc", Score: 0.9},
	}
	expanded, err := engine.Expand(context.Background(), seeds, 10)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(expanded) != 3 {
		t.Fatalf("expected seed plus 2 siblings, got %d", len(expanded))
	}
	if expanded[0].ChunkId != "doc_chunk_0" {
		t.Errorf("seed should rank first, got %s", expanded[0].ChunkId)
	}

	wantFirst := 0.9 - config.ExpandScoreDecay
	wantSecond := 0.9 - 2*config.ExpandScoreDecay
	if diff := expanded[1].Score - wantFirst; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("first sibling score = %v; want %v", expanded[1].Score, wantFirst)
	}
	if diff := expanded[2].Score - wantSecond; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("second sibling score = %v; want %v", expanded[2].Score, wantSecond)
	}
}

func TestExpand_TruncatesToLimit(t *testing.T) {
	store := &fakeStore{
		OnSiblingChunks: func(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
			return []docmodel.QueryResult{
				{ChunkId: chunkId + "_sib1"},
				{ChunkId: chunkId + "_sib2"},
				{ChunkId: chunkId + "_sib3"},
			}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	seeds := []docmodel.QueryResult{
		{ChunkId: "a", Score: 0.9},
		{ChunkId: "b", Score: 0.8},
	}
	expanded, err := engine.Expand(context.Background(), seeds, 4)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(expanded) != 4 {
		t.Errorf("expected truncation to 4, got %d", len(expanded))
	}
}

func TestExpand_DuplicateSiblingOfSeedSkipped(t *testing.T) {
	store := &fakeStore{
		OnSiblingChunks: func(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
			// returns the other seed as a sibling
			return []docmodel.QueryResult{{ChunkId: "b"}}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	seeds := []docmodel.QueryResult{
		{ChunkId: "a", Score: 0.9},
		{ChunkId: "b", Score: 0.8},
	}
	expanded, err := engine.Expand(context.Background(), seeds, 10)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(expanded) != 2 {
		t.Errorf("duplicate sibling not deduplicated: got %d results", len(expanded))
	}
	// the seed's original score must survive, not the decayed sibling copy
	for _, result := range expanded {
		if result.ChunkId == "b" && result.Score != 0.8 {
			t.Errorf("seed score overwritten by expansion: %v", result.Score)
		}
	}
}

// Both search paths must agree on the winner for a well-separated corpus:
// one chunk nearly parallel to the query vector, the rest orthogonal.
func TestSearch_IndexAndBruteForceAgreeOnTopResult(t *testing.T) {
	queryVector := []float32{1, 0}
	corpus := []docmodel.Chunk{
		{Id: "doc_chunk_0", DocumentId: "doc", Embedding: []float32{0.96, 0.28}},
		{Id: "doc_chunk_1", DocumentId: "doc", Embedding: []float32{0, 1}},
		{Id: "doc_chunk_2", DocumentId: "doc", Embedding: []float32{0.01, 0.99}},
	}

	rank := func(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
		results := make([]docmodel.QueryResult, 0, len(corpus))
		for _, chunk := range corpus {
			results = append(results, docmodel.QueryResult{
				ChunkId:    chunk.Id,
				DocumentId: chunk.DocumentId,
				Score:      retrieval.CosineSimilarity(vector, chunk.Embedding),
			})
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		if len(results) > k {
			results = results[:k]
		}
		return results, nil
	}

	indexStore := &fakeStore{OnVectorQuery: rank}
	indexEngine := newTestEngine(indexStore, &fixedProvider{vector: queryVector})
	indexResults, indexPath, err := indexEngine.Search(context.Background(), "query", 3, "")
	if err != nil {
		t.Fatalf("index-path search failed: %v", err)
	}
	if indexPath != retrieval.PathIndex {
		t.Fatalf("path = %v; want %v", indexPath, retrieval.PathIndex)
	}

	bruteStore := &fakeStore{
		OnVectorQuery: func(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
			return nil, faults.Newf(faults.KindIndexUnavailable, "no vector index")
		},
		OnSampleChunks: func(ctx context.Context, limit int) ([]docmodel.Chunk, error) {
			return corpus, nil
		},
	}
	bruteEngine := newTestEngine(bruteStore, &fixedProvider{vector: queryVector})
	bruteResults, brutePath, err := bruteEngine.Search(context.Background(), "query", 3, "")
	if err != nil {
		t.Fatalf("brute-force search failed: %v", err)
	}
	if brutePath != retrieval.PathBruteForce {
		t.Fatalf("path = %v; want %v", brutePath, retrieval.PathBruteForce)
	}

	if len(indexResults) == 0 || len(bruteResults) == 0 {
		t.Fatalf("expected results on both paths, got %d and %d", len(indexResults), len(bruteResults))
	}
	if indexResults[0].ChunkId != bruteResults[0].ChunkId {
		t.Errorf("top result disagrees: index %q vs brute force %q",
			indexResults[0].ChunkId, bruteResults[0].ChunkId)
	}
	if indexResults[0].ChunkId != "doc_chunk_0" {
		t.Errorf("top result = %q; want doc_chunk_0", indexResults[0].ChunkId)
	}
}

// A weak seed was still scored against the query, so it must outrank — and
// never be evicted by — a sibling carrying a synthetic decayed score from a
// stronger seed.
func TestExpand_WeakSeedSurvivesStrongSeedsSiblings(t *testing.T) {
	store := &fakeStore{
		OnSiblingChunks: func(ctx context.Context, chunkId string, n int) ([]docmodel.QueryResult, error) {
			if chunkId == "a" {
				return []docmodel.QueryResult{{ChunkId: "a_sib", DocumentId: "doc"}}, nil
			}
			return []docmodel.QueryResult{}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	seeds := []docmodel.QueryResult{
		{ChunkId: "a", Score: 0.9},
		{ChunkId: "b", Score: 0.2},
	}
	expanded, err := engine.Expand(context.Background(), seeds, 2)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(expanded) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(expanded))
	}
	if expanded[0].ChunkId != "a" || expanded[1].ChunkId != "b" {
		t.Errorf("seed order not preserved: got [%s %s], want [a b]",
			expanded[0].ChunkId, expanded[1].ChunkId)
	}
}

// A corpus with nothing similar to the query still gets a ranked answer from
// the manual scan instead of silently degrading to substring matching.
func TestSearch_BruteForceKeepsLowScoringChunks(t *testing.T) {
	store := &fakeStore{
		OnVectorQuery: func(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
			return nil, faults.Newf(faults.KindIndexUnavailable, "no vector index")
		},
		OnSampleChunks: func(ctx context.Context, limit int) ([]docmodel.Chunk, error) {
			return []docmodel.Chunk{
				{Id: "a_chunk_0", DocumentId: "a", Embedding: []float32{0, 1}},
				{Id: "b_chunk_0", DocumentId: "b", Embedding: []float32{-1, 0}},
			}, nil
		},
	}
	engine := newTestEngine(store, &fixedProvider{vector: []float32{1, 0}})

	results, path, err := engine.Search(context.Background(), "query", 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if path != retrieval.PathBruteForce {
		t.Errorf("path = %v; want %v", path, retrieval.PathBruteForce)
	}
	if len(results) != 2 {
		t.Fatalf("expected both chunks ranked, got %d", len(results))
	}
	if results[0].ChunkId != "a_chunk_0" || results[0].Score != 0 {
		t.Errorf("orthogonal chunk should rank first at score 0, got %s (%v)",
			results[0].ChunkId, results[0].Score)
	}
	if results[1].Score >= results[0].Score {
		t.Error("results are not sorted by score")
	}
}
