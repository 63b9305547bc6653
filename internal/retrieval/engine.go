package retrieval

import (
	"context"
	"sort"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/internal/metrics"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Path labels which retrieval strategy actually produced a result set, so
// callers can tell an index hit from a degraded fallback.
type Path string

const (
	PathIndex      Path = "index"
	PathBruteForce Path = "bruteforce"
	PathText       Path = "text"
	PathEmpty      Path = "empty"
)

// Engine layers three retrieval strategies over one store: the native vector
// index, a manual cosine scan over a bounded chunk sample, and finally plain
// substring matching when no embedding can be produced at all.
type Engine struct {
	gateway *embedding.Gateway
	store   docmodel.DocumentStore
	logger  *logger_i.Logger
}

func NewEngine(gateway *embedding.Gateway, store docmodel.DocumentStore) *Engine {
	return &Engine{
		gateway: gateway,
		store:   store,
		logger:  logger_i.NewLogger("RetrievalEngine"),
	}
}

// Search returns at most k chunks ranked by relevance, together with the
// path that produced them. An empty store yields an empty slice, not an
// error.
func (e *Engine) Search(ctx context.Context, query string, k int, providerHint string) ([]docmodel.QueryResult, Path, error) {
	if k <= 0 {
		k = config.DefaultSearchLimit
	}

	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, PathEmpty, err
	}
	if stats.TotalChunks == 0 {
		metrics.CountRetrievalPath(string(PathEmpty))
		return []docmodel.QueryResult{}, PathEmpty, nil
	}

	vector, err := e.gateway.EmbedQuery(ctx, query, providerHint)
	if err != nil {
		if faults.IsKind(err, faults.KindConfiguration) {
			return nil, PathEmpty, err
		}
		e.logger.Warn("query embedding failed, degrading to text match", "error", err)
		return e.textSearch(ctx, query, k)
	}

	results, err := e.store.VectorQuery(ctx, vector, k)
	if err == nil {
		metrics.CountRetrievalPath(string(PathIndex))
		return results, PathIndex, nil
	}
	if !faults.IsKind(err, faults.KindIndexUnavailable) {
		return nil, PathEmpty, err
	}

	e.logger.Warn("vector index unavailable, scanning chunks manually")
	results, err = e.bruteForce(ctx, vector, k)
	if err != nil {
		return nil, PathEmpty, err
	}
	if len(results) > 0 {
		metrics.CountRetrievalPath(string(PathBruteForce))
		return results, PathBruteForce, nil
	}
	return e.textSearch(ctx, query, k)
}

func (e *Engine) bruteForce(ctx context.Context, vector []float32, k int) ([]docmodel.QueryResult, error) {
	chunks, err := e.store.SampleChunks(ctx, config.BruteForceSampleLimit)
	if err != nil {
		return nil, err
	}

	results := make([]docmodel.QueryResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, docmodel.QueryResult{
			ChunkId:          chunk.Id,
			ChunkText:        chunk.Text,
			DocumentId:       chunk.DocumentId,
			DocumentMetadata: chunk.Metadata,
			Score:            CosineSimilarity(vector, chunk.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (e *Engine) textSearch(ctx context.Context, query string, k int) ([]docmodel.QueryResult, Path, error) {
	results, err := e.store.TextMatch(ctx, query, k)
	if err != nil {
		return nil, PathEmpty, err
	}
	for i := range results {
		results[i].Score = config.TextMatchScore
	}
	metrics.CountRetrievalPath(string(PathText))
	return results, PathText, nil
}

// Expand grows a seed result set with the positional neighbours of every
// seed chunk. Seeds keep their original ranking; neighbours are appended in
// discovery order with a score that decays below their seed, since they were
// never independently scored against the query. The combined set is
// deduplicated and truncated back to k.
func (e *Engine) Expand(ctx context.Context, seeds []docmodel.QueryResult, k int) ([]docmodel.QueryResult, error) {
	if len(seeds) == 0 {
		return seeds, nil
	}

	seen := make(map[string]bool, len(seeds))
	combined := make([]docmodel.QueryResult, 0, len(seeds)*(config.ExpandSiblingCount+1))
	for _, seed := range seeds {
		if !seen[seed.ChunkId] {
			seen[seed.ChunkId] = true
			combined = append(combined, seed)
		}
	}

	for _, seed := range seeds {
		siblings, err := e.store.SiblingChunks(ctx, seed.ChunkId, config.ExpandSiblingCount)
		if err != nil {
			e.logger.Warn("sibling expansion failed for chunk", "chunkId", seed.ChunkId, "error", err)
			continue
		}
		for i, sibling := range siblings {
			if seen[sibling.ChunkId] {
				continue
			}
			seen[sibling.ChunkId] = true
			sibling.Score = seed.Score - float64(i+1)*config.ExpandScoreDecay
			if sibling.Score < 0 {
				sibling.Score = 0
			}
			combined = append(combined, sibling)
		}
	}

	if len(combined) > k {
		combined = combined[:k]
	}
	return combined, nil
}
