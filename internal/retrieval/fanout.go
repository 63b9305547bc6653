package retrieval

import (
	"context"
	"sort"
	"sync"

	"github.com/vharia/threatlens/internal/domain/docmodel"
)

type fanOutSlot struct {
	results []docmodel.QueryResult
	err     error
}

// FanOut runs every sub-query in parallel and merges the result sets,
// keeping the best score for a chunk that multiple sub-queries surfaced.
// Each merged result carries the sub-query that found it as its Origin. A
// failing sub-query only drops its own slice; the merge fails only when
// every sub-query failed.
func (e *Engine) FanOut(ctx context.Context, queries []string, k int, providerHint string) ([]docmodel.QueryResult, error) {
	if len(queries) == 0 {
		return []docmodel.QueryResult{}, nil
	}

	slots := make([]fanOutSlot, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results, _, err := e.Search(ctx, query, k, providerHint)
			if err != nil {
				slots[i] = fanOutSlot{err: err}
				return
			}
			for j := range results {
				results[j].Origin = query
			}
			slots[i] = fanOutSlot{results: results}
		}(i, query)
	}
	wg.Wait()

	best := make(map[string]docmodel.QueryResult)
	var failures int
	var firstErr error
	for _, slot := range slots {
		if slot.err != nil {
			failures++
			if firstErr == nil {
				firstErr = slot.err
			}
			continue
		}
		for _, result := range slot.results {
			existing, found := best[result.ChunkId]
			if !found || result.Score > existing.Score {
				best[result.ChunkId] = result
			}
		}
	}
	if failures == len(queries) {
		return nil, firstErr
	}

	merged := make([]docmodel.QueryResult, 0, len(best))
	for _, result := range best {
		merged = append(merged, result)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}
