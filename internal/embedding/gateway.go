package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/metrics"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Gateway fronts the configured providers. It owns provider selection,
// bounded retry with backoff, and the query-embedding cache. Constructed and
// passed down explicitly so tests inject their own providers and cache.
type Gateway struct {
	providers []Provider
	cache     *queryCache
	logger    *logger_i.Logger
}

// NewGateway takes providers in priority order: local inference first, then
// the cloud providers.
func NewGateway(providers ...Provider) *Gateway {
	return &Gateway{
		providers: providers,
		cache:     newQueryCache(config.QueryCacheCapacity),
		logger:    logger_i.NewLogger("Embedding Gateway"),
	}
}

// Select resolves a provider. A named hint wins when that provider is
// configured; otherwise the first configured provider in priority order is
// used. No configured provider at all is a configuration fault, never a
// silent default.
func (g *Gateway) Select(hint string) (Provider, error) {
	if hint != "" {
		for _, p := range g.providers {
			if strings.EqualFold(p.Name(), hint) {
				if p.IsAvailable() {
					return p, nil
				}
				return nil, faults.Newf(faults.KindConfiguration,
					"embedding provider %q is not configured, set its endpoint/api key or drop the provider hint", hint)
			}
		}
		return nil, faults.Newf(faults.KindConfiguration, "unknown embedding provider %q", hint)
	}

	for _, p := range g.providers {
		if p.IsAvailable() {
			return p, nil
		}
	}
	return nil, faults.Newf(faults.KindConfiguration,
		"no embedding provider configured, set OLLAMA_HOST, OPENAI_API_KEY or GOOGLE_API_KEY")
}

// Embed produces one vector per chunk text. Write-path embeddings are never
// cached.
func (g *Gateway) Embed(ctx context.Context, texts []string, hint string) ([][]float32, error) {
	provider, err := g.Select(hint)
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	err = g.withRetry(ctx, provider.Name(), func(callCtx context.Context) error {
		var callErr error
		vectors, callErr = provider.Embed(callCtx, texts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string, consulting the cache first.
func (g *Gateway) EmbedQuery(ctx context.Context, text string, hint string) ([]float32, error) {
	provider, err := g.Select(hint)
	if err != nil {
		return nil, err
	}

	if vector, found := g.cache.get(provider.Name(), text); found {
		g.logger.Debug("query embedding cache hit", "provider", provider.Name())
		return vector, nil
	}

	var vector []float32
	err = g.withRetry(ctx, provider.Name(), func(callCtx context.Context) error {
		var callErr error
		vector, callErr = provider.EmbedQuery(callCtx, text)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	g.cache.put(provider.Name(), text, vector)
	return vector, nil
}

// withRetry runs fn with exponential backoff on transient failures only.
// Unknown-model and configuration faults surface immediately so the caller
// can show the remediation hint instead of burning retries.
func (g *Gateway) withRetry(ctx context.Context, providerName string, fn func(context.Context) error) error {
	backoff := config.EmbeddingRetryBackoff
	var lastErr error

	for attempt := 1; attempt <= config.EmbeddingRetryCount; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, config.EmbeddingCallTimeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			metrics.CountEmbeddingCall(providerName, "ok")
			return nil
		}

		if errors.Is(err, context.DeadlineExceeded) {
			err = faults.New(faults.KindTimeout, "embedding call timed out", err)
		}
		lastErr = err

		if !faults.Retryable(err) {
			metrics.CountEmbeddingCall(providerName, "failed")
			return err
		}

		metrics.CountEmbeddingCall(providerName, "retried")
		g.logger.Warn("transient embedding failure, backing off",
			"provider", providerName, "attempt", attempt, "error", err)

		if attempt == config.EmbeddingRetryCount {
			break
		}
		select {
		case <-ctx.Done():
			return faults.New(faults.KindTimeout, "embedding call cancelled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	metrics.CountEmbeddingCall(providerName, "exhausted")
	return faults.New(faults.KindProviderExhausted,
		"embedding provider "+providerName+" kept failing, check its availability", lastErr)
}

// CachedQueries exposes the cache fill level for stats/debugging.
func (g *Gateway) CachedQueries() int {
	return g.cache.len()
}
