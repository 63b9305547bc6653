package embedding

import "context"

// Provider is one embedding backend. Each implementation reports a fixed
// dimensionality; which dimensionality the store index is sized to depends on
// the provider the gateway ends up selecting at startup.
type Provider interface {
	Name() string
	Dimensions() int
	// IsAvailable reports whether the provider is fully configured
	// (endpoint/key present), not whether it is reachable right now.
	IsAvailable() bool
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
