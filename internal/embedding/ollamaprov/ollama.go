package ollamaprov

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/customHttpClient"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Client talks to a local Ollama instance. It sits first in the gateway's
// priority order so a running local model wins over the cloud providers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dimensions int
	logger     *logger_i.Logger
}

var _ embedding.Provider = (*Client)(nil)

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func NewClient() *Client {
	return &Client{
		httpClient: customHttpClient.PooledClient(),
		baseURL:    config.GetEnvOr("OLLAMA_HOST", config.OllamaHost),
		model:      config.GetEnvOr("OLLAMA_EMBEDDING_MODEL", config.OllamaEmbeddingModel),
		dimensions: config.OllamaDimensions,
		logger:     logger_i.NewLogger("ollama_embedding"),
	}
}

func (c *Client) Name() string {
	return "ollama"
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

func (c *Client) IsAvailable() bool {
	return c.baseURL != ""
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.doCall(ctx, text)
}

// Embed runs one call per chunk, in order. Ollama has no batch endpoint and
// sequential calls keep the local instance from queue-thrashing.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vector, err := c.doCall(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

func (c *Client) doCall(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.New(faults.KindTransientProvider, "ollama unreachable at "+c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.New(faults.KindTransientProvider, "reading ollama response failed", err)
	}

	var parsed embedResponse
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr == nil && parsed.Error != "" {
		// Ollama reports an uninstalled model as a 404 with an error string
		if strings.Contains(parsed.Error, "not found") {
			return nil, faults.Newf(faults.KindUnknownModel,
				"model %q is not installed, run `ollama pull %s`", c.model, c.model)
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, faults.Newf(faults.KindTransientProvider, "ollama returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(raw))
	}

	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return parsed.Embedding, nil
}
