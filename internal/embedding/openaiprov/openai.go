package openaiprov

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Client embeds through the OpenAI API. Second in the gateway's priority
// order, behind the local Ollama instance.
type Client struct {
	api        openai.Client
	apiKey     string
	model      string
	dimensions int
	logger     *logger_i.Logger
}

var _ embedding.Provider = (*Client)(nil)

func NewClient() *Client {
	key := config.OpenAIAPIKey
	return &Client{
		api:        openai.NewClient(option.WithAPIKey(key)),
		apiKey:     key,
		model:      config.GetEnvOr("OPENAI_EMBEDDING_MODEL", config.OpenAIEmbeddingModel),
		dimensions: config.OpenAIDimensions,
		logger:     logger_i.NewLogger("openai_embedding"),
	}
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai returned no embedding")
	}
	return vectors[0], nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimensions)),
	})
	if err != nil {
		return nil, c.classify(err)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vector := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vector[i] = float32(v)
		}
		vectors[item.Index] = vector
	}
	return vectors, nil
}

func (c *Client) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return faults.Newf(faults.KindUnknownModel,
				"openai does not know model %q, pick one of the text-embedding-3 models", c.model)
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError:
			return faults.New(faults.KindTransientProvider, "openai rate limited or unavailable", err)
		case apiErr.StatusCode == http.StatusUnauthorized:
			return faults.New(faults.KindConfiguration, "OPENAI_API_KEY was rejected", err)
		}
		return err
	}
	// plain transport errors are worth a retry
	return faults.New(faults.KindTransientProvider, "openai call failed", err)
}
