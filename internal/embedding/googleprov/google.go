package googleprov

import (
	"context"
	"fmt"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/faults"
	"github.com/vharia/threatlens/internal/embedding"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// Client embeds through the Google genai API. Last in the gateway's
// priority order.
type Client struct {
	genAi      *genai.Client
	apiKey     string
	model      string
	dimensions int32
	logger     *logger_i.Logger
}

var _ embedding.Provider = (*Client)(nil)

func NewClient(ctx context.Context) (*Client, error) {
	c := &Client{
		apiKey:     config.GoogleEmbeddingAPIKey,
		model:      config.GetEnvOr("GOOGLE_EMBEDDING_MODEL", config.GoogleEmbeddingModel),
		dimensions: int32(config.GoogleDimensions),
		logger:     logger_i.NewLogger("google_embedding"),
	}
	if c.apiKey == "" {
		// still constructed so the gateway can report it as unconfigured
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating google embedding client: %w", err)
	}
	c.genAi = client
	c.logger.Info("Google embedding client created", "model", c.model)
	return c, nil
}

func (c *Client) Name() string {
	return "google"
}

func (c *Client) Dimensions() int {
	return int(c.dimensions)
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != "" && c.genAi != nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	result, err := c.doCall(ctx, genai.Text(text))
	if err != nil {
		return nil, c.classify(err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("google returned no embedding")
	}
	return result.Embeddings[0].Values, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := c.doCall(ctx, getContent(texts))
	if err != nil {
		return nil, c.classify(err)
	}

	var vectors [][]float32
	for _, r := range result.Embeddings {
		vectors = append(vectors, r.Values)
	}
	return vectors, nil
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content,
		&genai.EmbedContentConfig{OutputDimensionality: &c.dimensions, TaskType: "RETRIEVAL_DOCUMENT"})
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func (c *Client) classify(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded:
			c.logger.Error("Rate limit or availability issue", "error", err)
			return faults.New(faults.KindTransientProvider, "google embedding backend unavailable", err)
		case codes.NotFound:
			return faults.Newf(faults.KindUnknownModel,
				"google does not know model %q, set GOOGLE_EMBEDDING_MODEL to a published embedding model", c.model)
		case codes.Unauthenticated, codes.PermissionDenied:
			return faults.New(faults.KindConfiguration, "GOOGLE_API_KEY was rejected", err)
		}
	}
	return err
}
