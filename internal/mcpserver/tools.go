package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vharia/threatlens/internal/config"
)

type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to match against stored chunks"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	Expand bool   `json:"expand,omitempty" jsonschema:"include neighbouring chunks of each match for more context"`
}

type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	Strategy string               `json:"strategy"`
	Count    int                  `json:"count"`
}

type SearchResultOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

type ContextInput struct {
	Query string `json:"query" jsonschema:"the question to build a context block for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to include (default 5)"`
}

type ContextOutput struct {
	Context    string   `json:"context"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

type StatsOutput struct {
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search across all cached documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_context",
		Description: "Search and return a prompt-ready context block with sources and a confidence score",
	}, s.handleBuildContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Document and chunk counts of the cache",
	}, s.handleStats)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}

	results, path, err := s.cacheService.Search(ctx, input.Query, limit, "", input.Expand)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, len(results)),
		Strategy: string(path),
		Count:    len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			ChunkID:    results[i].ChunkId,
			DocumentID: results[i].DocumentId,
			Score:      results[i].Score,
			Content:    results[i].ChunkText,
		}
	}
	return nil, output, nil
}

func (s *Server) handleBuildContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContextInput,
) (*mcp.CallToolResult, ContextOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}

	result, err := s.cacheService.SearchWithContext(ctx, input.Query, limit, "")
	if err != nil {
		return nil, ContextOutput{}, err
	}
	return nil, ContextOutput{
		Context:    result.ConcatenatedContext,
		Sources:    result.Sources,
		Confidence: result.ConfidenceScore,
	}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.cacheService.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		TotalDocuments: stats.TotalDocuments,
		TotalChunks:    stats.TotalChunks,
	}, nil
}
