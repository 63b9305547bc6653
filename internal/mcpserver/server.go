package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vharia/threatlens/internal/semcache"
	"github.com/vharia/threatlens/pkg/logger_i"
)

const Version = "0.1.0"

// Server exposes the document cache to MCP clients over stdio, so local
// agents can search the corpus without going through the HTTP API.
type Server struct {
	cacheService semcache.Service
	server       *mcp.Server
	logger       *logger_i.Logger
}

func NewServer(cacheService semcache.Service) *Server {
	impl := &mcp.Implementation{
		Name:    "threatlens",
		Version: Version,
	}

	s := &Server{
		cacheService: cacheService,
		server:       mcp.NewServer(impl, nil),
		logger:       logger_i.NewLogger("MCP Server"),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
