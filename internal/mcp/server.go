package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/hybridrag/internal/indexer"
	"github.com/dshills/hybridrag/internal/parser"
	"github.com/dshills/hybridrag/internal/pipeline"
	"github.com/dshills/hybridrag/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "hybridrag"
)

// ServerVersion is reported during the MCP handshake; set at build time
var ServerVersion = "dev"

// Dependencies are the components the tools delegate to
type Dependencies struct {
	Store    storage.Store
	Indexer  *indexer.Indexer
	Pipeline *pipeline.Pipeline
	Parser   *parser.Parser // defaults to parser.New()
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	indexer  *indexer.Indexer
	pipeline *pipeline.Pipeline
	parser   *parser.Parser
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger for tool calls
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server instance. The caller owns the
// dependencies and closes them after Serve returns.
func NewServer(deps Dependencies, opts ...Option) (*Server, error) {
	if deps.Store == nil || deps.Indexer == nil || deps.Pipeline == nil {
		return nil, errors.New("mcp server requires a store, an indexer and a pipeline")
	}
	if deps.Parser == nil {
		deps.Parser = parser.New()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		store:    deps.Store,
		indexer:  deps.Indexer,
		pipeline: deps.Pipeline,
		parser:   deps.Parser,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mcp")

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)
	s.mcp.AddTool(queryDocumentsTool(), s.handleQueryDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(setVisibilityTool(), s.handleSetVisibility)
}
