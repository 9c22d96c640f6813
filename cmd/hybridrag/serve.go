package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridrag/internal/mcp"
	"github.com/dshills/hybridrag/internal/storage"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server. It communicates over stdio using
JSON-RPC and exposes the ingest_document, query_documents, get_status and
set_visibility tools.

Client configuration:
  {
    "mcpServers": {
      "hybridrag": {
        "command": "/path/to/hybridrag",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			mcp.ServerVersion = version
			server, err := mcp.NewServer(mcp.Dependencies{
				Store:    a.store,
				Indexer:  a.indexer,
				Pipeline: a.pipeline,
			}, mcp.WithLogger(a.logger))
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			a.logger.Info("MCP server ready, listening on stdio",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", a.cfg.Storage.Driver,
				"embedder", a.embedder.Provider())

			if err := server.Serve(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("server error: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
}
