package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridrag/internal/config"
	"github.com/dshills/hybridrag/internal/logging"
)

// rootOptions carries the persistent flags shared by every command
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "hybridrag",
		Short: "Role-scoped hybrid retrieval and answering over your documents",
		Long: `hybridrag ingests documents for an owner role, retrieves relevant chunks with
fused semantic and keyword search, and answers questions from the documents a
role may read. Answers are cached per role.

Configuration is read from ~/.hybridrag/config.toml (or --config), then from
the .env file, then from HYBRIDRAG_* environment variables.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.hybridrag/config.toml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before environment overrides")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "override log format (text, json)")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newQueryCmd(opts),
		newStatusCmd(opts),
		newCacheCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and builds a logger writing to the command's stderr.
// Stdout is reserved for command output and the MCP protocol.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}

	logger, err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openApp loads the configuration and wires the components
func (o *rootOptions) openApp(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return newApp(ctx, cfg, logger)
}
