// Package cli implements the docrag command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/config"
	"github.com/dshills/docrag/internal/logging"
)

// newApp builds the services for commands that need them. Tests swap it for
// an in-memory pipeline.
var newApp = app.New

// options holds the persistent flags shared by every command
type options struct {
	configFile string
	output     string
	logLevel   string
}

// NewRootCommand builds the docrag command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   app.Name,
		Short: "Index PDF collections and retrieve cited context for LLM prompts",
		Long: `docrag extracts text from PDF documents, splits it into overlapping chunks,
embeds them and stores the vectors in a local index. Queries return the most
relevant chunks together with (source, page) citations, ready to be inserted
into an LLM prompt.

The index is available from this command line, as a REST API (serve) and as
an MCP server over stdio (mcp).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutput(opts.output)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newIngestCommand(opts),
		newSearchCommand(opts),
		newQueryCommand(opts),
		newDocumentsCommand(opts),
		newStatusCommand(opts),
		newResetCommand(opts),
		newRebuildCommand(opts),
		newServeCommand(opts),
		newMCPCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(opts),
	)

	return rootCmd
}

// Execute runs the command tree with ctx, which is cancelled on shutdown signals
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig reads the configuration and applies flag overrides
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// openApp loads the configuration and starts the services. Logs always go to
// stderr so that stdout stays clean for results and the MCP protocol.
func (o *options) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	slog.SetDefault(logger)

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// withApp runs fn with a started App and closes it afterwards
func (o *options) withApp(cmd *cobra.Command, fn func(a *app.App) error) (err error) {
	a, err := o.openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
