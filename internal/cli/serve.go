package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrag/internal/api"
	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/mcp"
	"github.com/dshills/docrag/internal/watcher"
)

func newServeCommand(opts *options) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long: `Starts the HTTP API:

  GET  /health          liveness probe
  POST /api/vectorize   ingest {"file_path": ...} or {"directory": ...}
  POST /api/search      ranked chunks for {"query", "top_k", "filter_by"}
  POST /api/query       cited context for the same body
  GET  /api/documents   indexed documents
  POST /api/reset       empty the index, requires {"confirm": true}
  GET  /api/status      index statistics

With --watch the configured directories are re-ingested as PDFs change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				if addr == "" {
					addr = a.Config.HTTP.Addr
				}

				g, ctx := errgroup.WithContext(cmd.Context())
				g.Go(func() error {
					return api.Serve(ctx, a, addr)
				})
				if watch {
					w := newWatcher(a, a.Config.Directories())
					g.Go(func() error {
						return w.Run(ctx)
					})
				}
				return g.Wait()
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ingest documents when they change on disk")
	return cmd
}

func newMCPCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index as an MCP server over stdio",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing the tools
vectorize_documents, search_documents, query_documents, list_documents,
reset_index and get_status. Logs are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				a.Logger.Info("MCP server ready, listening on stdio")
				return mcp.NewServer(a).ServeIO(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func newWatchCommand(opts *options) *cobra.Command {
	var (
		dirs    []string
		initial bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-ingest PDFs whenever they change on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				if len(dirs) == 0 {
					dirs = a.Config.Directories()
				}

				if initial {
					stats, err := a.Indexer.VectorizeAll(cmd.Context(), dirs...)
					if err != nil {
						return fmt.Errorf("initial ingestion failed: %w", err)
					}
					printStatistics(cmd.ErrOrStderr(), stats)
				}

				return newWatcher(a, dirs).Run(cmd.Context())
			})
		},
	}

	cmd.Flags().StringSliceVarP(&dirs, "dir", "d", nil, "directory to watch (repeatable, default: configured directories)")
	cmd.Flags().BoolVar(&initial, "initial", false, "ingest the directories once before watching")
	return cmd
}

func newWatcher(a *app.App, dirs []string) *watcher.Watcher {
	return watcher.New(a.Indexer, dirs, watcher.Options{Logger: a.Logger})
}
