package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/storage"
)

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				status, err := a.Status(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd, opts.output, status, func(w io.Writer) error {
					printStatus(w, status)
					return nil
				})
			})
		},
	}
}

func printStatus(w io.Writer, s *app.Status) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s %s", s.Name, s.Version)))
	field(w, "Backend", fmt.Sprintf("%s (collection %s)", s.Backend, s.Collection))
	field(w, "Documents", s.Documents)
	field(w, "Chunks", s.Chunks)
	field(w, "Embedding", fmt.Sprintf("%s/%s, %d dimensions", s.EmbeddingProvider, s.EmbeddingModel, s.Dimension))
	field(w, "PDF tool", availability(s.PDFToolAvailable))
	field(w, "SQLite driver", fmt.Sprintf("%s (%s build)", s.SQLiteDriver, s.BuildMode))
	field(w, "Vector extension", availability(s.VectorExtension))
}

func availability(ok bool) string {
	if ok {
		return okStyle.Render("available")
	}
	return warnStyle.Render("unavailable")
}

func newResetCommand(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every chunk from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm(cmd, "Delete every indexed chunk?")
				if err != nil {
					return err
				}
				if !ok {
					cmd.Println("Aborted.")
					return nil
				}
			}

			return opts.withApp(cmd, func(a *app.App) error {
				if err := a.Reset(cmd.Context()); err != nil {
					return fmt.Errorf("reset failed: %w", err)
				}
				return render(cmd, opts.output, map[string]string{"status": "success"}, func(w io.Writer) error {
					fmt.Fprintln(w, okStyle.Render("Index reset."))
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newRebuildCommand(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Reset the index and re-ingest the configured directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm(cmd, "Delete the index and ingest every document again?")
				if err != nil {
					return err
				}
				if !ok {
					cmd.Println("Aborted.")
					return nil
				}
			}

			return opts.withApp(cmd, func(a *app.App) error {
				stats, err := a.Indexer.Rebuild(cmd.Context(), a.Config.Directories()...)
				if err != nil {
					return fmt.Errorf("rebuild failed: %w", err)
				}
				return render(cmd, opts.output, stats, func(w io.Writer) error {
					printStatistics(w, stats)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// versionInfo is printed by the version command
type versionInfo struct {
	Version         string `json:"version"`
	BuildMode       string `json:"build_mode"`
	SQLiteDriver    string `json:"sqlite_driver"`
	VectorExtension bool   `json:"vector_extension"`
	BuildTime       string `json:"build_time,omitempty"`
}

// BuildTime is set at build time with -ldflags
var BuildTime = ""

func newVersionCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{
				Version:         app.Version,
				BuildMode:       storage.BuildMode,
				SQLiteDriver:    storage.DriverName,
				VectorExtension: storage.VectorExtensionAvailable,
				BuildTime:       BuildTime,
			}
			return render(cmd, opts.output, info, func(w io.Writer) error {
				fmt.Fprintf(w, "%s version %s\n", app.Name, info.Version)
				if info.BuildTime != "" {
					if t, err := time.Parse(time.RFC3339, info.BuildTime); err == nil {
						field(w, "Build Time", t.Format(time.RFC1123))
					} else {
						field(w, "Build Time", info.BuildTime)
					}
				}
				field(w, "Build Mode", info.BuildMode)
				field(w, "SQLite Driver", info.SQLiteDriver)
				field(w, "Vector Extension", info.VectorExtension)
				return nil
			})
		},
	}
}
