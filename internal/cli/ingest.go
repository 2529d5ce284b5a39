package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/indexer"
)

func newIngestCommand(opts *options) *cobra.Command {
	var (
		file string
		dirs []string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract, chunk, embed and store PDF documents",
		Long: `Ingests a single PDF (--file) or every PDF below one or more directories
(--dir). Without flags the configured data_dir and scraped_files_dir are
ingested; directories that do not exist are skipped.

Re-ingesting a document replaces its previous chunks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" && len(dirs) > 0 {
				return errors.New("--file and --dir are mutually exclusive")
			}

			return opts.withApp(cmd, func(a *app.App) error {
				var (
					stats *indexer.Statistics
					err   error
				)
				switch {
				case file != "":
					stats, err = a.Indexer.VectorizeFile(cmd.Context(), file)
				case len(dirs) > 0:
					stats, err = a.Indexer.VectorizeAll(cmd.Context(), dirs...)
				default:
					stats, err = a.Indexer.VectorizeAll(cmd.Context(), a.Config.Directories()...)
				}
				if err != nil {
					return fmt.Errorf("ingestion failed: %w", err)
				}
				return render(cmd, opts.output, stats, func(w io.Writer) error {
					printStatistics(w, stats)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "ingest a single PDF file")
	cmd.Flags().StringSliceVarP(&dirs, "dir", "d", nil, "ingest every PDF below this directory (repeatable)")
	return cmd
}

func printStatistics(w io.Writer, stats *indexer.Statistics) {
	fmt.Fprintln(w, headerStyle.Render("Ingestion complete"))
	field(w, "Files found", stats.FilesFound)
	field(w, "Processed", okStyle.Render(fmt.Sprint(stats.FilesProcessed)))
	field(w, "Skipped", stats.FilesSkipped)
	field(w, "Failed", stats.FilesFailed)
	field(w, "Chunks", stats.ChunksCreated)
	field(w, "Duration", stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintln(w, warnStyle.Render("  ! "+msg))
	}
}
