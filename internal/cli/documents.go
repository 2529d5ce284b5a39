package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/pkg/types"
)

func newDocumentsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "documents",
		Aliases: []string{"ls"},
		Short:   "List indexed documents with chunk counts and page ranges",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				docs, err := a.Documents(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd, opts.output, docs, func(w io.Writer) error {
					printDocuments(w, docs)
					return nil
				})
			})
		},
	}
}

func printDocuments(w io.Writer, docs []types.DocumentSummary) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "The index is empty.")
		return
	}

	total := 0
	for _, d := range docs {
		total += d.TotalChunks
		fmt.Fprintf(w, "%s %s\n", sourceStyle.Render(d.Source),
			labelStyle.Render(fmt.Sprintf("%d chunks, pages %s", d.TotalChunks, d.PageRange)))
		if d.FilePath != "" {
			fmt.Fprintf(w, "  %s\n", d.FilePath)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d documents, %d chunks", len(docs), total)))
}
