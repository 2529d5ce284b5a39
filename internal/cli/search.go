package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/searcher"
	"github.com/dshills/docrag/pkg/types"
)

// searchFlags are shared by search and query
type searchFlags struct {
	topK   int
	source string
	page   int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "number of chunks to retrieve (default: top_k from config)")
	cmd.Flags().StringVar(&f.source, "source", "", "only search chunks of this document (file name)")
	cmd.Flags().IntVar(&f.page, "page", 0, "only search chunks starting on this page")
}

func (f *searchFlags) request(a *app.App, args []string) searcher.SearchRequest {
	req := searcher.SearchRequest{
		Query: strings.Join(args, " "),
		TopK:  f.topK,
	}
	if req.TopK == 0 {
		req.TopK = a.Config.TopK
	}

	filter := types.Filter{}
	if f.source != "" {
		filter["source"] = f.source
	}
	if f.page > 0 {
		filter["page"] = f.page
	}
	if len(filter) > 0 {
		req.Filter = filter
	}
	return req
}

func newSearchCommand(opts *options) *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the chunks most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				resp, err := a.Searcher.Search(cmd.Context(), flags.request(a, args))
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				return render(cmd, opts.output, resp.Results, func(w io.Writer) error {
					printResults(w, resp.Results)
					return nil
				})
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func printResults(w io.Writer, results []types.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i := range results {
		r := &results[i]
		score := "n/a"
		if rel := searcher.RelevanceScore(r.Distance); rel != nil {
			score = fmt.Sprintf("%.3f", *rel)
		}
		fmt.Fprintf(w, "[%d] %s %s\n", i+1,
			sourceStyle.Render(fmt.Sprintf("%s p.%d", r.Metadata.Source, r.Metadata.Page)),
			labelStyle.Render(fmt.Sprintf("(chunk %d, relevance %s)", r.Metadata.ChunkIndex, score)),
		)
		fmt.Fprintf(w, "    %s\n\n", snippet(r.Text, 200))
	}
}
