package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/searcher"
	"github.com/dshills/docrag/pkg/types"
)

// queryOutput is the structured form of the query command
type queryOutput struct {
	Context string         `json:"context"`
	Sources []types.Source `json:"sources"`
	Prompt  string         `json:"prompt,omitempty"`
}

func newQueryCommand(opts *options) *cobra.Command {
	var prompt bool
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Assemble cited context for a question",
		Long: `Retrieves the most relevant chunks for a question and joins them into a
numbered context block. Each (source, page) pair is cited once, in the order
of first appearance. With --prompt the context is wrapped in an instruction
block ready to paste into an LLM prompt.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				req := flags.request(a, args)

				rc, err := a.Searcher.Query(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("query failed: %w", err)
				}

				out := queryOutput{Context: rc.Context, Sources: rc.Sources}
				if prompt {
					out.Prompt = searcher.FormatPrompt(req.Query, rc)
				}

				return render(cmd, opts.output, out, func(w io.Writer) error {
					printQuery(w, out)
					return nil
				})
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&prompt, "prompt", false, "wrap the context in an LLM prompt")
	return cmd
}

func printQuery(w io.Writer, out queryOutput) {
	if out.Context == "" {
		fmt.Fprintln(w, "No relevant context found.")
		return
	}

	if out.Prompt != "" {
		fmt.Fprintln(w, out.Prompt)
	} else {
		fmt.Fprintln(w, boxStyle.Render(out.Context))
	}

	fmt.Fprintln(w, headerStyle.Render("Sources"))
	for _, src := range out.Sources {
		score := ""
		if src.RelevanceScore != nil {
			score = labelStyle.Render(fmt.Sprintf(" (relevance %.3f)", *src.RelevanceScore))
		}
		fmt.Fprintf(w, "  - %s%s\n", sourceStyle.Render(fmt.Sprintf("%s, page %d", src.Source, src.Page)), score)
	}
}
