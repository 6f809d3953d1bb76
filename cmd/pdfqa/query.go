package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdfqa/internal/apperr"
)

func newQueryCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <question...>",
		Short: "Answer a question from the indexed documents",
		Long: "Query retrieves the most relevant chunks, drafts an answer from them and verifies it. " +
			"The output shows what each agent produced. Unsupported answers come back as \"I don't know\".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return &apperr.ValidationError{Field: "question", Message: "question is required"}
			}

			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := withSignals(cmd.Context())
			defer stop()

			res, err := a.queryPipeline().Ask(ctx, question)
			if err != nil {
				// Nothing from a failed run is printed; a draft that was never verified must not look like an answer.
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "Question: %s\n\n%s\n", res.Question, res.Trace)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer and trace as JSON")
	return cmd
}
