package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pdfqa/internal/indexer"
)

const defaultDocsDir = "docs"

func newIngestCmd(root *rootOptions) *cobra.Command {
	var (
		keep   bool
		watch  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Load, chunk and index the documents in a directory",
		Long: "Ingest loads every supported file under dir (default \"docs\"), splits it into overlapping chunks " +
			"and writes them to the index in batches. The index is cleared first unless --keep is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := defaultDocsDir
			if len(args) == 1 {
				dir = args[0]
			}

			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := withSignals(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			if watch {
				p, err := a.ingestPipeline(indexer.WithRunHook(func(r *indexer.Report, err error) {
					if err == nil {
						printReport(out, r, asJSON)
					}
				}))
				if err != nil {
					return err
				}
				// An initial pass honours --keep; later passes rebuild the index.
				if _, err := p.Ingest(ctx, dir, !keep); err != nil {
					return err
				}
				fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", dir)
				return p.Watch(ctx, dir, indexer.DefaultDebounce)
			}

			p, err := a.ingestPipeline()
			if err != nil {
				return err
			}
			report, err := p.Ingest(ctx, dir, !keep)
			if err != nil {
				return err
			}
			printReport(out, report, asJSON)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "keep the existing index instead of resetting it")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ingest when files in dir change")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return cmd
}

func printReport(w io.Writer, r *indexer.Report, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(r)
		return
	}
	fmt.Fprintf(w, "Ingested %d documents from %s: %d chunks in %d batches (run %s)\n",
		r.Documents, r.Dir, r.Committed, r.Batches, r.RunID)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d files without a matching loader\n", r.Skipped)
	}
	if r.Chunks > 0 {
		fmt.Fprintf(w, "Chunk length min %d, max %d, mean %.0f, p95 %d (index version %s)\n",
			r.Stats.Min, r.Stats.Max, r.Stats.Mean, r.Stats.P95, r.IndexVersion)
	}
}
