package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pdfqa/internal/organize"
)

func newOrganizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "organize [dir] [case-map]",
		Short: "Move loose PDFs into per-case folders",
		Long: "Organize moves the PDF files at the top level of dir (default \"docs\") into dir/<case>/ " +
			"when their name contains one of the case's patterns. The case map (default \"case-map.json\") " +
			"is a JSON object of case names to pattern lists.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, mapPath := defaultDocsDir, "case-map.json"
			if len(args) > 0 {
				dir = args[0]
			}
			if len(args) > 1 {
				mapPath = args[1]
			}

			cases, err := organize.LoadCaseMap(mapPath)
			if err != nil {
				return err
			}
			res, err := organize.Organize(cmd.Context(), dir, cases)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range res.Moved {
				fmt.Fprintf(out, "Moved %s -> %s\n", m.From, filepath.FromSlash(m.To))
			}
			for _, name := range res.Unmatched {
				fmt.Fprintf(out, "No case match for %s\n", name)
			}
			for _, name := range res.Conflicts {
				fmt.Fprintf(out, "Skipped %s: target already exists\n", name)
			}
			return nil
		},
	}
}
