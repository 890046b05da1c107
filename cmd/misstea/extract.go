package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newExtractCmd(f *globalFlags) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "extract <url>...",
		Short: "Extract the main content of one or more pages",
		Long:  "Runs the extraction pipeline for every URL and prints one JSON result per line, in input order.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f)
			if err != nil {
				return err
			}
			defer closeApp(a)
			n := a.Config().Concurrency
			if cmd.Flags().Changed("concurrency") {
				n = concurrency
			}
			if n < 1 {
				return fmt.Errorf("concurrency must be at least 1, got %d", n)
			}
			results := a.ExtractAll(cmd.Context(), args, n)
			out := cmd.OutOrStdout()
			for _, r := range results {
				if err := writeJSON(out, r, false); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Maximum pages extracted in parallel")
	return cmd
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
