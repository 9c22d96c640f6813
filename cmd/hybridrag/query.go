package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridrag/internal/pipeline"
)

type queryOptions struct {
	role      string
	documents []string
	json      bool
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question from the documents a role may read",
		Long: `Decomposes the question into parts, retrieves chunks for each part with
fused semantic and keyword search, and answers every part from the retrieved
context. Repeated questions are served from the role's answer cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.pipeline.Query(cmd.Context(), pipeline.QueryRequest{
				Question:      strings.Join(args, " "),
				Role:          opts.role,
				DocumentScope: opts.documents,
			})
			if err != nil {
				return err
			}

			if opts.json {
				return outputQueryJSON(cmd, resp)
			}
			return outputQueryText(cmd, resp)
		},
	}

	cmd.Flags().StringVarP(&opts.role, "role", "r", "", "role the question is asked for (required)")
	cmd.Flags().StringSliceVarP(&opts.documents, "doc", "d", nil, "restrict retrieval to these document ids")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the response as JSON")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func outputQueryJSON(cmd *cobra.Command, resp *pipeline.Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func outputQueryText(cmd *cobra.Command, resp *pipeline.Response) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		seen := make(map[string]bool, len(resp.Sources))
		for _, s := range resp.Sources {
			if seen[s.DocumentID] {
				continue
			}
			seen[s.DocumentID] = true
			fmt.Fprintf(out, "  - %s (%s)\n", s.Filename, s.DocumentID)
		}
	}
	if resp.Cached {
		fmt.Fprintf(out, "\n(cached answer, similarity %.2f)\n", resp.Similarity)
	}
	if resp.Degraded {
		fmt.Fprintln(out, "\n(keyword search only)")
	}
	return nil
}
