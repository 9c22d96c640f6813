package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridrag/pkg/types"
)

type statusOptions struct {
	documents bool
	json      bool
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show document, chunk, embedding and cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			status, err := a.store.GetStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			var docs []*types.Document
			if opts.documents {
				if docs, err = a.store.ListDocuments(ctx); err != nil {
					return fmt.Errorf("failed to list documents: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if opts.json {
				data, err := json.MarshalIndent(map[string]any{
					"status":    status,
					"documents": docs,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal status: %w", err)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			fmt.Fprintf(out, "Backend:     %s\n", status.Backend)
			fmt.Fprintf(out, "Embedder:    %s (%s, %d dims)\n", a.embedder.Provider(), a.embedder.Model(), a.embedder.Dimension())
			fmt.Fprintf(out, "Documents:   %s\n", formatCounts(status.Documents))
			fmt.Fprintf(out, "Chunks:      %d\n", status.ChunksCount)
			fmt.Fprintf(out, "Embeddings:  %d\n", status.EmbeddingsCount)
			fmt.Fprintf(out, "Cache:       %d entries, %d hits\n", status.CacheEntries, status.CacheHits)
			fmt.Fprintf(out, "Size:        %.2f MB\n", status.SizeMB)

			for _, d := range docs {
				roles := d.Roles()
				sort.Strings(roles)
				fmt.Fprintf(out, "  %-24s %-12s %4d chunks  owner=%s visible=%s\n",
					d.ID, d.Status, d.ChunkCount, d.OwnerRole, strings.Join(roles, ","))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.documents, "documents", false, "list every document")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output as JSON")
	return cmd
}

func formatCounts(counts map[types.DocumentStatus]int) string {
	if len(counts) == 0 {
		return "none"
	}
	order := []types.DocumentStatus{types.StatusCompleted, types.StatusChunksReady, types.StatusProcessing, types.StatusFailed}
	parts := make([]string, 0, len(order))
	for _, st := range order {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	return strings.Join(parts, ", ")
}
