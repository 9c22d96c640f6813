package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the answer cache",
	}

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached answers not hit recently",
		Long: `Removes cache entries whose last hit is older than --older-than, or the
configured retrieval.cache_ttl when the flag is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ttl := a.cfg.Retrieval.CacheTTL.Duration
			if cmd.Flags().Changed("older-than") {
				ttl = olderThan
			}
			if ttl <= 0 {
				return errors.New("no TTL: pass --older-than or set retrieval.cache_ttl")
			}

			n, err := a.cache.Purge(cmd.Context(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d cache entries not hit in %s\n", n, ttl)
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 0, "purge entries last hit before now minus this duration")

	cmd.AddCommand(purge)
	return cmd
}
