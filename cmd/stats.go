package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-keiba-collector/internal/export"
	"go-keiba-collector/internal/store"
)

var flagStatsJSON string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.OpenSQLite(cfg.CacheDB)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer st.Close()

		if flagStatsJSON != "" {
			if err := export.StatsJSON(cmd.Context(), st, flagStatsJSON); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", flagStatsJSON)
			return nil
		}
		stats, err := st.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cache: %s\n", cfg.CacheDB)
		for _, c := range stats.Caches {
			fmt.Fprintf(out, "%-14s keys=%d rows=%d\n", c.Cache, c.Keys, c.Rows)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&flagStatsJSON, "json", "", "write statistics as JSON to this path")
}
