package cli

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain the vector index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index occupancy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stats := app.Index.Stats()
		cmd.Printf("Dimension:  %d\n", stats.Dimension)
		cmd.Printf("Live:       %d\n", stats.Live)
		cmd.Printf("Tombstones: %d\n", stats.Tombstones)
		return nil
	},
}

var indexCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rebuild the index if tombstones have accumulated",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rebuilt, err := app.Index.Compact()
		if err != nil {
			return err
		}
		if rebuilt {
			cmd.Println("Index compacted.")
		} else {
			cmd.Println("Compaction not needed.")
		}
		return nil
	},
}

var indexReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed all content and rebuild the index",
	Long: `Re-embeds every ready item with the configured embedding model and
rebuilds the vector index. Required after changing the embedding model.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := opContext()
		defer cancel()

		count, err := app.Content.Reindex(ctx, app.Cfg.UserID)
		if err != nil {
			return err
		}
		cmd.Printf("Reindexed %d items.\n", count)
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexStatsCmd, indexCompactCmd, indexReindexCmd)
	rootCmd.AddCommand(indexCmd)
}
