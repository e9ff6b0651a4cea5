package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var (
	searchSpace string
	searchK     int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search items by semantic similarity",
	Long: `Searches saved items by semantic similarity. With --space the search
is scoped to one space; without it, all of your spaces are searched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		var hits []domain.ItemHit
		var err error
		if searchSpace != "" {
			hits, err = app.Content.SearchInSpace(ctx, searchSpace, args[0], searchK)
		} else {
			hits, err = app.Content.GlobalSearch(ctx, app.Cfg.UserID, args[0], searchK)
		}
		if err != nil {
			return err
		}

		if searchJSON {
			return printJSON(cmd, hits)
		}
		if len(hits) == 0 {
			cmd.Println("No results found.")
			return nil
		}
		for i, hit := range hits {
			label := hit.Item.Content
			if hit.Item.Kind == domain.KindFile && hit.Item.File != nil {
				label = hit.Item.File.OriginalName
			}
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, domain.Truncate(label, 70), hit.Score)
			if searchSpace == "" {
				cmd.Printf("      Space: %s\n", hit.Item.SpaceID)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchSpace, "space", "s", "", "limit search to one space")
	searchCmd.Flags().IntVarP(&searchK, "top", "k", 0, "number of results (0 = default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(searchCmd)
}
