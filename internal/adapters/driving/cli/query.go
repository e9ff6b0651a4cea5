package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var (
	askK         int
	historyLimit int
	historyPage  int
	queryJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [space-id] [question]",
	Short: "Ask a question grounded in a space's content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		query, err := app.Queries.Ask(ctx, args[0], args[1], askK)
		if err != nil {
			return err
		}
		if queryJSON {
			return printJSON(cmd, query)
		}

		cmd.Println(query.Answer)
		if len(query.Sources) > 0 {
			cmd.Println()
			cmd.Println("Sources:")
			for i, src := range query.Sources {
				cmd.Printf("  [%d] %s (%s, %.2f) %s\n", i+1, src.ItemID, src.Kind, src.Score,
					domain.Truncate(src.Snippet, 80))
			}
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [space-id]",
	Short: "Show past questions and answers for a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		queries, err := app.Queries.History(ctx, args[0], historyLimit, historyPage*historyLimit)
		if err != nil {
			return err
		}
		if queryJSON {
			return printJSON(cmd, queries)
		}
		if len(queries) == 0 {
			cmd.Println("No queries yet.")
			return nil
		}
		for _, q := range queries {
			cmd.Printf("%s  Q: %s\n", q.CreatedAt.Format("2006-01-02 15:04"), q.Question)
			cmd.Printf("            A: %s\n", domain.Truncate(q.Answer, 200))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&askK, "top", "k", 0, "number of items to retrieve (1-20, 0 = default)")
	askCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "queries per page")
	historyCmd.Flags().IntVar(&historyPage, "page", 0, "page number")
	historyCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(askCmd, historyCmd)
}
