package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var (
	itemNotes  string
	itemLimit  int
	itemOffset int
	itemJSON   bool
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage items in a space",
}

var itemSaveCmd = &cobra.Command{
	Use:   "save [space-id] [text]",
	Short: "Save a text message into a space",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		item, err := app.Content.SaveMessage(ctx, args[0], args[1], itemNotes)
		if err != nil {
			return err
		}
		cmd.Printf("Saved message %s\n", item.ID)
		return nil
	},
}

var itemUploadCmd = &cobra.Command{
	Use:   "upload [space-id] [path]",
	Short: "Upload a file into a space",
	Long: `Uploads a file, extracts its text (PDF, DOCX, plain text, or image
via OCR), and indexes it for semantic search. Files are limited to 10 MiB.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		item, err := app.Content.SaveFile(ctx, args[0], data, filepath.Base(args[1]), itemNotes)
		if err != nil {
			if item != nil && item.Status == domain.StatusFailed {
				cmd.Printf("Saved file %s, but extraction failed: %s\n", item.ID, item.FailureReason)
				return nil
			}
			return err
		}
		cmd.Printf("Uploaded %s as %s\n", filepath.Base(args[1]), item.ID)
		return nil
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list [space-id]",
	Short: "List items in a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		items, err := app.Content.ListItems(ctx, args[0], itemLimit, itemOffset)
		if err != nil {
			return err
		}
		if itemJSON {
			return printJSON(cmd, items)
		}
		if len(items) == 0 {
			cmd.Println("No items in this space.")
			return nil
		}
		for _, item := range items {
			printItemLine(cmd, item)
		}
		return nil
	},
}

var itemDeleteCmd = &cobra.Command{
	Use:   "delete [space-id] [item-id]",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		if err := app.Content.DeleteItem(ctx, args[0], args[1]); err != nil {
			return err
		}
		cmd.Println("Deleted item", args[1])
		return nil
	},
}

func init() {
	itemSaveCmd.Flags().StringVarP(&itemNotes, "notes", "n", "", "optional notes")
	itemUploadCmd.Flags().StringVarP(&itemNotes, "notes", "n", "", "optional notes")
	itemListCmd.Flags().IntVar(&itemLimit, "limit", 50, "maximum number of items")
	itemListCmd.Flags().IntVar(&itemOffset, "offset", 0, "pagination offset")
	itemListCmd.Flags().BoolVar(&itemJSON, "json", false, "output as JSON")

	itemCmd.AddCommand(itemSaveCmd, itemUploadCmd, itemListCmd, itemDeleteCmd)
	rootCmd.AddCommand(itemCmd)
}

func printItemLine(cmd *cobra.Command, item domain.Item) {
	label := item.Content
	if item.Kind == domain.KindFile && item.File != nil {
		label = item.File.OriginalName
	}
	label = domain.Truncate(label, 60)

	status := ""
	if item.Status != domain.StatusReady {
		status = fmt.Sprintf(" [%s]", item.Status)
	}
	cmd.Printf("%s  %-7s %s%s\n", item.ID, item.Kind, label, status)
}
