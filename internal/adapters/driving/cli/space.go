package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

var (
	spaceDescription string
	spaceNewName     string
	spaceJSON        bool
)

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Manage spaces",
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		space, err := app.Spaces.Create(ctx, app.Cfg.UserID, args[0], spaceDescription)
		if err != nil {
			return err
		}
		cmd.Printf("Created space %s (%s)\n", space.Name, space.ID)
		return nil
	},
}

var spaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := opContext()
		defer cancel()

		spaces, err := app.Spaces.List(ctx, app.Cfg.UserID)
		if err != nil {
			return err
		}
		if spaceJSON {
			return printJSON(cmd, spaces)
		}
		if len(spaces) == 0 {
			cmd.Println("No spaces yet. Create one with: recall space create <name>")
			return nil
		}
		for _, s := range spaces {
			cmd.Printf("%s  %-30s %3d items  %s\n", s.ID, s.Name, s.ItemCount, s.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var spaceShowCmd = &cobra.Command{
	Use:   "show [space-id]",
	Short: "Show a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		space, err := app.Spaces.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if spaceJSON {
			return printJSON(cmd, space)
		}
		printSpace(cmd, space)
		return nil
	},
}

var spaceUpdateCmd = &cobra.Command{
	Use:   "update [space-id]",
	Short: "Update a space's name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		var name, description *string
		if cmd.Flags().Changed("name") {
			name = &spaceNewName
		}
		if cmd.Flags().Changed("description") {
			description = &spaceDescription
		}
		if name == nil && description == nil {
			return fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
		}

		space, err := app.Spaces.Update(ctx, args[0], name, description)
		if err != nil {
			return err
		}
		printSpace(cmd, space)
		return nil
	},
}

var spaceDeleteCmd = &cobra.Command{
	Use:   "delete [space-id]",
	Short: "Delete a space and all of its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext()
		defer cancel()

		if err := app.Spaces.Delete(ctx, args[0]); err != nil {
			return err
		}
		cmd.Println("Deleted space", args[0])
		return nil
	},
}

func init() {
	spaceCreateCmd.Flags().StringVarP(&spaceDescription, "description", "d", "", "space description")
	spaceUpdateCmd.Flags().StringVar(&spaceNewName, "name", "", "new name")
	spaceUpdateCmd.Flags().StringVarP(&spaceDescription, "description", "d", "", "new description")
	spaceListCmd.Flags().BoolVar(&spaceJSON, "json", false, "output as JSON")
	spaceShowCmd.Flags().BoolVar(&spaceJSON, "json", false, "output as JSON")

	spaceCmd.AddCommand(spaceCreateCmd, spaceListCmd, spaceShowCmd, spaceUpdateCmd, spaceDeleteCmd)
	rootCmd.AddCommand(spaceCmd)
}

func printSpace(cmd *cobra.Command, s *domain.Space) {
	cmd.Printf("ID:          %s\n", s.ID)
	cmd.Printf("Name:        %s\n", s.Name)
	if s.Description != "" {
		cmd.Printf("Description: %s\n", s.Description)
	}
	cmd.Printf("Items:       %d\n", s.ItemCount)
	cmd.Printf("Created:     %s\n", s.CreatedAt.Format("2006-01-02 15:04"))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// opContext builds the per-operation context with the configured
// deadline.
func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), flagTimeout)
}
