package cmd

import (
	"fmt"

	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/ui"

	"github.com/spf13/cobra"
)

var forceRemove bool

var configRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove a config (<config_label>)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]
		store := config.DefaultStore()

		active, _ := store.CurrentLabel()

		if label == active && !forceRemove {
			ok, err := ui.NewPrompter().Confirm("Remove config", fmt.Sprintf("%q is currently active, remove it anyway", label))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := store.Remove(label); err != nil {
			return err
		}

		if label == active {
			fmt.Println("Fallback switched to:", config.DefaultLabel)
		}
		fmt.Printf("Removed configuration %q\n", label)
		return nil
	},
}

func init() {
	configRemoveCmd.Flags().BoolVarP(&forceRemove, "force", "f", false, "do not ask before removing the active config")
	configCmd.AddCommand(configRemoveCmd)
}
