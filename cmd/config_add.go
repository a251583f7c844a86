package cmd

import (
	"fmt"

	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/ui"

	"github.com/spf13/cobra"
)

var configAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Create a new config with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			v, ok, err := ui.NewPrompter().PromptString("Label for the new config", "e.g. work")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
			label = v
		}

		path, err := config.DefaultStore().Create(label)
		if err != nil {
			return err
		}

		fmt.Printf("Created new config: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configAddCmd)
}
