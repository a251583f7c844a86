package cmd

import (
	"fmt"

	"github.com/brogergvhs/sushidl/internal/config"

	"github.com/spf13/cobra"
)

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "rename <from> <to>",
		Short: "Give a download profile a new label; the active selection follows it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := args[0], args[1]

			if err := config.DefaultStore().Rename(from, to); err != nil {
				return fmt.Errorf("rename profile: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q is now %q\n", from, to)
			return nil
		},
	})
}
