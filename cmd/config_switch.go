package cmd

import (
	"errors"
	"fmt"

	"github.com/brogergvhs/sushidl/internal/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "switch [label]",
		Short: "Select the download profile (output folder, cookies, retry policy) used by later runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.DefaultStore()

			label := ""
			if len(args) == 1 {
				label = args[0]
			} else {
				picked, err := pickProfile(store)
				if err != nil {
					return err
				}
				label = picked
			}

			if err := store.Switch(label); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s\n", label)
			return nil
		},
	})
}

// pickProfile lets the user choose among the stored profiles.
func pickProfile(store config.Store) (string, error) {
	profiles, err := store.List()
	if err != nil {
		return "", err
	}
	if len(profiles) == 0 {
		return "", errors.New("no profiles yet, run `sushidl config init` first")
	}

	labels := make([]string, len(profiles))
	cursor := 0
	for i, p := range profiles {
		labels[i] = p.Label
		if p.Active {
			cursor = i
		}
	}

	sel := promptui.Select{
		Label:     "Profile",
		Items:     labels,
		CursorPos: cursor,
	}

	idx, _, err := sel.Run()
	if err != nil {
		return "", fmt.Errorf("profile selection: %w", err)
	}
	return profiles[idx].Label, nil
}
