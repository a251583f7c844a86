package cmd

import (
	"fmt"
	"time"

	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings, or manage download profiles and stored SushiScan cookies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, source, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile: %s\n\n", source)
		cfg.Fprint(out)

		fmt.Fprintln(out, "\nCookies:")
		now := time.Now()
		for _, d := range sushiscan.Domains {
			fmt.Fprintf(out, "  %-14s %s\n", d.Host(), cfg.CookieFreshness(string(d), now))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
