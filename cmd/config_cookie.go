package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"

	"github.com/spf13/cobra"
)

var configCookieCmd = &cobra.Command{
	Use:   "cookie <fr|net> <value>",
	Short: "Store the cf_clearance cookie of a domain in the active config",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ok := sushiscan.ParseDomain(args[0])
		if !ok {
			return fmt.Errorf("unknown domain %q (expected fr or net)", args[0])
		}

		value := strings.TrimSpace(args[1])
		if value == "" {
			return fmt.Errorf("cookie value cannot be empty")
		}

		path, err := config.DefaultStore().Update(func(c *config.Config) {
			c.SetCookie(string(d), value, time.Now())
		})
		if err != nil {
			return err
		}

		fmt.Printf("Cookie for %s saved in %s\n", d.Host(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCookieCmd)
}
