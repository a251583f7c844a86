package cmd

import (
	"context"
	"fmt"

	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"
	"github.com/brogergvhs/sushidl/internal/ui"
	"github.com/brogergvhs/sushidl/internal/util"

	"github.com/spf13/cobra"
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "List the chapters of a series",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
			DefaultURL:   flagURL,
			CookieFile:   flagCookieFile,
			UserAgent:    flagUserAgent,
		})
		if err != nil {
			return err
		}

		if !sushiscan.ValidCatalogURL(cfg.DefaultURL) {
			return fmt.Errorf("invalid series URL %q", cfg.DefaultURL)
		}
		domain := sushiscan.DomainFromURL(cfg.DefaultURL)

		cookie, err := resolveCookie(cfg, domain)
		if err != nil {
			return err
		}

		logger := ui.NewLogger(cfg.Debug)
		client := newClient(cfg, cfg.ImpersonateTLS, logger)
		scr := sushiscan.NewScraper(client, cookie, util.PickUserAgent(cfg.UserAgent), logger)

		catalog, err := scr.GetCatalog(context.Background(), cfg.DefaultURL)
		if err != nil {
			return err
		}

		fmt.Println(catalog.Title)
		if catalog.CoverURL != "" {
			fmt.Println("Cover:", catalog.CoverURL)
		}
		fmt.Println()

		for i, ch := range catalog.Chapters {
			fmt.Printf("%3d) %s\n", i+1, ch.Label)
			if cfg.Debug {
				fmt.Printf("     %s\n", ch.URL)
			}
		}
		return nil
	},
}

func init() {
	chaptersCmd.Flags().StringVar(&flagURL, "url", "", "series page URL")
	chaptersCmd.Flags().StringVar(&flagCookie, "cookie", "", "cf_clearance value or full cookie string")
	chaptersCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file holding the cookie")
	chaptersCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	rootCmd.AddCommand(chaptersCmd)
}
