package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"
	"github.com/brogergvhs/sushidl/internal/session"
	"github.com/brogergvhs/sushidl/internal/ui"
	"github.com/brogergvhs/sushidl/internal/util"

	"github.com/spf13/cobra"
)

var flagWatch time.Duration

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect the anti-bot session of each domain",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe both domains with the stored cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
		})
		if err != nil {
			return err
		}

		logger := ui.NewLogger(cfg.Debug)
		client := newClient(cfg, cfg.ImpersonateTLS, logger)
		ua := util.PickUserAgent(cfg.UserAgent)

		ctx, cancel := util.InterruptContext(context.Background())
		defer cancel()

		every := flagWatch
		if every <= 0 {
			every = time.Second
		}
		poller := session.NewPoller(session.NewEvaluator(client, logger), every)

		for {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			_, _ = fmt.Fprintln(w, "DOMAIN\tCHALLENGE\tCOOKIE VALID\tHTTP\tCOOKIE AGE")

			for _, d := range sushiscan.Domains {
				st, err := poller.Evaluate(ctx, d, cfg.CookieFor(string(d)), ua, "")
				if errors.Is(err, context.Canceled) {
					_ = w.Flush()
					return nil
				}
				if err != nil {
					return err
				}

				status := "-"
				if st.HTTPStatus != 0 {
					status = fmt.Sprint(st.HTTPStatus)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
					d.Host(), st.Challenge, st.CookieValid, status, cfg.CookieFreshness(string(d), time.Now()))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if flagWatch <= 0 {
				return nil
			}
			fmt.Println()
		}
	},
}

func init() {
	sessionStatusCmd.Flags().DurationVar(&flagWatch, "watch", 0, "probe again at this interval until interrupted")
	sessionCmd.AddCommand(sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}
