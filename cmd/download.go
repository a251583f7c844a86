package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/brogergvhs/sushidl/internal/chapters"
	"github.com/brogergvhs/sushidl/internal/config"
	"github.com/brogergvhs/sushidl/internal/downloader"
	"github.com/brogergvhs/sushidl/internal/fetch"
	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"
	"github.com/brogergvhs/sushidl/internal/ui"
	"github.com/brogergvhs/sushidl/internal/util"

	"github.com/spf13/cobra"
)

var (
	// selection
	flagURL     string
	flagChapter string
	flagRange   string
	flagList    string
	flagFilter  string

	// runtime
	flagOutput        string
	flagWorkers       int
	flagNoCBZ         bool
	flagWebPToJPG     bool
	flagDryRun        bool
	flagCover         bool
	flagNoPrompt      bool
	flagNoImpersonate bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download chapters of a series and produce CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "series page URL (https://sushiscan.fr/catalogue/<slug>/)")
	downloadCmd.Flags().StringVar(&flagChapter, "chapter", "", "download single chapter by label or index (e.g. \"Chapitre 12\" or 5)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of chapters by index (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter indices (e.g. 1,3,5)")
	downloadCmd.Flags().StringVar(&flagFilter, "filter", "", "keep chapters whose label contains this text")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder")
	downloadCmd.Flags().IntVar(&flagWorkers, "workers", config.DefaultWorkers, "parallel image downloads per chapter")
	downloadCmd.Flags().BoolVar(&flagNoCBZ, "no-cbz", false, "keep image folders instead of building CBZ archives")
	downloadCmd.Flags().BoolVar(&flagWebPToJPG, "webp-to-jpg", false, "convert WebP pages to JPEG")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don't download")
	downloadCmd.Flags().BoolVar(&flagCover, "cover", false, "also save the series cover")
	downloadCmd.Flags().BoolVar(&flagNoPrompt, "no-prompt", false, "never ask for a new cookie when a chapter is blocked")
	downloadCmd.Flags().BoolVar(&flagNoImpersonate, "no-impersonate", false, "use the plain Go TLS client")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cf_clearance value or full cookie string")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file holding the cookie (first line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent; must match the browser that produced the cookie")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Output:       flagOutput,
		DefaultURL:   flagURL,
		DefaultRange: flagRange,
		DefaultList:  flagList,
		CookieFile:   flagCookieFile,
		UserAgent:    flagUserAgent,
	})
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("workers") {
		cfg.Workers = max(1, flagWorkers)
	}
	if flagNoCBZ {
		cfg.CBZ = false
	}
	if flagWebPToJPG {
		cfg.WebPToJPG = true
	}
	if flagNoImpersonate {
		cfg.ImpersonateTLS = false
	}

	logger := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	fmt.Println("Full config:")
	cfg.Print()
	fmt.Println()

	if cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}
	if !sushiscan.ValidCatalogURL(cfg.DefaultURL) {
		return fmt.Errorf("invalid series URL %q (expected https://sushiscan.fr/catalogue/<slug>/ or .net)", cfg.DefaultURL)
	}
	domain := sushiscan.DomainFromURL(cfg.DefaultURL)

	cookie, err := resolveCookie(cfg, domain)
	if err != nil {
		return err
	}
	if cookie == "" {
		logger.Warn("no cookie configured, the site may answer with a challenge page", "domain", domain.Host())
	} else if f := cfg.CookieFreshness(string(domain), time.Now()); f == config.Stale || f == config.Review {
		logger.Warn("stored cookie is old", "domain", domain.Host(), "freshness", f)
	}

	ua := util.PickUserAgent(cfg.UserAgent)
	client := newClient(cfg, cfg.ImpersonateTLS, logger)

	ctx, cancel := util.InterruptContext(context.Background())
	defer cancel()

	scr := sushiscan.NewScraper(client, cookie, ua, logger)

	catalog, err := scr.GetCatalog(ctx, cfg.DefaultURL)
	if err != nil {
		return err
	}

	all := chapters.Wrap(catalog.Chapters)
	fmt.Printf("%s: %d chapters found on the site.\n\n", catalog.Title, len(all))

	selected := chapters.Filter(all, flagChapter, cfg.DefaultRange, cfg.DefaultList)
	selected = chapters.FilterText(selected, flagFilter)
	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Printf("Dry-run: %d chapters selected.\n\n", len(selected))
		for i, ch := range selected {
			fmt.Printf("%3d) %s\n    %s\n", i+1, ch.Label, ch.URL)
		}
		return nil
	}

	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}
	defer util.RemoveIfEmpty(cfg.Output)

	f := fetch.New(client,
		fetch.WithMaxAttempts(cfg.MaxAttempts),
		fetch.WithBaseDelay(cfg.RetryDelay),
		fetch.WithLogger(logger),
	)

	if flagCover && catalog.CoverURL != "" {
		if err := saveCover(ctx, f, cfg.Output, catalog.Title, catalog.CoverURL, cookie, ua, cfg.DefaultURL); err != nil {
			logger.Warn("cover not saved", "url", catalog.CoverURL, "error", err)
		}
	}

	opts := downloader.Options{
		Root:    cfg.Output,
		Workers: cfg.Workers,
		Headers: sushiscan.ImageHeaders,
		Logger:  logger,
	}
	if !flagNoPrompt {
		opts.Prompter = ui.NewPrompter()
	}
	dl := downloader.New(f, opts)

	pm := ui.NewProgressManager()
	var bar *ui.ProgressHandle

	start := time.Now()
	rep := dl.DownloadAll(ctx, downloader.Batch{
		Title:       catalog.Title,
		Chapters:    selected,
		Source:      scr,
		Cookie:      cookie,
		UserAgent:   ua,
		Archive:     cfg.CBZ,
		ConvertWebP: cfg.WebPToJPG,
		Progress: func(ch chapters.Chapter, total int) downloader.ProgressFunc {
			if bar != nil {
				bar.MarkDone()
			}
			bar = pm.Register(ch.Label, total)
			return bar.Update
		},
	})
	if bar != nil {
		bar.MarkDone()
	}
	pm.Close()

	if rep.Cookie != cookie {
		persistCookie(domain, rep.Cookie, logger)
	}

	ui.Stats{
		Chapters:  len(rep.Succeeded),
		Images:    rep.Images,
		Bytes:     rep.Bytes,
		Elapsed:   time.Since(start),
		Failed:    rep.Failed,
		Skipped:   rep.Skipped,
		Cancelled: rep.Cancelled,
	}.Fprint(os.Stdout)

	if rep.Cancelled {
		return context.Canceled
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d chapter(s) failed", len(rep.Failed))
	}
	return nil
}

// resolveCookie picks --cookie, then the cookie file, then the stored cookie
// of the domain.
func resolveCookie(cfg *config.Config, d sushiscan.Domain) (string, error) {
	if c := strings.TrimSpace(flagCookie); c != "" {
		return c, nil
	}

	if cfg.CookieFile != "" {
		c, err := util.ReadCookieFile(cfg.CookieFile)
		if err != nil {
			return "", fmt.Errorf("read cookie file: %w", err)
		}
		return c, nil
	}

	return cfg.CookieFor(string(d)), nil
}

func persistCookie(d sushiscan.Domain, cookie string, logger *slog.Logger) {
	path, err := config.DefaultStore().Update(func(c *config.Config) {
		c.SetCookie(string(d), cookie, time.Now())
	})
	switch {
	case errors.Is(err, config.ErrNoConfig):
		logger.Info("new cookie not saved, run `sushidl config init` to keep it", "domain", d.Host())
	case err != nil:
		logger.Warn("could not save new cookie", "domain", d.Host(), "error", err)
	default:
		logger.Info("new cookie saved", "domain", d.Host(), "config", path)
	}
}

func saveCover(ctx context.Context, f *fetch.Fetcher, root, title, coverURL, cookie, ua, referer string) error {
	raw, err := f.Fetch(ctx, coverURL, sushiscan.ImageHeaders(coverURL, cookie, ua, referer))
	if err != nil {
		return err
	}

	ext := strings.ToLower(path.Ext(strings.SplitN(coverURL, "?", 2)[0]))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}

	dir := filepath.Join(root, chapters.Sanitize(title))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "cover"+ext), raw, 0o644)
}
