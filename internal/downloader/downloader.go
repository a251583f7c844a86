package downloader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/brogergvhs/sushidl/internal/cbz"
	"github.com/brogergvhs/sushidl/internal/chapters"
	"github.com/brogergvhs/sushidl/internal/failure"
	"github.com/brogergvhs/sushidl/internal/providers"

	"github.com/dustin/go-humanize"
)

const DefaultWorkers = 3

type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error)
}

// Prompter asks the user to act on a failed chapter. PromptString reports
// ok=false when the user dismissed the prompt.
type Prompter interface {
	Confirm(title, prompt string) (bool, error)
	PromptString(title, prompt string) (value string, ok bool, err error)
}

type HeaderFunc func(imageURL, cookie, userAgent, referer string) http.Header

type ArchiveFunc func(folder, title, label string) (string, error)

type ProgressFunc func(done, total int)

type Outcome int

const (
	Success Outcome = iota
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Options struct {
	Root     string
	Workers  int
	Prompter Prompter
	Headers  HeaderFunc
	Archiver ArchiveFunc
	Logger   *slog.Logger
}

type Downloader struct {
	fetcher  Fetcher
	root     string
	workers  int
	prompter Prompter
	headers  HeaderFunc
	archive  ArchiveFunc
	log      *slog.Logger
}

func New(f Fetcher, opts Options) *Downloader {
	d := &Downloader{
		fetcher:  f,
		root:     opts.Root,
		workers:  opts.Workers,
		prompter: opts.Prompter,
		headers:  opts.Headers,
		archive:  opts.Archiver,
		log:      opts.Logger,
	}

	if d.root == "" {
		d.root = "."
	}
	if d.workers < 1 {
		d.workers = DefaultWorkers
	}
	if d.headers == nil {
		d.headers = basicHeaders
	}
	if d.archive == nil {
		d.archive = cbz.Archive
	}
	if d.log == nil {
		d.log = slog.New(slog.DiscardHandler)
	}

	return d
}

func basicHeaders(_, cookie, userAgent, referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "image/*,*/*;q=0.8")
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if referer != "" {
		h.Set("Referer", referer)
	}
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}

type Request struct {
	Title      string
	Label      string
	ChapterURL string // sent as Referer for every image
	ImageURLs  []string
	Cookie     string
	UserAgent  string

	Archive     bool
	ConvertWebP bool
	OnProgress  ProgressFunc
}

type Result struct {
	Outcome     Outcome
	Dir         string
	ArchivePath string
	Failures    []failure.Record
	Images      int
	Bytes       int64
	// Cookie is the session cookie in use when the chapter finished; it
	// differs from Request.Cookie after a cookie retry.
	Cookie string
}

// DownloadChapter fetches every image of one chapter into
// <root>/<title>/<label>/ and archives it when requested. Hard failures lead
// to a prompt offering to restart the whole chapter with a new cookie.
func (d *Downloader) DownloadChapter(ctx context.Context, req Request) Result {
	cookie := req.Cookie

	for {
		res, hard := d.run(ctx, req, cookie)
		res.Cookie = cookie
		if len(hard) == 0 {
			return res
		}

		next, ok := d.askNewCookie(ctx, req, hard)
		if !ok {
			return res
		}

		if err := os.RemoveAll(res.Dir); err != nil {
			d.log.Warn("could not remove partial chapter", "chapter", req.Label, "dir", res.Dir, "error", err)
		}
		d.log.Info("restarting chapter with new cookie", "chapter", req.Label)
		cookie = next
	}
}

// run performs one attempt. The returned hard failures are non-empty only
// when the attempt failed for a reason a new cookie might fix.
func (d *Downloader) run(ctx context.Context, req Request, cookie string) (Result, []failure.Record) {
	ch := chapters.Chapter{Chapter: providers.Chapter{Label: req.Label, URL: req.ChapterURL}}
	res := Result{Dir: ch.Dir(d.root, req.Title)}

	if ctx.Err() != nil {
		res.Outcome = Cancelled
		return res, nil
	}

	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		d.log.Error("cannot create chapter folder", "chapter", req.Label, "dir", res.Dir, "error", err)
		res.Outcome = Failed
		return res, nil
	}

	t := d.runPool(ctx, req, cookie, res.Dir)
	res.Failures = t.failures
	res.Images = t.saved
	res.Bytes = t.bytes

	if ctx.Err() != nil {
		d.log.Warn("chapter cancelled", "chapter", req.Label, "saved", t.saved, "dir", res.Dir)
		res.Outcome = Cancelled
		return res, nil
	}

	var missing, hard []failure.Record
	for _, f := range t.failures {
		switch {
		case f.Kind == failure.KindMissing:
			missing = append(missing, f)
		case f.Kind.Hard():
			hard = append(hard, f)
		}
	}

	if len(missing) > 0 {
		d.log.Warn("pages missing upstream, chapter kept without them",
			"chapter", req.Label,
			"count", len(missing),
			"url", missing[0].URL)
	}

	if len(hard) > 0 {
		d.log.Error("chapter incomplete",
			"chapter", req.Label,
			"failed", len(hard),
			"total", len(req.ImageURLs),
			"url", hard[0].URL,
			"status", hard[0].StatusCode,
			"reason", hard[0].Reason)
		res.Outcome = Failed
		return res, hard
	}

	n, err := countFiles(res.Dir)
	if err != nil || n == 0 {
		d.log.Error("no image saved for chapter", "chapter", req.Label, "dir", res.Dir, "error", err)
		res.Outcome = Failed
		return res, nil
	}

	if !req.Archive {
		d.log.Info("chapter downloaded", "chapter", req.Label, "images", n, "dir", res.Dir)
		res.Outcome = Success
		return res, nil
	}

	out, err := d.archive(res.Dir, req.Title, req.Label)
	if err != nil {
		d.log.Warn("archive failed, images kept", "chapter", req.Label, "dir", res.Dir, "error", err)
		res.Outcome = Failed
		return res, nil
	}

	res.ArchivePath = out
	size := int64(0)
	if info, err := os.Stat(out); err == nil {
		size = info.Size()
	}
	d.log.Info("CBZ created", "chapter", req.Label, "path", out, "size", humanize.Bytes(uint64(size)))
	res.Outcome = Success

	return res, nil
}

func (d *Downloader) askNewCookie(ctx context.Context, req Request, hard []failure.Record) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if d.prompter == nil {
		return "", false
	}

	prompt := fmt.Sprintf("%d image(s) of %q failed (%s). Replace the cookie and restart the chapter?",
		len(hard), req.Label, hard[0].Reason)

	yes, err := d.prompter.Confirm("Download failed", prompt)
	if err != nil {
		d.log.Error("retry prompt failed", "chapter", req.Label, "error", err)
		return "", false
	}
	if !yes || ctx.Err() != nil {
		return "", false
	}

	cookie, ok, err := d.prompter.PromptString("New cookie", "cf_clearance value")
	if err != nil {
		d.log.Error("cookie prompt failed", "chapter", req.Label, "error", err)
		return "", false
	}
	if ctx.Err() != nil {
		return "", false
	}

	cookie = strings.TrimSpace(cookie)
	if !ok || cookie == "" {
		d.log.Error("no cookie entered, chapter left incomplete", "chapter", req.Label)
		return "", false
	}

	return cookie, true
}

func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.Type().IsRegular() {
			n++
		}
		return nil
	})
	return n, err
}
