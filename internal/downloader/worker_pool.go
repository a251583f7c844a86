package downloader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/brogergvhs/sushidl/internal/failure"

	"golang.org/x/sync/errgroup"
)

var imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "avif": true}

// tally is shared by the workers of one chapter attempt.
type tally struct {
	mu       sync.Mutex
	done     int
	total    int
	saved    int
	bytes    int64
	failures []failure.Record
	progress ProgressFunc
}

func (t *tally) complete(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.saved++
	t.bytes += n
	t.tick()
}

// fail records rec; cancelled images are not counted as completed.
func (t *tally) fail(rec failure.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = append(t.failures, rec)
	if rec.Kind != failure.KindCancelled {
		t.tick()
	}
}

func (t *tally) tick() {
	t.done++
	if t.progress != nil {
		t.progress(t.done, t.total)
	}
}

// runPool fetches every image with at most d.workers in flight. Workers never
// return errors so one failure cannot stop its siblings.
func (d *Downloader) runPool(ctx context.Context, req Request, cookie, dir string) *tally {
	t := &tally{total: len(req.ImageURLs), progress: req.OnProgress}
	if t.progress != nil {
		t.progress(0, t.total)
	}

	width := len(strconv.Itoa(len(req.ImageURLs)))

	var g errgroup.Group
	g.SetLimit(d.workers)

	for i, u := range req.ImageURLs {
		if ctx.Err() != nil {
			break
		}

		name := fmt.Sprintf("%0*d.%s", width, i+1, extension(u))
		g.Go(func() error {
			d.fetchImage(ctx, req, cookie, u, filepath.Join(dir, name), t)
			return nil
		})
	}

	_ = g.Wait()

	return t
}

func (d *Downloader) fetchImage(ctx context.Context, req Request, cookie, imageURL, dest string, t *tally) {
	if err := ctx.Err(); err != nil {
		t.fail(failure.NewRecord(imageURL, failure.Cancelled(err)))
		return
	}

	raw, err := d.fetcher.Fetch(ctx, imageURL, d.headers(imageURL, cookie, req.UserAgent, req.ChapterURL))
	if err != nil {
		rec := failure.NewRecord(imageURL, err)
		switch rec.Kind {
		case failure.KindCancelled:
			d.log.Debug("image cancelled", "chapter", req.Label, "url", imageURL)
		case failure.KindMissing:
			d.log.Warn("image missing upstream", "chapter", req.Label, "url", imageURL, "status", rec.StatusCode)
		default:
			d.log.Error("image failed",
				"chapter", req.Label,
				"url", imageURL,
				"kind", rec.Kind,
				"status", rec.StatusCode,
				"reason", rec.Reason)
		}
		t.fail(rec)
		return
	}

	if err := os.WriteFile(dest, raw, 0o644); err != nil {
		d.log.Error("cannot write image", "chapter", req.Label, "url", imageURL, "path", dest, "error", err)
		t.fail(failure.Record{URL: imageURL, Kind: failure.KindRetryable, Reason: err.Error()})
		return
	}

	if req.ConvertWebP && strings.EqualFold(filepath.Ext(dest), ".webp") {
		if out, err := convertToJPEG(dest); err != nil {
			d.log.Warn("webp conversion failed, keeping original", "chapter", req.Label, "path", dest, "error", err)
		} else {
			dest = out
		}
	}

	d.log.Debug("image saved", "chapter", req.Label, "url", imageURL, "path", dest)
	t.complete(int64(len(raw)))
}

// extension takes the file extension from the URL path, defaulting to jpg.
func extension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "jpg"
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if imageExts[ext] {
		return ext
	}
	return "jpg"
}
