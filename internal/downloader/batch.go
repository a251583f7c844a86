package downloader

import (
	"context"

	"github.com/brogergvhs/sushidl/internal/cbz"
	"github.com/brogergvhs/sushidl/internal/chapters"
)

type ImageSource interface {
	GetImages(ctx context.Context, chapterURL string) ([]string, error)
}

// cookieSetter is implemented by sources that send the session cookie.
type cookieSetter interface {
	SetCookie(cookie string)
}

type Batch struct {
	Title    string
	Chapters []chapters.Chapter
	Source   ImageSource

	Cookie    string
	UserAgent string

	Archive     bool
	ConvertWebP bool

	// Progress returns the progress sink for one chapter; it may be nil.
	Progress func(ch chapters.Chapter, total int) ProgressFunc
}

type Report struct {
	Succeeded []string
	Failed    []string
	Skipped   []string
	Cancelled bool
	Images    int
	Bytes     int64
	Cookie    string
}

// DownloadAll downloads chapters one after another, skipping those already
// archived, then gives every failed chapter one more pass.
func (d *Downloader) DownloadAll(ctx context.Context, b Batch) Report {
	rep := Report{Cookie: b.Cookie}
	pending := b.Chapters

	for pass := 1; pass <= 2 && len(pending) > 0; pass++ {
		if pass > 1 {
			d.log.Info("retrying failed chapters", "count", len(pending))
		}

		var failed []chapters.Chapter
		for _, ch := range pending {
			if ctx.Err() != nil {
				rep.Cancelled = true
				return rep
			}

			if b.Archive && cbz.Exists(ch.OutputCBZPath(d.root, b.Title)) {
				d.log.Info("archive already present, skipping", "chapter", ch.Label)
				rep.Skipped = append(rep.Skipped, ch.Label)
				continue
			}

			res, ok := d.downloadOne(ctx, b, ch, rep.Cookie)
			if !ok {
				failed = append(failed, ch)
				continue
			}

			rep.Cookie = res.Cookie
			rep.Images += res.Images
			rep.Bytes += res.Bytes

			switch res.Outcome {
			case Success:
				rep.Succeeded = append(rep.Succeeded, ch.Label)
			case Cancelled:
				rep.Cancelled = true
				return rep
			default:
				failed = append(failed, ch)
			}
		}
		pending = failed
	}

	for _, ch := range pending {
		rep.Failed = append(rep.Failed, ch.Label)
	}

	return rep
}

// downloadOne resolves the image list of ch and downloads it. ok is false
// when no image list could be obtained.
func (d *Downloader) downloadOne(ctx context.Context, b Batch, ch chapters.Chapter, cookie string) (Result, bool) {
	if cs, ok := b.Source.(cookieSetter); ok {
		cs.SetCookie(cookie)
	}

	images, err := b.Source.GetImages(ctx, ch.URL)
	if err != nil {
		d.log.Error("cannot load chapter page", "chapter", ch.Label, "url", ch.URL, "error", err)
		return Result{}, false
	}
	if len(images) == 0 {
		d.log.Error("no images found on chapter page", "chapter", ch.Label, "url", ch.URL)
		return Result{}, false
	}

	var progress ProgressFunc
	if b.Progress != nil {
		progress = b.Progress(ch, len(images))
	}

	return d.DownloadChapter(ctx, Request{
		Title:       b.Title,
		Label:       ch.Label,
		ChapterURL:  ch.URL,
		ImageURLs:   images,
		Cookie:      cookie,
		UserAgent:   b.UserAgent,
		Archive:     b.Archive,
		ConvertWebP: b.ConvertWebP,
		OnProgress:  progress,
	}), true
}
