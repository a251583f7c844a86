package downloader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brogergvhs/sushidl/internal/chapters"
	"github.com/brogergvhs/sushidl/internal/downloader"
	"github.com/brogergvhs/sushidl/internal/failure"
	"github.com/brogergvhs/sushidl/internal/fetch"
	"github.com/brogergvhs/sushidl/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisePNG is large enough that a handful of pages clears the archive
// size threshold.
func noisePNG(t *testing.T, seed int64) []byte {
	t.Helper()

	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for x := 0; x < 48; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(r.Intn(256)), G: uint8(r.Intn(256)), B: uint8(r.Intn(256)), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type imageServer struct {
	*httptest.Server
	img     []byte
	handler func(w http.ResponseWriter, r *http.Request) bool
}

func newImageServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request) bool) *imageServer {
	t.Helper()

	s := &imageServer{img: noisePNG(t, 1), handler: handler}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.handler != nil && s.handler(w, r) {
			return
		}
		_, _ = w.Write(s.img)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s.URL + "/img/" + string(rune('a'+i)) + ".png"
	}
	return out
}

type stubPrompter struct {
	mu       sync.Mutex
	confirm  bool
	cookie   string
	confirms int
	prompts  int
	onAsk    func()
}

func (p *stubPrompter) Confirm(_, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms++
	if p.onAsk != nil {
		p.onAsk()
	}
	return p.confirm, nil
}

func (p *stubPrompter) PromptString(_, _ string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return p.cookie, p.cookie != "", nil
}

func newDownloader(t *testing.T, client *http.Client, root string, p downloader.Prompter) *downloader.Downloader {
	t.Helper()

	f := fetch.New(client, fetch.WithSleep(noSleep), fetch.WithMaxAttempts(3))
	return downloader.New(f, downloader.Options{Root: root, Workers: 3, Prompter: p})
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestDownloadChapter_MissingPagesStillSucceed(t *testing.T) {
	srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if strings.HasSuffix(r.URL.Path, "/c.png") || strings.HasSuffix(r.URL.Path, "/h.png") {
			w.WriteHeader(http.StatusNotFound)
			return true
		}
		return false
	})

	root := t.TempDir()
	d := newDownloader(t, srv.Client(), root, nil)

	var mu sync.Mutex
	var progress [][2]int

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "Title",
		Label:     "Volume 1",
		ImageURLs: srv.urls(10),
		Archive:   true,
		OnProgress: func(done, total int) {
			mu.Lock()
			progress = append(progress, [2]int{done, total})
			mu.Unlock()
		},
	})

	require.Equal(t, downloader.Success, res.Outcome)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Equal(t, failure.KindMissing, f.Kind)
		assert.Equal(t, 404, f.StatusCode)
	}

	assert.Equal(t, filepath.Join(root, "Title", "Title - Tome 1.cbz"), res.ArchivePath)
	assert.Equal(t, []string{"01.png", "02.png", "04.png", "05.png", "06.png", "07.png", "09.png", "10.png"},
		zipEntries(t, res.ArchivePath))
	assert.NoDirExists(t, res.Dir)
	assert.Equal(t, 8, res.Images)

	require.Len(t, progress, 11)
	assert.Equal(t, [2]int{0, 10}, progress[0])
	assert.Equal(t, [2]int{10, 10}, progress[10])
}

func forbiddenUnlessNewCookie(w http.ResponseWriter, r *http.Request) bool {
	if strings.HasSuffix(r.URL.Path, "/e.png") && r.Header.Get("Cookie") != "new" {
		w.WriteHeader(http.StatusForbidden)
		return true
	}
	return false
}

func TestDownloadChapter_BlockedImageFailsWhenDeclined(t *testing.T) {
	srv := newImageServer(t, forbiddenUnlessNewCookie)
	p := &stubPrompter{confirm: false}
	d := newDownloader(t, srv.Client(), t.TempDir(), p)

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "Title",
		Label:     "Chapitre 3",
		ImageURLs: srv.urls(10),
		Cookie:    "old",
		Archive:   true,
	})

	assert.Equal(t, downloader.Failed, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, failure.KindBlocked, res.Failures[0].Kind)
	assert.Equal(t, 403, res.Failures[0].StatusCode)
	assert.Equal(t, 1, p.confirms)
	assert.Equal(t, 0, p.prompts)
	assert.Empty(t, res.ArchivePath)
	assert.DirExists(t, res.Dir)
	assert.Equal(t, "old", res.Cookie)
}

func TestDownloadChapter_BlockedImageRestartsWithNewCookie(t *testing.T) {
	srv := newImageServer(t, forbiddenUnlessNewCookie)

	root := t.TempDir()
	dir := filepath.Join(root, "Title", "Chapitre 3")

	p := &stubPrompter{confirm: true, cookie: " new "}
	p.onAsk = func() {
		// leftover of the failed attempt; must not survive the restart
		_ = os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644)
	}
	d := newDownloader(t, srv.Client(), root, p)

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "Title",
		Label:     "Chapitre 3",
		ImageURLs: srv.urls(10),
		Cookie:    "old",
		Archive:   true,
	})

	require.Equal(t, downloader.Success, res.Outcome)
	assert.Empty(t, res.Failures)
	assert.Equal(t, "new", res.Cookie)
	assert.Equal(t, 1, p.confirms)
	assert.Equal(t, 1, p.prompts)

	names := zipEntries(t, res.ArchivePath)
	assert.Len(t, names, 10)
	assert.NotContains(t, names, "stale.txt")
}

func TestDownloadChapter_DotLabelKeepsSeriesArchives(t *testing.T) {
	srv := newImageServer(t, nil)

	root := t.TempDir()
	series := filepath.Join(root, "Title")
	previous := filepath.Join(series, "Title - Chapitre 1.cbz")
	require.NoError(t, os.MkdirAll(series, 0o755))
	require.NoError(t, os.WriteFile(previous, []byte("earlier chapter"), 0o644))

	d := newDownloader(t, srv.Client(), root, nil)

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "Title",
		Label:     ".",
		ImageURLs: srv.urls(10),
		Archive:   true,
	})

	require.Equal(t, downloader.Success, res.Outcome)
	assert.Equal(t, filepath.Join(series, "_"), res.Dir)
	assert.Equal(t, filepath.Join(series, "Title - _.cbz"), res.ArchivePath)
	assert.FileExists(t, previous)
	assert.DirExists(t, series)
}

func TestDownloadChapter_CancelledWhilePromptingFails(t *testing.T) {
	srv := newImageServer(t, forbiddenUnlessNewCookie)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &stubPrompter{confirm: true, cookie: "new", onAsk: cancel}
	d := newDownloader(t, srv.Client(), t.TempDir(), p)

	res := d.DownloadChapter(ctx, downloader.Request{
		Title:     "Title",
		Label:     "Chapitre 4",
		ImageURLs: srv.urls(10),
		Cookie:    "old",
		Archive:   true,
	})

	assert.Equal(t, downloader.Failed, res.Outcome)
	assert.Equal(t, 1, p.confirms)
	assert.Equal(t, 0, p.prompts)
	assert.Equal(t, "old", res.Cookie)
	assert.Empty(t, res.ArchivePath)
	assert.DirExists(t, res.Dir)

	entries, err := os.ReadDir(res.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 9, "pages saved before the prompt stay on disk")
}

func TestDownloadChapter_NoPrompterFails(t *testing.T) {
	srv := newImageServer(t, forbiddenUnlessNewCookie)
	d := newDownloader(t, srv.Client(), t.TempDir(), nil)

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "T",
		Label:     "1",
		ImageURLs: srv.urls(6),
		Archive:   false,
	})

	assert.Equal(t, downloader.Failed, res.Outcome)
}

type cancellingFetcher struct {
	calls  atomic.Int32
	after  int32
	cancel context.CancelFunc
	img    []byte
}

func (f *cancellingFetcher) Fetch(ctx context.Context, _ string, _ http.Header) ([]byte, error) {
	if f.calls.Add(1) == f.after {
		f.cancel()
		return nil, failure.Cancelled(context.Canceled)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure.Cancelled(err)
	}
	return f.img, nil
}

func TestDownloadChapter_CancelledMidPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &cancellingFetcher{after: 3, cancel: cancel, img: noisePNG(t, 2)}
	root := t.TempDir()
	d := downloader.New(f, downloader.Options{Root: root, Workers: 1})

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = "https://cdn.x/" + string(rune('a'+i)) + ".jpg"
	}

	res := d.DownloadChapter(ctx, downloader.Request{
		Title:     "T",
		Label:     "Chapitre 9",
		ImageURLs: urls,
		Archive:   true,
	})

	assert.Equal(t, downloader.Cancelled, res.Outcome)
	assert.Empty(t, res.ArchivePath)
	assert.EqualValues(t, 3, f.calls.Load())

	entries, err := os.ReadDir(res.Dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"01.jpg", "02.jpg"}, names)

	matches, _ := filepath.Glob(filepath.Join(root, "T", "*.cbz"))
	assert.Empty(t, matches)
}

func TestDownloadChapter_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &cancellingFetcher{}
	root := t.TempDir()
	d := downloader.New(f, downloader.Options{Root: root})

	res := d.DownloadChapter(ctx, downloader.Request{Title: "T", Label: "1", ImageURLs: []string{"https://x/1.jpg"}})

	assert.Equal(t, downloader.Cancelled, res.Outcome)
	assert.Zero(t, f.calls.Load())
	assert.NoDirExists(t, res.Dir)
}

func TestDownloadChapter_AllMissingFails(t *testing.T) {
	srv := newImageServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		w.WriteHeader(http.StatusGone)
		return true
	})
	d := newDownloader(t, srv.Client(), t.TempDir(), nil)

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "T",
		Label:     "1",
		ImageURLs: srv.urls(3),
		Archive:   true,
	})

	assert.Equal(t, downloader.Failed, res.Outcome)
	assert.Len(t, res.Failures, 3)
}

func TestDownloadChapter_WithoutArchiveKeepsImages(t *testing.T) {
	srv := newImageServer(t, nil)
	var archived bool

	f := fetch.New(srv.Client(), fetch.WithSleep(noSleep))
	d := downloader.New(f, downloader.Options{
		Root: t.TempDir(),
		Archiver: func(string, string, string) (string, error) {
			archived = true
			return "", errors.New("unexpected")
		},
	})

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "T",
		Label:     "Chapitre 1",
		ImageURLs: srv.urls(2),
	})

	assert.Equal(t, downloader.Success, res.Outcome)
	assert.False(t, archived)
	assert.FileExists(t, filepath.Join(res.Dir, "1.png"))
	assert.FileExists(t, filepath.Join(res.Dir, "2.png"))
}

func TestDownloadChapter_ArchiveFailureFails(t *testing.T) {
	srv := newImageServer(t, nil)

	f := fetch.New(srv.Client(), fetch.WithSleep(noSleep))
	d := downloader.New(f, downloader.Options{
		Root: t.TempDir(),
		Archiver: func(string, string, string) (string, error) {
			return "", errors.New("disk full")
		},
	})

	res := d.DownloadChapter(context.Background(), downloader.Request{
		Title:     "T",
		Label:     "Chapitre 1",
		ImageURLs: srv.urls(1),
		Archive:   true,
	})

	assert.Equal(t, downloader.Failed, res.Outcome)
	assert.DirExists(t, res.Dir)
}

type stubSource struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]int // failures left per chapter URL
	images []string
	cookie string
}

func (s *stubSource) GetImages(_ context.Context, chapterURL string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[chapterURL]++
	if s.fail[chapterURL] > 0 {
		s.fail[chapterURL]--
		return nil, errors.New("HTTP 503")
	}
	return s.images, nil
}

func (s *stubSource) SetCookie(c string) {
	s.mu.Lock()
	s.cookie = c
	s.mu.Unlock()
}

func TestDownloadAll_SkipsArchivedAndRetriesFailed(t *testing.T) {
	srv := newImageServer(t, nil)
	root := t.TempDir()

	all := chapters.Wrap([]providers.Chapter{
		{Label: "Chapitre 1", URL: "https://sushiscan.fr/t-1/"},
		{Label: "Chapitre 2", URL: "https://sushiscan.fr/t-2/"},
		{Label: "Chapitre 3", URL: "https://sushiscan.fr/t-3/"},
	})

	existing := all[0].OutputCBZPath(root, "T")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, bytes.Repeat([]byte{1}, 20000), 0o644))

	src := &stubSource{
		calls:  map[string]int{},
		fail:   map[string]int{all[1].URL: 1},
		images: srv.urls(4),
	}

	f := fetch.New(srv.Client(), fetch.WithSleep(noSleep))
	d := downloader.New(f, downloader.Options{Root: root})

	var sinks []string
	rep := d.DownloadAll(context.Background(), downloader.Batch{
		Title:    "T",
		Chapters: all,
		Source:   src,
		Cookie:   "tok",
		Archive:  true,
		Progress: func(ch chapters.Chapter, total int) downloader.ProgressFunc {
			sinks = append(sinks, ch.Label)
			return nil
		},
	})

	assert.False(t, rep.Cancelled)
	assert.Equal(t, []string{"Chapitre 1"}, rep.Skipped)
	sort.Strings(rep.Succeeded)
	assert.Equal(t, []string{"Chapitre 2", "Chapitre 3"}, rep.Succeeded)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, 8, rep.Images)
	assert.Equal(t, "tok", rep.Cookie)
	assert.Equal(t, "tok", src.cookie)

	assert.Zero(t, src.calls[all[0].URL])
	assert.Equal(t, 2, src.calls[all[1].URL])
	assert.Equal(t, []string{"Chapitre 3", "Chapitre 2"}, sinks)
	assert.FileExists(t, all[2].OutputCBZPath(root, "T"))
}

func TestDownloadAll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &stubSource{calls: map[string]int{}}
	d := downloader.New(&cancellingFetcher{}, downloader.Options{Root: t.TempDir()})

	rep := d.DownloadAll(ctx, downloader.Batch{
		Title:    "T",
		Chapters: chapters.Wrap([]providers.Chapter{{Label: "1", URL: "u1"}}),
		Source:   src,
	})

	assert.True(t, rep.Cancelled)
	assert.Empty(t, src.calls)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", downloader.Success.String())
	assert.Equal(t, "failed", downloader.Failed.String())
	assert.Equal(t, "cancelled", downloader.Cancelled.String())
}
