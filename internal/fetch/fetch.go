// Package fetch retrieves single page images with retry, backoff and
// content validation. Every error it returns is a *failure.Error.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brogergvhs/sushidl/internal/failure"
	"github.com/brogergvhs/sushidl/internal/util"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 60 * time.Second
	DefaultTimeout     = 20 * time.Second

	htmlSniffLen = 1024
)

// SleepFunc waits for d or until ctx ends, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Fetcher struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration
	sleep       SleepFunc
	log         *slog.Logger
}

type Option func(*Fetcher)

func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.baseDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.maxDelay = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithSleep(s SleepFunc) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

func New(c *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      c,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		timeout:     DefaultTimeout,
		sleep:       Sleep,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Sleep is the default interruptible wait.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetch downloads url and returns the raw image bytes. A missing resource is
// reported after a single attempt; cancellation of ctx is observed before each
// attempt and during backoff, but never aborts a request already on the wire.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	var last *failure.Error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, failure.Cancelled(err)
		}

		raw, ferr := f.attempt(ctx, url, headers)
		if ferr == nil {
			err := validateImage(raw)
			if err == nil {
				return raw, nil
			}
			ferr = &failure.Error{Kind: failure.KindRetryable, Phase: "decode", Reason: err.Error(), Err: err}
		}

		last = ferr
		f.log.Warn("image attempt failed",
			"url", url,
			"attempt", attempt,
			"max", f.maxAttempts,
			"kind", ferr.Kind,
			"status", ferr.StatusCode,
			"reason", ferr.Reason)

		if ferr.Kind == failure.KindMissing {
			return nil, ferr
		}
		if attempt == f.maxAttempts {
			break
		}

		if err := f.sleep(ctx, f.backoff(attempt, ferr)); err != nil {
			return nil, failure.Cancelled(err)
		}
	}

	if last != nil {
		return nil, last
	}
	return nil, failure.New(failure.KindRetryable, "download failed")
}

// backoff is exponential for rate limiting and access denial, linear otherwise.
func (f *Fetcher) backoff(attempt int, ferr *failure.Error) time.Duration {
	if ferr.StatusCode == http.StatusForbidden || ferr.StatusCode == http.StatusTooManyRequests {
		d := f.baseDelay
		for i := 0; i < attempt && d < f.maxDelay; i++ {
			d *= 2
		}
		return min(d, f.maxDelay)
	}
	return f.baseDelay * time.Duration(attempt)
}

func (f *Fetcher) attempt(ctx context.Context, url string, headers http.Header) ([]byte, *failure.Error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &failure.Error{Kind: failure.KindRetryable, Phase: "direct", Reason: err.Error(), Err: err}
	}
	for k, v := range headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure.FromError(err, "direct")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return nil, failure.FromStatus(resp.StatusCode, "direct")
	}

	raw, err := util.ReadBody(resp)
	if err != nil {
		return nil, failure.FromError(fmt.Errorf("read body: %w", err), "direct")
	}

	if looksLikeHTML(raw) {
		return nil, &failure.Error{
			Kind:       failure.KindBlocked,
			StatusCode: resp.StatusCode,
			Phase:      "direct",
			Reason:     "HTML page received instead of an image",
		}
	}

	return raw, nil
}

func looksLikeHTML(raw []byte) bool {
	if bytes.HasPrefix(raw, []byte("<html>")) {
		return true
	}
	head := raw
	if len(head) > htmlSniffLen {
		head = head[:htmlSniffLen]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<html"))
}
