package util

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/andybalholm/brotli"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

type HTTPClientOptions struct {
	Timeout time.Duration
	// Impersonate swaps the TLS profile for a browser-like one so the
	// anti-bot layer does not reject the handshake fingerprint.
	Impersonate bool
	UserAgent   string
	Transport   http.RoundTripper
	Logger      *slog.Logger
}

func NewHTTPClient(opts HTTPClientOptions) *http.Client {
	var base http.RoundTripper
	if opts.Transport != nil {
		base = opts.Transport
	} else {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxConnsPerHost:     16,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	if opts.Impersonate {
		base = cloudflarebp.AddCloudFlareByPass(base)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("HTTP client initialized",
		"timeout", opts.Timeout,
		"impersonate", opts.Impersonate,
		"ua", opts.UserAgent)

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: roundTripper{
			base: base,
			ua:   opts.UserAgent,
			log:  logger,
		},
	}
}

type roundTripper struct {
	base http.RoundTripper
	ua   string
	log  *slog.Logger
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.ua != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", rt.ua)
	}

	rt.log.Debug("HTTP request", "method", req.Method, "url", req.URL.String())

	return rt.base.RoundTrip(req)
}

// ReadBody reads the whole response body, undoing br and gzip content
// encodings the transport left in place.
func ReadBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		r = gz
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ReadCookieFile returns the first non-empty line of path.
func ReadCookieFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}

	return "", sc.Err()
}

// DoWithRetry executes req, retrying transport errors and 5xx responses with
// a linear backoff. The wait is cut short when the request context ends.
func DoWithRetry(c *http.Client, req *http.Request, attempts int, backoff time.Duration) (*http.Response, error) {
	var resp *http.Response
	var err error

	for i := 1; i <= attempts; i++ {
		resp, err = c.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if i == attempts {
			break
		}

		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff * time.Duration(i)):
		}
	}

	if err == nil && resp != nil {
		return resp, nil
	}

	return nil, err
}

func PickUserAgent(override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}

	return DefaultUserAgent
}
