package sushiscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brogergvhs/sushidl/internal/providers"
	"github.com/brogergvhs/sushidl/internal/util"
)

const pageTimeout = 10 * time.Second

// Scraper fetches series and chapter pages with the caller's session and
// hands them to the extractors.
type Scraper struct {
	client    *http.Client
	cookie    string
	userAgent string
	log       *slog.Logger
}

func NewScraper(c *http.Client, cookie, userAgent string, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scraper{
		client:    c,
		cookie:    cookie,
		userAgent: userAgent,
		log:       logger,
	}
}

// SetCookie replaces the session cookie used for later page requests.
func (s *Scraper) SetCookie(cookie string) {
	s.cookie = cookie
}

func (s *Scraper) fetchPage(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header = PageHeaders(expectedDomain(target), s.cookie, s.userAgent)

	resp, err := util.DoWithRetry(s.client, req, 2, time.Second)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("access denied or invalid URL (HTTP %d -> %s)", resp.StatusCode, resp.Request.URL)
		if resp.StatusCode == http.StatusForbidden {
			msg += " | check that the User-Agent matches the browser the cookie came from"
		}
		return "", errors.New(msg)
	}

	body, err := util.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", target, err)
	}

	return string(body), nil
}

func (s *Scraper) GetCatalog(ctx context.Context, catalogURL string) (providers.Catalog, error) {
	raw, err := s.fetchPage(ctx, catalogURL)
	if err != nil {
		return providers.Catalog{}, err
	}

	cat, err := ParseCatalog(catalogURL, raw)
	if err != nil {
		return cat, err
	}

	s.log.Debug("catalog parsed", "url", catalogURL, "title", cat.Title, "chapters", len(cat.Chapters))
	return cat, nil
}

func (s *Scraper) GetChapters(ctx context.Context, catalogURL string) ([]providers.Chapter, error) {
	cat, err := s.GetCatalog(ctx, catalogURL)
	if err != nil {
		return nil, err
	}
	return cat.Chapters, nil
}

// GetImages returns an empty list without error when the page loaded but no
// images were recognised.
func (s *Scraper) GetImages(ctx context.Context, chapterURL string) ([]string, error) {
	raw, err := s.fetchPage(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	images := ParseImages(chapterURL, raw)
	s.log.Debug("reader parsed", "url", chapterURL, "images", len(images))

	return images, nil
}
