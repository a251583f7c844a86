// Package session probes a site domain with the caller's cookie and decides
// whether the anti-bot challenge is in the way.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"
	"github.com/brogergvhs/sushidl/internal/util"
)

type Challenge string

const (
	ChallengePresent Challenge = "present"
	ChallengeAbsent  Challenge = "absent"
	ChallengeUnknown Challenge = "unknown"
)

const probeTimeout = 10 * time.Second

// State is the outcome of one probe. It is a snapshot, not a cache.
type State struct {
	Domain      sushiscan.Domain
	Cookie      string
	Challenge   Challenge
	CookieValid bool
	HTTPStatus  int // 0 when no response was received
}

func defaultState(d sushiscan.Domain, cookie string) State {
	return State{
		Domain:    d,
		Cookie:    cookie,
		Challenge: ChallengeUnknown,
	}
}

type Evaluator struct {
	client *http.Client
	log    *slog.Logger
}

func NewEvaluator(c *http.Client, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{client: c, log: logger}
}

// Evaluate issues a single GET to probeURL (or the domain root) and classifies
// the response. It never returns an error: anything that prevents a verdict
// yields the unknown state.
func (e *Evaluator) Evaluate(ctx context.Context, d sushiscan.Domain, cookie, userAgent, probeURL string) State {
	state := defaultState(d, cookie)
	if !d.Valid() {
		return state
	}

	target := probeTarget(d, probeURL)

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return state
	}
	req.Header = sushiscan.PageHeaders(d, cookie, userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Debug("session probe failed", "domain", d, "url", target, "error", err)
		return state
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := util.ReadBody(resp)
	if err != nil {
		e.log.Debug("session probe body unreadable", "domain", d, "url", target, "error", err)
		return state
	}

	state.HTTPStatus = resp.StatusCode
	state.Challenge, state.CookieValid = decide(resp.StatusCode, strings.ToLower(string(body)), cookie)

	e.log.Debug("session probe",
		"domain", d,
		"status", resp.StatusCode,
		"challenge", state.Challenge,
		"cookie_valid", state.CookieValid)

	return state
}

func decide(status int, lowerBody, cookie string) (Challenge, bool) {
	blocking := isChallengePage(lowerBody) && !hasContent(lowerBody)

	switch {
	case status == http.StatusOK && !blocking:
		return ChallengeAbsent, strings.TrimSpace(cookie) != ""
	case blocking:
		return ChallengePresent, false
	case status == 401 || status == 403 || status == 429 || status == 503:
		return ChallengePresent, false
	}
	return ChallengeUnknown, false
}

// probeTarget keeps probeURL only when it points at the domain being judged.
func probeTarget(d sushiscan.Domain, probeURL string) string {
	probeURL = strings.TrimSpace(probeURL)
	if probeURL == "" {
		return d.Root()
	}

	u, err := url.Parse(probeURL)
	if err != nil || !strings.Contains(strings.ToLower(u.Host), d.Host()) {
		return d.Root()
	}
	return probeURL
}

func isChallengePage(lowerBody string) bool {
	if strings.TrimSpace(lowerBody) == "" {
		return true
	}
	for _, m := range sushiscan.ChallengeMarkers {
		if strings.Contains(lowerBody, m) {
			return true
		}
	}
	return false
}

func hasContent(lowerBody string) bool {
	for _, m := range sushiscan.ContentMarkers {
		if strings.Contains(lowerBody, m) {
			return true
		}
	}
	return false
}
