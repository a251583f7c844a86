package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"
	"github.com/brogergvhs/sushidl/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectTransport sends every request to the test server while keeping
// the original URL visible to the handler through X-Original-URL.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Original-URL", req.URL.String())
	clone.URL.Scheme = rt.target.Scheme
	clone.URL.Host = rt.target.Host
	clone.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func newEvaluator(t *testing.T, h http.HandlerFunc) *session.Evaluator {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	target, err := url.Parse(ts.URL)
	require.NoError(t, err)

	return session.NewEvaluator(&http.Client{Transport: redirectTransport{target: target}}, nil)
}

func TestEvaluate_DecisionTable(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		cookie        string
		wantChallenge session.Challenge
		wantValid     bool
	}{
		{"rendered page with cookie", 200, `<h1 class="entry-title">X</h1>`, "tok", session.ChallengeAbsent, true},
		{"rendered page without cookie", 200, `<div id="readerarea"></div>`, " ", session.ChallengeAbsent, false},
		{"interstitial on 200", 200, `<title>Just a moment...</title>`, "tok", session.ChallengePresent, false},
		{"empty body", 200, ``, "tok", session.ChallengePresent, false},
		{"challenge marker but real content", 200, `attention required sushiscan`, "tok", session.ChallengeAbsent, true},
		{"interstitial on 404", 404, `<script src="/cdn-cgi/challenge-platform/x.js"></script>`, "tok", session.ChallengePresent, false},
		{"forbidden with content", 403, `sushiscan`, "tok", session.ChallengePresent, false},
		{"rate limited", 429, `sushiscan`, "tok", session.ChallengePresent, false},
		{"unavailable", 503, `sushiscan`, "tok", session.ChallengePresent, false},
		{"not found", 404, `sushiscan not found`, "tok", session.ChallengeUnknown, false},
		{"server error", 500, `sushiscan`, "tok", session.ChallengeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			st := e.Evaluate(context.Background(), sushiscan.DomainFR, tt.cookie, "UA/1", "")
			assert.Equal(t, tt.wantChallenge, st.Challenge)
			assert.Equal(t, tt.wantValid, st.CookieValid)
			assert.Equal(t, tt.status, st.HTTPStatus)
			assert.Equal(t, sushiscan.DomainFR, st.Domain)
			assert.Equal(t, tt.cookie, st.Cookie)
		})
	}
}

func TestEvaluate_RequestShape(t *testing.T) {
	var gotURL, gotCookie, gotUA string
	e := newEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.Header.Get("X-Original-URL")
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "sushiscan")
	})
	ctx := context.Background()

	e.Evaluate(ctx, sushiscan.DomainNET, "tok", "UA/1", "")
	assert.Equal(t, "https://sushiscan.net/", gotURL)
	assert.Equal(t, "cf_clearance=tok", gotCookie)
	assert.Equal(t, "UA/1", gotUA)

	e.Evaluate(ctx, sushiscan.DomainNET, "tok", "UA/1", "https://sushiscan.net/catalogue/x/")
	assert.Equal(t, "https://sushiscan.net/catalogue/x/", gotURL)

	e.Evaluate(ctx, sushiscan.DomainNET, "tok", "UA/1", "https://sushiscan.fr/catalogue/x/")
	assert.Equal(t, "https://sushiscan.net/", gotURL)
}

func TestEvaluate_UnknownDomainAndNetworkError(t *testing.T) {
	calls := 0
	e := newEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	st := e.Evaluate(context.Background(), sushiscan.Domain("com"), "tok", "UA", "")
	assert.Equal(t, session.ChallengeUnknown, st.Challenge)
	assert.False(t, st.CookieValid)
	assert.Zero(t, calls)

	broken := session.NewEvaluator(&http.Client{Transport: failingTransport{}}, nil)
	st = broken.Evaluate(context.Background(), sushiscan.DomainFR, "tok", "UA", "")
	assert.Equal(t, session.State{Domain: sushiscan.DomainFR, Cookie: "tok", Challenge: session.ChallengeUnknown}, st)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("dial tcp: connection refused")
}

func TestPoller_WaitsBetweenProbes(t *testing.T) {
	calls := 0
	e := newEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "sushiscan")
	})

	p := session.NewPoller(e, time.Hour)

	st, err := p.Evaluate(context.Background(), sushiscan.DomainFR, "tok", "UA", "")
	require.NoError(t, err)
	assert.Equal(t, session.ChallengeAbsent, st.Challenge)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Evaluate(ctx, sushiscan.DomainFR, "tok", "UA", "")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
