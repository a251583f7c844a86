package sushiscan

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Domain is a variant of the site. The zero value is an unknown host.
type Domain string

const (
	DomainFR  Domain = "fr"
	DomainNET Domain = "net"
)

var Domains = []Domain{DomainFR, DomainNET}

var reCatalogURL = regexp.MustCompile(`^https://sushiscan\.(fr|net)/catalogue/[a-z0-9-]+/$`)

// ValidCatalogURL reports whether u is a series page of a known domain.
func ValidCatalogURL(u string) bool {
	return reCatalogURL.MatchString(strings.TrimSpace(u))
}

func ParseDomain(s string) (Domain, bool) {
	switch d := Domain(strings.ToLower(strings.TrimSpace(s))); d {
	case DomainFR, DomainNET:
		return d, true
	}
	return "", false
}

func DomainFromHost(host string) Domain {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	host = strings.TrimSuffix(host, ".")

	switch {
	case host == "sushiscan.fr" || strings.HasSuffix(host, ".sushiscan.fr"):
		return DomainFR
	case host == "sushiscan.net" || strings.HasSuffix(host, ".sushiscan.net"):
		return DomainNET
	}
	return ""
}

func DomainFromURL(raw string) Domain {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return DomainFromHost(u.Host)
}

func (d Domain) Valid() bool {
	return d == DomainFR || d == DomainNET
}

func (d Domain) Host() string {
	return "sushiscan." + string(d)
}

func (d Domain) Root() string {
	return "https://" + d.Host() + "/"
}

// CookieHeader turns a bare clearance token into a Cookie header value. Values
// that already look like "name=value" pairs are sent unchanged.
func CookieHeader(cookie string) string {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" || strings.Contains(cookie, "=") {
		return cookie
	}
	return "cf_clearance=" + cookie
}

func PageHeaders(d Domain, cookie, userAgent string) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "fr-FR,fr;q=0.9")
	h.Set("Accept-Encoding", "gzip, br")
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if d.Valid() {
		h.Set("Referer", d.Root())
	}
	if c := CookieHeader(cookie); c != "" {
		h.Set("Cookie", c)
	}
	return h
}

// ImageHeaders builds the header set for one page image; referer is the
// chapter page the image belongs to.
func ImageHeaders(imageURL, cookie, userAgent, referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "image/webp,image/jpeg,image/png,*/*;q=0.8")
	h.Set("Accept-Language", "fr-FR,fr;q=0.9")
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if referer == "" {
		if d := DomainFromURL(imageURL); d.Valid() {
			referer = d.Root()
		}
	}
	if referer != "" {
		h.Set("Referer", referer)
	}
	if c := CookieHeader(cookie); c != "" {
		h.Set("Cookie", c)
	}
	return h
}

var (
	// ContentMarkers only appear on a rendered site page.
	ContentMarkers = []string{"sushiscan", "entry-title", "wp-manga", "chapternum", "readerarea", "ts_reader.run"}

	// ChallengeMarkers identify the anti-bot interstitial.
	ChallengeMarkers = []string{
		"just a moment",
		"checking your browser",
		"cf-browser-verification",
		"__cf_chl",
		"challenge-platform",
		"attention required",
	}
)

var parasiteKeywords = []string{"ads", "sponsor", "banner", "footer", "cover", "logo", "pub"}

// filterParasites drops ad and theme images. Only the fr reader mixes them
// into chapter pages.
func (d Domain) filterParasites(urls []string) []string {
	if d != DomainFR {
		return urls
	}

	out := make([]string, 0, len(urls))
next:
	for _, u := range urls {
		low := strings.ToLower(u)
		if strings.Contains(low, "sushiscan.fr/wp-content/uploads/") {
			continue
		}
		for _, k := range parasiteKeywords {
			if strings.Contains(low, k) {
				continue next
			}
		}
		out = append(out, u)
	}
	return out
}
