package sushiscan

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brogergvhs/sushidl/internal/chapters"
	"github.com/brogergvhs/sushidl/internal/providers"
)

// ErrNoChapters means the catalog page had no recognisable chapter list,
// usually because the layout changed or an interstitial was served.
var ErrNoChapters = errors.New("no chapters found")

const untitled = "Untitled"

var (
	reChapterAnchor = regexp.MustCompile(`(?is)<a href="([^"]+)">\s*<span class="chapternum">(.*?)</span>`)
	reTitleHeading  = regexp.MustCompile(`(?is)<h1 class="entry-title" itemprop="name">(.*?)</h1>`)
	reTags          = regexp.MustCompile(`<[^>]*>`)
)

// page is one fetched HTML document, parsed once and shared by strategies.
type page struct {
	raw    string
	doc    *goquery.Document
	url    string
	domain Domain
}

func newPage(pageURL, raw string) *page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		doc = nil
	}

	return &page{
		raw:    raw,
		doc:    doc,
		url:    pageURL,
		domain: expectedDomain(pageURL),
	}
}

func expectedDomain(pageURL string) Domain {
	if d := DomainFromURL(pageURL); d.Valid() {
		return d
	}
	if strings.Contains(strings.ToLower(pageURL), "sushiscan.net") {
		return DomainNET
	}
	return DomainFR
}

type chapterStrategy func(p *page) []providers.Chapter

var chapterStrategies = []chapterStrategy{
	chapterNumAnchors,
	listingAnchors,
}

// ParseCatalog extracts the title, cover and chapter list of a series page.
// Chapters come out oldest first, unique by URL, and all on the same domain
// as pageURL.
func ParseCatalog(pageURL, raw string) (providers.Catalog, error) {
	p := newPage(pageURL, raw)

	cat := providers.Catalog{
		Title:    parseTitle(p),
		CoverURL: parseCover(p),
	}

	for _, strategy := range chapterStrategies {
		found := dedupeReverse(strategy(p))
		if len(found) > 0 {
			cat.Chapters = found
			return cat, nil
		}
	}

	return cat, fmt.Errorf("%w on %s: page structure changed or access blocked", ErrNoChapters, pageURL)
}

func parseTitle(p *page) string {
	if p.doc != nil {
		if t := collapse(p.doc.Find("h1.entry-title").First().Text()); t != "" {
			return t
		}
	}

	if m := reTitleHeading.FindStringSubmatch(p.raw); m != nil {
		if t := collapse(html.UnescapeString(reTags.ReplaceAllString(m[1], ""))); t != "" {
			return t
		}
	}

	if u, err := url.Parse(p.url); err == nil {
		slug := path.Base(strings.TrimRight(u.Path, "/"))
		if slug != "" && slug != "." && slug != "/" {
			return strings.ReplaceAll(slug, "-", " ")
		}
	}

	return untitled
}

func parseCover(p *page) string {
	if p.doc == nil {
		return ""
	}

	var cover string
	p.doc.Find("div.thumb img[src], div.thumb-container img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if strings.HasPrefix(src, "http") {
			cover = src
			return false
		}
		return true
	})
	if cover != "" {
		return cover
	}

	return strings.TrimSpace(p.doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
}

func chapterNumAnchors(p *page) []providers.Chapter {
	var out []providers.Chapter
	for _, m := range reChapterAnchor.FindAllStringSubmatch(p.raw, -1) {
		if ch, ok := p.chapter(html.UnescapeString(m[1]), m[2]); ok {
			out = append(out, ch)
		}
	}
	return out
}

func listingAnchors(p *page) []providers.Chapter {
	if p.doc == nil {
		return nil
	}

	var out []providers.Chapter
	p.doc.Find("li.wp-manga-chapter a[href], .listing-chapters_wrap a[href]").Each(func(_ int, a *goquery.Selection) {
		if ch, ok := p.chapter(a.AttrOr("href", ""), collapse(a.Text())); ok {
			out = append(out, ch)
		}
	})
	return out
}

// chapter resolves href and rejects links that leave the page's domain.
func (p *page) chapter(href, label string) (providers.Chapter, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return providers.Chapter{}, false
	}

	base, _ := url.Parse(p.domain.Root())
	ref, err := url.Parse(href)
	if err != nil {
		return providers.Chapter{}, false
	}

	abs := base.ResolveReference(ref)
	if DomainFromHost(abs.Host) != p.domain {
		return providers.Chapter{}, false
	}

	label = chapters.NormalizeLabel(label)
	if strings.Trim(label, ". ") == "" {
		return providers.Chapter{}, false
	}

	return providers.Chapter{Label: label, URL: abs.String()}, true
}

func dedupeReverse(in []providers.Chapter) []providers.Chapter {
	seen := make(map[string]bool, len(in))
	out := make([]providers.Chapter, 0, len(in))
	for _, ch := range in {
		if seen[ch.URL] {
			continue
		}
		seen[ch.URL] = true
		out = append(out, ch)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
