package sushiscan

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reReaderImage = regexp.MustCompile(`(?i)<img[^>]+(?:src|data-src)=["'](https://[^"'>]+\.(?:webp|jpg|jpeg|jpe|png|avif))["']`)

	readerExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".avif"}
)

const (
	readerRunStart = "ts_reader.run("
	readerRunEnd   = ");</script>"
)

type imageStrategy func(p *page) []string

var imageStrategies = []imageStrategy{
	readerPayloadImages,
	readerAreaImages,
	rawImageTags,
}

// ParseImages returns the ordered page images of a chapter. An empty result
// means none of the strategies recognised the page.
func ParseImages(chapterURL, raw string) []string {
	p := newPage(chapterURL, raw)

	for _, strategy := range imageStrategies {
		if found := p.domain.filterParasites(strategy(p)); len(found) > 0 {
			return found
		}
	}

	return []string{}
}

// NormalizeImageURL forces https and expands scheme-relative URLs.
func NormalizeImageURL(raw string) string {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "http://"):
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

type readerPayload struct {
	Sources []struct {
		Images []string `json:"images"`
	} `json:"sources"`
}

func readerPayloadImages(p *page) []string {
	_, rest, ok := strings.Cut(p.raw, readerRunStart)
	if !ok {
		return nil
	}
	body, _, ok := strings.Cut(rest, readerRunEnd)
	if !ok {
		return nil
	}

	var payload readerPayload
	if err := json.Unmarshal([]byte(html.UnescapeString(body)), &payload); err != nil {
		return nil
	}
	if len(payload.Sources) == 0 {
		return nil
	}

	var out []string
	for _, img := range payload.Sources[0].Images {
		if u := NormalizeImageURL(img); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func readerAreaImages(p *page) []string {
	if p.doc == nil {
		return nil
	}

	doc := p.doc
	if p.domain == DomainFR {
		doc = goquery.CloneDocument(doc)
		doc.Find("div.bixbox").Remove()
	}

	var out []string
	doc.Find("div#readerarea img").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("data-src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if !hasImageExtension(src) {
			return
		}
		if u := NormalizeImageURL(src); u != "" {
			out = append(out, u)
		}
	})
	return out
}

func rawImageTags(p *page) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range reReaderImage.FindAllStringSubmatch(p.raw, -1) {
		u := NormalizeImageURL(m[1])
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func hasImageExtension(u string) bool {
	low := strings.ToLower(u)
	for _, ext := range readerExtensions {
		if strings.HasSuffix(low, ext) {
			return true
		}
	}
	return false
}
