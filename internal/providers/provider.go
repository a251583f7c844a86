package providers

import "context"

// Chapter is one entry of a catalog page, oldest first.
type Chapter struct {
	Label string
	URL   string
}

// Catalog is everything extracted from a series page.
type Catalog struct {
	Title    string
	CoverURL string
	Chapters []Chapter
}

type Scraper interface {
	GetChapters(ctx context.Context, url string) ([]Chapter, error)
	GetImages(ctx context.Context, chapterURL string) ([]string, error)
}
