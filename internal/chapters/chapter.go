package chapters

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/brogergvhs/sushidl/internal/providers"
)

type Chapter struct {
	providers.Chapter
}

func Wrap(list []providers.Chapter) []Chapter {
	out := make([]Chapter, len(list))
	for i, c := range list {
		out[i] = Chapter{Chapter: c}
	}
	return out
}

var (
	reForbidden = regexp.MustCompile(`[<>:"/\\|?*\n\r]`)
	reVolume    = regexp.MustCompile(`(?i)\bvolume\b`)
	reTags      = regexp.MustCompile(`<[^>]*>`)
)

// Sanitize makes s usable as a single path element on every platform. Empty
// and dot-only results become "_" so they never name the parent directory.
func Sanitize(s string) string {
	s = strings.TrimSpace(reForbidden.ReplaceAllString(s, "_"))
	if strings.Trim(s, ".") == "" {
		return "_"
	}
	return s
}

// NormalizeLabel strips markup from a chapter label and names volumes
// "Tome" the way the site's French listings do.
func NormalizeLabel(label string) string {
	label = reTags.ReplaceAllString(html.UnescapeString(label), "")
	label = reVolume.ReplaceAllString(strings.TrimSpace(label), "Tome")
	return strings.TrimSpace(label)
}

func (c Chapter) FolderName() string {
	return Sanitize(NormalizeLabel(c.Label))
}

// Dir is where the pages of c are written: <root>/<title>/<label>.
func (c Chapter) Dir(root, title string) string {
	return filepath.Join(root, Sanitize(title), c.FolderName())
}

func ArchiveName(title, label string) string {
	return Sanitize(title) + " - " + Sanitize(NormalizeLabel(label)) + ".cbz"
}

// OutputCBZPath is <root>/<title>/<title> - <label>.cbz.
func (c Chapter) OutputCBZPath(root, title string) string {
	return filepath.Join(root, Sanitize(title), ArchiveName(title, c.Label))
}
