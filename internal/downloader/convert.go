package downloader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 90

// convertToJPEG re-encodes src as a JPEG next to it and removes src.
func convertToJPEG(src string) (string, error) {
	img, err := imaging.Open(src)
	if err != nil {
		return "", err
	}

	dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".jpg"
	if err := imaging.Save(img, dst, imaging.JPEGQuality(jpegQuality)); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	if err := os.Remove(src); err != nil {
		return dst, err
	}
	return dst, nil
}
