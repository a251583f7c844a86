package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var errEmptyBody = errors.New("empty body")

// validateImage checks that raw starts with a decodable image header. AVIF
// has no registered decoder, so it is accepted on its ISO-BMFF brand alone.
func validateImage(raw []byte) error {
	if len(raw) == 0 {
		return errEmptyBody
	}
	if isAVIF(raw) {
		return nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("invalid image: %w", err)
	}
	return nil
}

func isAVIF(raw []byte) bool {
	if len(raw) < 12 || !bytes.Equal(raw[4:8], []byte("ftyp")) {
		return false
	}
	brand := string(raw[8:12])
	return brand == "avif" || brand == "avis"
}
