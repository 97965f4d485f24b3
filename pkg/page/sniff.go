package page

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// sniffed describes an inbound payload.
type sniffed struct {
	contentType string
	width       int
	height      int
}

// sniff guesses the payload's content type and, for formats the image
// package can decode, its dimensions.
func sniff(payload []byte) sniffed {
	s := sniffed{contentType: http.DetectContentType(payload)}
	if !strings.HasPrefix(s.contentType, "image/") {
		return s
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return s
	}
	s.width, s.height = cfg.Width, cfg.Height
	s.contentType = "image/" + format
	return s
}
