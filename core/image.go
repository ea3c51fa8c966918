package core

import (
	"bytes"
	"image"
	_ "image/png"

	nativewebp "github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
)

// WebPPreview decodes a PNG screenshot and re-encodes it as a WebP thumbnail of the given width.
// Images narrower than width are encoded at their original size.
func WebPPreview(input []byte, width int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	// NearestNeighbor, so that single-pixel differences stay visible.
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.NearestNeighbor)
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, &nativewebp.Options{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
