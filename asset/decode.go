package asset

import (
	"fmt"
	"image"
	"io"

	// Decoders registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/image/draw"
)

// Decode reads an image file in any registered format and returns it
// as a raw texture. Images larger than maxSize on either side are
// scaled down to fit, keeping their aspect ratio; zero means no limit.
func Decode(r io.Reader, maxSize int) (*Texture, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("asset: decode: %w", err)
	}
	src := img.Bounds()
	w, h := fit(src.Dx(), src.Dy(), maxSize)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("asset: %s image: %w", format, ErrEmpty)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}
	return &Texture{Width: uint32(w), Height: uint32(h), Pixels: dst.Pix}, nil
}

func fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
