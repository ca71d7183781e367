package media

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// GrayStrideAlignment is the row alignment of converted grayscale images.
// Rows are padded so every row starts on an aligned offset, the same layout
// ffmpeg uses for its own image buffers.
const GrayStrideAlignment = 32

// ErrConvert is returned when a frame cannot be converted to grayscale.
var ErrConvert = errors.New("failed to convert frame to grayscale")

// ToGrayscale converts a decoded keyframe to an 8-bit grayscale image with
// a GrayStrideAlignment-aligned stride. The result's bounds start at (0, 0).
func ToGrayscale(frame *Keyframe) (*image.Gray, error) {
	if frame == nil || frame.Image == nil {
		return nil, fmt.Errorf("%w: frame has no image", ErrConvert)
	}
	src := frame.Image
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: frame %d is empty", ErrConvert, frame.Number)
	}

	// Already grayscale with an aligned stride: nothing to do.
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride%GrayStrideAlignment == 0 {
		return g, nil
	}

	width, height := frame.Width(), frame.Height()
	stride := alignUp(width, GrayStrideAlignment)
	dst := &image.Gray{
		Pix:    make([]byte, stride*height),
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}
	draw.Draw(dst, dst.Rect, src, bounds.Min, draw.Src)
	return dst, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
