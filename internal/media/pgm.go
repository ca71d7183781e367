package media

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

// KeyframeImageName returns the dump file name for a keyframe, e.g.
// frame-12.pgm. Convert dumps with: mogrify -format jpeg *.pgm
func KeyframeImageName(number int64) string {
	return fmt.Sprintf("frame-%d.pgm", number)
}

// WritePGM writes img as a binary PGM (P5) file, dropping row padding.
// See <https://en.wikipedia.org/wiki/Netpbm_format#PGM_example>.
func WritePGM(path string, img *image.Gray) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := EncodePGM(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodePGM writes the PGM header and pixel rows of img to w.
func EncodePGM(w io.Writer, img *image.Gray) error {
	b := img.Rect
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return fmt.Errorf("failed to write PGM header: %w", err)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		if _, err := bw.Write(img.Pix[start : start+b.Dx()]); err != nil {
			return fmt.Errorf("failed to write PGM row %d: %w", y, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write PGM: %w", err)
	}
	return nil
}
