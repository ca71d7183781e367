// Package analysis reduces a grayscale frame to a fixed grid of median
// luminance values.
//
// The grid is computed with a remainder-carrying division so that every
// pixel of the frame belongs to exactly one cell, for any width and height
// that are at least as large as the grid itself.
package analysis

import (
	"errors"
	"fmt"
	"image"
)

// Grid dimensions used when none are configured.
const (
	// DefaultRows is the number of horizontal bands (VerticalCellCount).
	DefaultRows = 3

	// DefaultCols is the number of vertical slices per band (HorizontalCellCount).
	DefaultCols = 3
)

var (
	// ErrImageTooSmall is returned when the frame has fewer pixel rows or
	// columns than the grid has cells in that direction.
	ErrImageTooSmall = errors.New("image is smaller than the analysis grid")

	// ErrInvalidBuffer is returned when the pixel buffer cannot hold the
	// declared width, height and stride.
	ErrInvalidBuffer = errors.New("invalid grayscale buffer")
)

// Grid describes how a frame is partitioned: Rows bands, each split into
// Cols slices.
type Grid struct {
	Rows int
	Cols int
}

// DefaultGrid returns the 3x3 grid.
func DefaultGrid() Grid {
	return Grid{Rows: DefaultRows, Cols: DefaultCols}
}

// Size returns the number of cells, which is also the length of every
// analysis vector produced with this grid.
func (g Grid) Size() int {
	return g.Rows * g.Cols
}

// Validate reports whether the grid can be applied to a width x height frame.
func (g Grid) Validate(width, height int) error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("grid %dx%d must have at least one row and column", g.Rows, g.Cols)
	}
	if width < g.Cols || height < g.Rows {
		return fmt.Errorf("%w: %dx%d frame, %dx%d grid", ErrImageTooSmall, width, height, g.Cols, g.Rows)
	}
	return nil
}

// Cells returns the grid's cell rectangles for a width x height frame in
// row-major order (band index * Cols + slice index).
//
// Each band is remainingHeight / remainingBands pixels high and each slice
// is remainingWidth / remainingSlices pixels wide, so earlier cells take the
// floor and the last cells absorb the remainder.
func (g Grid) Cells(width, height int) ([]image.Rectangle, error) {
	if err := g.Validate(width, height); err != nil {
		return nil, err
	}

	cells := make([]image.Rectangle, 0, g.Size())
	remainingHeight := height
	for y := 0; y < g.Rows; y++ {
		yOffset := height - remainingHeight
		yPixels := remainingHeight / (g.Rows - y)
		remainingHeight -= yPixels

		remainingWidth := width
		for x := 0; x < g.Cols; x++ {
			xOffset := width - remainingWidth
			xPixels := remainingWidth / (g.Cols - x)
			remainingWidth -= xPixels

			cells = append(cells, image.Rect(xOffset, yOffset, xOffset+xPixels, yOffset+yPixels))
		}
	}
	return cells, nil
}

// Analyze computes the median of every grid cell of a grayscale buffer.
// Only the first width bytes of each stride-long row are pixel data.
func (g Grid) Analyze(pix []byte, stride, width, height int) ([]float32, error) {
	if stride < width {
		return nil, fmt.Errorf("%w: stride %d is less than width %d", ErrInvalidBuffer, stride, width)
	}
	cells, err := g.Cells(width, height)
	if err != nil {
		return nil, err
	}
	if need := stride*(height-1) + width; len(pix) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrInvalidBuffer, len(pix), need)
	}

	values := make([]float32, len(cells))
	// Reused across cells; the last cell is the largest.
	last := cells[len(cells)-1]
	scratch := make([]byte, 0, last.Dx()*last.Dy())
	for i, cell := range cells {
		scratch = copyCell(scratch[:0], pix, stride, cell)
		values[i] = Median(scratch)
	}
	return values, nil
}

// AnalyzeGray is Analyze for an *image.Gray, honouring a non-zero Rect.Min.
func (g Grid) AnalyzeGray(img *image.Gray) ([]float32, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidBuffer)
	}
	b := img.Rect
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrImageTooSmall)
	}
	return g.Analyze(img.Pix[img.PixOffset(b.Min.X, b.Min.Y):], img.Stride, b.Dx(), b.Dy())
}

// copyCell appends the cell's pixels row by row to dst, skipping row padding.
func copyCell(dst, pix []byte, stride int, cell image.Rectangle) []byte {
	for y := cell.Min.Y; y < cell.Max.Y; y++ {
		start := y*stride + cell.Min.X
		dst = append(dst, pix[start:start+cell.Dx()]...)
	}
	return dst
}
