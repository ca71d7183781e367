// Package media adapts ffprobe and ffmpeg into the inputs the keyframe
// analysis pipeline consumes: stream information, decoded keyframes and
// grayscale images.
package media

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Keyframe is a decoded frame that can be rendered without reference to
// other frames. A Keyframe has a single owner at a time: the decoder hands
// it to the pending queue, which hands it to exactly one worker.
type Keyframe struct {
	// Number is the keyframe's position in decode order, starting at 0.
	Number int64

	// PTS is the presentation timestamp in stream time-base units.
	PTS int64

	// PixelFormat is the decoder's native pixel format (e.g. "yuv420p").
	PixelFormat string

	// Image holds the decoded pixels, including the row stride.
	Image image.Image
}

// Width returns the frame width in pixels.
func (k *Keyframe) Width() int {
	if k.Image == nil {
		return 0
	}
	return k.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (k *Keyframe) Height() int {
	if k.Image == nil {
		return 0
	}
	return k.Image.Bounds().Dy()
}

// Rational is a fraction such as a stream time base (1/90000) or a frame
// rate (30000/1001).
type Rational struct {
	Num int64
	Den int64
}

// ParseRational parses "num/den" or a plain integer.
func ParseRational(s string) (Rational, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if !found {
		return Rational{Num: n, Den: 1}, nil
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	return Rational{Num: n, Den: d}, nil
}

// Float returns the fraction's value, or 0 for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Seconds converts a timestamp in r units to seconds.
func (r Rational) Seconds(ts int64) float64 {
	return float64(ts) * r.Float()
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
