package runner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
	"github.com/jhoneycutt/analyze-keyframes/internal/media"
)

type fakeSource struct {
	frames []*media.Keyframe
	err    error
	closed bool
}

func (s *fakeSource) Next(ctx context.Context) (*media.Keyframe, error) {
	if len(s.frames) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func grayFrame(number, pts int64, w, h int, y uint8) *media.Keyframe {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = y
	}
	return &media.Keyframe{Number: number, PTS: pts, PixelFormat: "gray", Image: img}
}

func probeReturning(info *media.StreamInfo, err error) Prober {
	return func(context.Context, string) (*media.StreamInfo, error) {
		return info, err
	}
}

func openReturning(src *fakeSource) SourceOpener {
	return func(context.Context, string, *media.StreamInfo) (FrameSource, error) {
		return src, nil
	}
}

func stream90() *media.StreamInfo {
	return &media.StreamInfo{
		Index:    0,
		Codec:    "h264",
		Width:    96,
		Height:   90,
		TimeBase: media.Rational{Num: 1, Den: 1},
	}
}

func TestRun_WritesOrderedCSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame-analysis.csv")
	if err := os.WriteFile(out, []byte("stale row\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{frames: []*media.Keyframe{
		grayFrame(0, 0, 96, 90, 128),
		grayFrame(1, 1, 96, 90, 128),
	}}
	r := &Runner{Probe: probeReturning(stream90(), nil), Open: openReturning(src)}

	res, err := r.Run(context.Background(), Options{
		Input:   "clip.mp4",
		Output:  out,
		Grid:    analysis.DefaultGrid(),
		Workers: 2,
		RunID:   "test",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Emitted || res.Rows != 2 {
		t.Errorf("result: got %+v", res)
	}
	if !src.closed {
		t.Error("source was not closed")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	row := strings.Repeat(",128", 9)
	want := "0" + row + "\n1" + row + "\n"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}

func TestRun_NoVideoStreamLeavesOutputUntouched(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame-analysis.csv")
	if err := os.WriteFile(out, []byte("previous\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opened := false
	r := &Runner{
		Probe: probeReturning(nil, fmt.Errorf("%w: audio only", media.ErrNoVideoStream)),
		Open: func(context.Context, string, *media.StreamInfo) (FrameSource, error) {
			opened = true
			return &fakeSource{}, nil
		},
	}

	_, err := r.Run(context.Background(), Options{Input: "song.mp3", Output: out})
	if !errors.Is(err, media.ErrNoVideoStream) {
		t.Fatalf("got %v, want ErrNoVideoStream", err)
	}
	if opened {
		t.Error("decoder was opened")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous\n" {
		t.Errorf("output modified: %q", data)
	}
}

func TestRun_NoVideoStreamCreatesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame-analysis.csv")
	r := &Runner{Probe: probeReturning(nil, media.ErrNoVideoStream)}

	if _, err := r.Run(context.Background(), Options{Output: out}); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output exists: %v", err)
	}
}

func TestRun_VideoTooSmall(t *testing.T) {
	info := stream90()
	info.Width, info.Height = 2, 90
	r := &Runner{Probe: probeReturning(info, nil)}

	_, err := r.Run(context.Background(), Options{
		Output: filepath.Join(t.TempDir(), "out.csv"),
		Grid:   analysis.Grid{Rows: 3, Cols: 3},
	})
	if !errors.Is(err, ErrVideoTooSmall) {
		t.Errorf("got %v, want ErrVideoTooSmall", err)
	}
}

func TestRun_DecodeErrorSkipsEmission(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	src := &fakeSource{
		frames: []*media.Keyframe{grayFrame(0, 0, 96, 90, 1)},
		err:    fmt.Errorf("%w: truncated frame", media.ErrDecode),
	}
	r := &Runner{Probe: probeReturning(stream90(), nil), Open: openReturning(src)}

	_, err := r.Run(context.Background(), Options{Output: out, Workers: 1})
	if !errors.Is(err, media.ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output exists after a failed decode: %v", err)
	}
}

func TestRun_OutputOpenFailureIsNotFatal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out.csv")
	src := &fakeSource{frames: []*media.Keyframe{grayFrame(0, 0, 96, 90, 1)}}
	r := &Runner{Probe: probeReturning(stream90(), nil), Open: openReturning(src)}

	res, err := r.Run(context.Background(), Options{Output: out, Workers: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Emitted {
		t.Error("Emitted is true for an unwritable path")
	}
	if res.Stats.Analyzed != 1 {
		t.Errorf("analyzed: got %d, want 1", res.Stats.Analyzed)
	}
}

func TestRun_OpenError(t *testing.T) {
	errNoFFmpeg := errors.New("ffmpeg not found")
	r := &Runner{
		Probe: probeReturning(stream90(), nil),
		Open: func(context.Context, string, *media.StreamInfo) (FrameSource, error) {
			return nil, errNoFFmpeg
		},
	}
	if _, err := r.Run(context.Background(), Options{Output: filepath.Join(t.TempDir(), "o.csv")}); !errors.Is(err, errNoFFmpeg) {
		t.Errorf("got %v, want errNoFFmpeg", err)
	}
}
