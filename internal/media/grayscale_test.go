package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"
)

func uniformRGBA(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestToGrayscale_UniformGray(t *testing.T) {
	frame := &Keyframe{Image: uniformRGBA(90, 90, color.RGBA{128, 128, 128, 255})}

	gray, err := ToGrayscale(frame)
	if err != nil {
		t.Fatalf("ToGrayscale: %v", err)
	}
	if gray.Rect != image.Rect(0, 0, 90, 90) {
		t.Errorf("bounds: got %v", gray.Rect)
	}
	if gray.Stride != 96 {
		t.Errorf("stride: got %d, want 96", gray.Stride)
	}
	for y := 0; y < 90; y++ {
		for x := 0; x < 90; x++ {
			if v := gray.GrayAt(x, y).Y; v != 128 {
				t.Fatalf("pixel (%d,%d): got %d, want 128", x, y, v)
			}
		}
	}
}

func TestToGrayscale_Luma(t *testing.T) {
	tests := []struct {
		name string
		c    color.RGBA
		want uint8
	}{
		{name: "black", c: color.RGBA{0, 0, 0, 255}, want: 0},
		{name: "white", c: color.RGBA{255, 255, 255, 255}, want: 255},
		{name: "green brighter than blue", c: color.RGBA{0, 255, 0, 255}, want: 150},
		{name: "blue", c: color.RGBA{0, 0, 255, 255}, want: 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gray, err := ToGrayscale(&Keyframe{Image: uniformRGBA(4, 4, tt.c)})
			if err != nil {
				t.Fatalf("ToGrayscale: %v", err)
			}
			if got := gray.GrayAt(1, 1).Y; got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToGrayscale_OffsetBounds(t *testing.T) {
	full := uniformRGBA(40, 40, color.RGBA{10, 10, 10, 255})
	draw.Draw(full, image.Rect(10, 10, 30, 30), image.NewUniform(color.RGBA{200, 200, 200, 255}), image.Point{}, draw.Src)
	sub := full.SubImage(image.Rect(10, 10, 30, 30))

	gray, err := ToGrayscale(&Keyframe{Image: sub})
	if err != nil {
		t.Fatalf("ToGrayscale: %v", err)
	}
	if gray.Rect != image.Rect(0, 0, 20, 20) {
		t.Fatalf("bounds: got %v", gray.Rect)
	}
	if got := gray.GrayAt(0, 0).Y; got != 200 {
		t.Errorf("got %d, want 200", got)
	}
}

func TestToGrayscale_AlignedGrayPassesThrough(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 64, 8))
	gray, err := ToGrayscale(&Keyframe{Image: src})
	if err != nil {
		t.Fatalf("ToGrayscale: %v", err)
	}
	if gray != src {
		t.Error("expected the aligned source image to be returned as is")
	}
}

func TestKeyframeDimensions(t *testing.T) {
	frame := &Keyframe{Image: image.NewRGBA(image.Rect(5, 5, 25, 15))}
	if frame.Width() != 20 || frame.Height() != 10 {
		t.Errorf("got %dx%d, want 20x10", frame.Width(), frame.Height())
	}
	empty := &Keyframe{}
	if empty.Width() != 0 || empty.Height() != 0 {
		t.Errorf("nil image: got %dx%d, want 0x0", empty.Width(), empty.Height())
	}
}

func TestToGrayscale_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame *Keyframe
	}{
		{name: "nil frame", frame: nil},
		{name: "nil image", frame: &Keyframe{}},
		{name: "empty image", frame: &Keyframe{Image: image.NewRGBA(image.Rectangle{})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToGrayscale(tt.frame); !errors.Is(err, ErrConvert) {
				t.Errorf("got %v, want ErrConvert", err)
			}
		})
	}
}

func TestEncodePGM_StripsPadding(t *testing.T) {
	img := &image.Gray{
		Pix: []byte{
			1, 2, 3, 0xEE, 0xEE,
			4, 5, 6, 0xEE, 0xEE,
		},
		Stride: 5,
		Rect:   image.Rect(0, 0, 3, 2),
	}

	var buf bytes.Buffer
	if err := EncodePGM(&buf, img); err != nil {
		t.Fatalf("EncodePGM: %v", err)
	}

	want := append([]byte("P5\n3 2\n255\n"), 1, 2, 3, 4, 5, 6)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %q, want %q", buf.Bytes(), want)
	}
}

func TestWritePGM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump", KeyframeImageName(7))

	img := image.NewGray(image.Rect(0, 0, 2, 2))
	if err := WritePGM(path, img); err != nil {
		t.Fatalf("WritePGM: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if filepath.Base(path) != "frame-7.pgm" {
		t.Errorf("name: got %s", filepath.Base(path))
	}
	if len(data) != len("P5\n2 2\n255\n")+4 {
		t.Errorf("size: got %d bytes", len(data))
	}
}
