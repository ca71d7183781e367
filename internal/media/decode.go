package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrDecode is returned when ffmpeg fails while decoding the stream.
var ErrDecode = errors.New("failed to decode video stream")

// stderrTailLines is how many ffmpeg diagnostic lines are kept for error
// messages.
const stderrTailLines = 20

// showinfoRegex matches the per-frame line of ffmpeg's showinfo filter, e.g.
// [Parsed_showinfo_0 @ 0x...] n:   0 pts:  512 pts_time:0.0333 ... fmt:yuv420p ...
var showinfoRegex = regexp.MustCompile(`\bn:\s*(\d+)\s+pts:\s*(\S+)\s+pts_time:\S+.*?\bfmt:(\w+)`)

// frameInfo is the metadata ffmpeg reports for one decoded frame.
type frameInfo struct {
	number int64
	pts    int64
	format string
}

// Decoder streams the keyframes of one video stream from an ffmpeg
// subprocess. Frames arrive as raw RGBA on stdout; their timestamps arrive
// on stderr through the showinfo filter, in the same order.
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	width, height int
	frameSize     int

	info       chan frameInfo
	quit       chan struct{}
	stderrDone chan struct{}
	stderrTail []string

	closeOnce sync.Once
	read      int64
}

// OpenKeyframeDecoder starts ffmpeg with keyframe-only decoding for the
// given stream. The caller must Close the decoder.
func OpenKeyframeDecoder(ctx context.Context, path string, stream *StreamInfo) (*Decoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: keyframe decoding requires ffmpeg: %w", err)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid stream dimensions %dx%d", ErrDecode, stream.Width, stream.Height)
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-nostats",
		"-loglevel", "info",
		"-skip_frame", "nokey", // Decode keyframes only
		"-noautorotate",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", stream.Index),
		"-vf", "showinfo",
		"-vsync", "passthrough",
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	log.Debug().Strs("args", args).Msg("Starting ffmpeg keyframe decoder")

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting ffmpeg: %w", err)
	}

	d := &Decoder{
		cmd:        cmd,
		stdout:     stdout,
		width:      stream.Width,
		height:     stream.Height,
		frameSize:  stream.Width * stream.Height * 4,
		info:       make(chan frameInfo, 64),
		quit:       make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
	go d.scanStderr(stderr)
	return d, nil
}

// scanStderr forwards showinfo frame metadata and keeps a tail of the
// remaining diagnostics.
func (d *Decoder) scanStderr(stderr io.Reader) {
	defer close(d.stderrDone)
	defer close(d.info)

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if fi, ok := parseShowinfo(line); ok {
			select {
			case d.info <- fi:
			case <-d.quit:
				return
			}
			continue
		}
		if strings.Contains(line, "Parsed_showinfo") {
			continue // Filter configuration lines
		}

		log.Debug().Str("ffmpeg", line).Msg("Decoder output")
		d.stderrTail = append(d.stderrTail, line)
		if len(d.stderrTail) > stderrTailLines {
			d.stderrTail = d.stderrTail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Error reading ffmpeg output")
	}
}

func parseShowinfo(line string) (frameInfo, bool) {
	m := showinfoRegex.FindStringSubmatch(line)
	if len(m) < 4 {
		return frameInfo{}, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return frameInfo{}, false
	}
	// NOPTS frames keep pts 0.
	pts, _ := strconv.ParseInt(m[2], 10, 64)
	return frameInfo{number: n, pts: pts, format: m[3]}, true
}

// Next returns the next keyframe, or io.EOF once ffmpeg has exited
// cleanly. Any other error is fatal for the run.
func (d *Decoder) Next(ctx context.Context) (*Keyframe, error) {
	buf := make([]byte, d.frameSize)
	if _, err := io.ReadFull(d.stdout, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, d.finish()
		}
		if waitErr := d.finish(); waitErr != io.EOF {
			return nil, waitErr
		}
		return nil, fmt.Errorf("%w: truncated frame after %d keyframes: %w", ErrDecode, d.read, err)
	}

	var fi frameInfo
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case info, ok := <-d.info:
		if !ok {
			return nil, fmt.Errorf("%w: no frame metadata for keyframe %d", ErrDecode, d.read)
		}
		fi = info
	}
	d.read++

	return &Keyframe{
		Number:      fi.number,
		PTS:         fi.pts,
		PixelFormat: fi.format,
		Image: &image.RGBA{
			Pix:    buf,
			Stride: d.width * 4,
			Rect:   image.Rect(0, 0, d.width, d.height),
		},
	}, nil
}

// finish waits for ffmpeg to exit and converts its status into io.EOF or a
// decode error.
func (d *Decoder) finish() error {
	d.stop()
	<-d.stderrDone
	if err := d.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %w\nOutput: %s", ErrDecode, err, strings.Join(d.stderrTail, "\n"))
	}
	log.Debug().Int64("keyframes", d.read).Msg("ffmpeg decoder finished")
	return io.EOF
}

func (d *Decoder) stop() {
	d.closeOnce.Do(func() { close(d.quit) })
}

// Close stops the decoder. It is safe to call after Next returned io.EOF.
func (d *Decoder) Close() error {
	d.stop()
	if d.cmd.ProcessState == nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
		_ = d.stdout.Close()
		<-d.stderrDone
		_ = d.cmd.Wait()
	}
	return nil
}
