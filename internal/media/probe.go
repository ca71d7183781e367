package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrOpenInput is returned when the input cannot be opened or ffprobe
	// cannot read its stream information.
	ErrOpenInput = errors.New("failed to open input file")

	// ErrNoVideoStream is returned when the input has no video stream with
	// a known codec.
	ErrNoVideoStream = errors.New("failed to find a decodable video stream in input file")
)

// StreamInfo describes the video stream selected for analysis.
type StreamInfo struct {
	// Index is the stream index inside the container.
	Index int

	Codec    string
	Width    int
	Height   int
	TimeBase Rational

	// FrameRate is r_frame_rate; zero when ffprobe does not report one.
	FrameRate float64

	// Duration is the container duration; zero when unknown.
	Duration time.Duration

	// FormatName is the container format (e.g. "mov,mp4,m4a,3gp,3g2,mj2").
	FormatName string

	// Streams lists every stream of the container, for diagnostics.
	Streams []StreamSummary
}

// StreamSummary is the per-stream information logged while probing.
type StreamSummary struct {
	Index      int
	CodecType  string
	Codec      string
	TimeBase   string
	FrameRate  string
	StartTime  string
	Duration   string
	Channels   int
	SampleRate string
}

// CheckFFprobeAvailable reports whether ffprobe is in PATH.
func CheckFFprobeAvailable() error {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return fmt.Errorf("ffprobe not found in PATH: install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)")
	}
	log.Debug().Str("path", path).Msg("ffprobe found")
	return nil
}

// ffprobeOutput represents the JSON structure from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

type ffprobeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TimeBase   string `json:"time_base"`
	RFrameRate string `json:"r_frame_rate"`
	StartTime  string `json:"start_time"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Probe opens path with ffprobe and selects the first video stream that has
// a known codec.
func Probe(ctx context.Context, path string) (*StreamInfo, error) {
	log.Info().Str("path", path).Msg("Opening input file")

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenInput, err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrOpenInput, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%w: ffprobe failed: %w", ErrOpenInput, err)
	}

	return parseProbe(output)
}

// parseProbe turns ffprobe JSON into StreamInfo.
func parseProbe(data []byte) (*StreamInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %w", ErrOpenInput, err)
	}

	log.Info().
		Str("format", probe.Format.FormatName).
		Str("duration", probe.Format.Duration).
		Str("bit_rate", probe.Format.BitRate).
		Int("streams", len(probe.Streams)).
		Msg("Input opened")

	var info *StreamInfo
	summaries := make([]StreamSummary, 0, len(probe.Streams))
	for _, stream := range probe.Streams {
		summary := StreamSummary{
			Index:      stream.Index,
			CodecType:  stream.CodecType,
			Codec:      stream.CodecName,
			TimeBase:   stream.TimeBase,
			FrameRate:  stream.RFrameRate,
			StartTime:  stream.StartTime,
			Duration:   stream.Duration,
			Channels:   stream.Channels,
			SampleRate: stream.SampleRate,
		}
		summaries = append(summaries, summary)
		logStream(summary)

		if stream.CodecName == "" {
			log.Warn().Int("stream", stream.Index).Msg("No codec found for stream")
			continue
		}

		// Only the first video stream is analyzed.
		if info != nil || stream.CodecType != "video" {
			continue
		}

		timeBase, err := ParseRational(stream.TimeBase)
		if err != nil || timeBase.Den == 0 {
			log.Warn().Int("stream", stream.Index).Str("time_base", stream.TimeBase).Msg("Video stream has no usable time base")
			continue
		}

		info = &StreamInfo{
			Index:      stream.Index,
			Codec:      stream.CodecName,
			Width:      stream.Width,
			Height:     stream.Height,
			TimeBase:   timeBase,
			FrameRate:  parseFrameRate(stream.RFrameRate),
			FormatName: probe.Format.FormatName,
		}
		if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = time.Duration(dur * float64(time.Second))
		}

		log.Info().
			Int("stream", stream.Index).
			Int("width", stream.Width).
			Int("height", stream.Height).
			Str("codec", stream.CodecName).
			Msg("Selected video stream")
	}

	if info == nil {
		return nil, ErrNoVideoStream
	}
	info.Streams = summaries
	return info, nil
}

func logStream(s StreamSummary) {
	evt := log.Debug().
		Int("stream", s.Index).
		Str("type", s.CodecType).
		Str("codec", s.Codec).
		Str("time_base", s.TimeBase).
		Str("r_frame_rate", s.FrameRate).
		Str("start_time", s.StartTime).
		Str("duration", s.Duration)
	if s.CodecType == "audio" {
		evt = evt.Int("channels", s.Channels).Str("sample_rate", s.SampleRate)
	}
	evt.Msg("Stream")
}

// parseFrameRate parses frame rate from ffprobe format (e.g., "60/1" -> 60.0)
func parseFrameRate(value string) float64 {
	r, err := ParseRational(value)
	if err != nil {
		return 0
	}
	return r.Float()
}
