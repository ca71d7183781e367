// Package runner drives one analysis run: probe the input, validate it
// against the grid, run the keyframe pipeline and write the CSV report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
	"github.com/jhoneycutt/analyze-keyframes/internal/logging"
	"github.com/jhoneycutt/analyze-keyframes/internal/media"
	"github.com/jhoneycutt/analyze-keyframes/internal/pipeline"
	"github.com/jhoneycutt/analyze-keyframes/internal/report"
)

// ErrVideoTooSmall is returned when the video has fewer pixels than the
// grid has cells in either direction.
var ErrVideoTooSmall = errors.New("video is too small to analyze")

// Options configures a run.
type Options struct {
	Input  string
	Output string

	Grid          analysis.Grid
	Workers       int
	QueueCapacity int

	// DumpDir enables grayscale frame dumps when non-empty.
	DumpDir string

	// RunID and Version are included in the run summary.
	RunID   string
	Version string

	// OnAnalyzed is passed through to the pipeline.
	OnAnalyzed func(analysis.FrameAnalysis)
}

// FrameSource is a pipeline source backed by a resource that must be
// released, such as an ffmpeg process.
type FrameSource interface {
	pipeline.Source
	Close() error
}

// Prober reads the stream information of an input file.
type Prober func(ctx context.Context, path string) (*media.StreamInfo, error)

// SourceOpener starts decoding the keyframes of the selected stream.
type SourceOpener func(ctx context.Context, path string, stream *media.StreamInfo) (FrameSource, error)

// Runner executes runs with the given collaborators.
type Runner struct {
	Probe Prober
	Open  SourceOpener
}

// New returns a Runner backed by ffprobe and ffmpeg.
func New() *Runner {
	return &Runner{
		Probe: media.Probe,
		Open: func(ctx context.Context, path string, stream *media.StreamInfo) (FrameSource, error) {
			d, err := media.OpenKeyframeDecoder(ctx, path, stream)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	}
}

// Result describes a completed run.
type Result struct {
	Stream   *media.StreamInfo
	Stats    pipeline.Snapshot
	Output   string
	Rows     int
	Emitted  bool
	Duration time.Duration
}

// Run analyzes opts.Input and writes the report to opts.Output.
//
// Probe, validation and decode failures are returned as errors and leave
// the output untouched or absent. A failure to write the report is logged
// and reported through Result.Emitted, not as an error.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	if opts.Output == "" {
		opts.Output = report.DefaultFilename
	}
	if opts.Grid.Size() == 0 {
		opts.Grid = analysis.DefaultGrid()
	}

	stream, err := r.Probe(ctx, opts.Input)
	if err != nil {
		return nil, err
	}

	if err := opts.Grid.Validate(stream.Width, stream.Height); err != nil {
		if errors.Is(err, analysis.ErrImageTooSmall) {
			return nil, fmt.Errorf("%w: %dx%d video, %dx%d grid", ErrVideoTooSmall, stream.Width, stream.Height, opts.Grid.Cols, opts.Grid.Rows)
		}
		return nil, err
	}

	if err := report.RemoveStale(opts.Output); err != nil {
		log.Warn().Err(err).Msg("Could not remove previous analysis output")
	}

	logSummary(opts, stream, time.Since(start))

	src, err := r.Open(ctx, opts.Input, stream)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	p := pipeline.New(pipeline.Config{
		Workers:       opts.Workers,
		QueueCapacity: opts.QueueCapacity,
		Grid:          opts.Grid,
		TimeBase:      stream.TimeBase,
		DumpDir:       opts.DumpDir,
		OnAnalyzed:    opts.OnAnalyzed,
	})
	if err := p.Run(ctx, src); err != nil {
		return nil, err
	}

	result := &Result{
		Stream: stream,
		Stats:  p.Stats(),
		Output: opts.Output,
	}

	rows, err := report.AppendCSV(opts.Output, p.Store().Ascend)
	result.Rows = rows
	if err != nil {
		log.Error().Err(err).Str("path", opts.Output).Msg("Failed to write analysis output")
	} else {
		result.Emitted = true
		log.Info().Str("path", opts.Output).Int("rows", rows).Msg("Wrote frame analysis")
	}

	result.Duration = time.Since(start)
	return result, nil
}

func logSummary(opts Options, stream *media.StreamInfo, setup time.Duration) {
	s := logging.NewRunSummary("analyze-keyframes").
		RunID(opts.RunID).
		Version(opts.Version).
		Input(opts.Input).
		Output(opts.Output).
		Stream(stream.Index, stream.Codec, stream.Width, stream.Height).
		Config("timeBase", stream.TimeBase.String()).
		Config("grid", fmt.Sprintf("%dx%d", opts.Grid.Rows, opts.Grid.Cols)).
		Feature("dumpFrames", opts.DumpDir != "").
		Feature("compressed", report.IsCompressed(opts.Output)).
		SetupDuration(setup)
	if opts.Workers > 0 {
		s.Config("workers", fmt.Sprint(opts.Workers))
	}
	if opts.QueueCapacity > 0 {
		s.Config("queueCapacity", fmt.Sprint(opts.QueueCapacity))
	}
	if opts.DumpDir != "" {
		s.Config("dumpDir", opts.DumpDir)
	}
	s.Log()
}
