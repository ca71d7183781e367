// Package pipeline runs decoded keyframes through a pool of analysis workers
// and collects the results in frame order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
	"github.com/jhoneycutt/analyze-keyframes/internal/media"
)

// MinWorkers is the pool size used when the CPU count is unknown.
const MinWorkers = 4

// DefaultWorkers returns one worker per schedulable CPU.
func DefaultWorkers() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return MinWorkers
}

// Source supplies decoded keyframes in decode order. Next returns io.EOF
// after the last frame.
type Source interface {
	Next(ctx context.Context) (*media.Keyframe, error)
}

// Converter turns a decoded keyframe into an 8-bit grayscale image.
type Converter func(*media.Keyframe) (*image.Gray, error)

// Config controls a pipeline run.
type Config struct {
	// Workers is the pool size. Values below 1 use DefaultWorkers.
	Workers int

	// QueueCapacity bounds the number of decoded frames waiting for a
	// worker. Values below 1 use DefaultQueueCapacity.
	QueueCapacity int

	Grid analysis.Grid

	// TimeBase converts keyframe PTS values to seconds.
	TimeBase media.Rational

	// DumpDir, when set, receives a frame-<n>.pgm file per keyframe.
	DumpDir string

	// Convert defaults to media.ToGrayscale.
	Convert Converter

	// OnAnalyzed is called from worker goroutines after each analysis
	// reaches the store.
	OnAnalyzed func(analysis.FrameAnalysis)
}

// Pipeline owns the pending queue, the result store and the run counters.
type Pipeline struct {
	cfg   Config
	queue *FrameQueue
	store *Store
	stats Stats
}

// New creates a pipeline. The grid must already be validated against the
// stream dimensions.
func New(cfg Config) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Grid.Size() == 0 {
		cfg.Grid = analysis.DefaultGrid()
	}
	if cfg.Convert == nil {
		cfg.Convert = media.ToGrayscale
	}

	p := &Pipeline{
		cfg:   cfg,
		queue: NewFrameQueue(cfg.QueueCapacity),
		store: NewStore(),
	}
	p.queue.onFull = func(length int) {
		log.Debug().Int("pending", length).Msg("Pending frame queue full, waiting")
	}
	return p
}

// Store returns the ordered results. It is complete once Run returns.
func (p *Pipeline) Store() *Store {
	return p.store
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Snapshot {
	return p.stats.Snapshot()
}

// Run reads every keyframe from src, analyzes them on the worker pool and
// returns once all queued frames have been processed. A source error or a
// cancelled context aborts the run; the store contents are then incomplete.
func (p *Pipeline) Run(ctx context.Context, src Source) error {
	log.Info().
		Int("workers", p.cfg.Workers).
		Int("queueCapacity", p.cfg.QueueCapacity).
		Int("rows", p.cfg.Grid.Rows).
		Int("cols", p.cfg.Grid.Cols).
		Msg("Starting keyframe analysis")

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}

	readErr := p.read(ctx, src)

	// Workers exit only when the queue is closed and empty.
	p.queue.Close()
	wg.Wait()
	p.stats.queueHigh.Store(int64(p.queue.HighWater()))

	// A cancelled context also kills ffmpeg; report the cancellation rather
	// than the resulting read error.
	if err := ctx.Err(); err != nil {
		return err
	}
	if readErr != nil {
		return readErr
	}

	s := p.stats.Snapshot()
	log.Info().
		Int64("read", s.Read).
		Int64("analyzed", s.Analyzed).
		Int64("dropped", s.Dropped).
		Int64("duplicates", s.Duplicates).
		Int64("queueHighMark", s.QueueHighMark).
		Msg("Processing complete")
	return nil
}

// read is the single producer. It stalls on the queue while it is full.
func (p *Pipeline) read(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read keyframe: %w", err)
		}
		if frame == nil {
			continue
		}

		p.stats.read.Add(1)
		if err := p.queue.Push(frame); err != nil {
			return err
		}
	}
}

func (p *Pipeline) work(ctx context.Context, id int) {
	for {
		frame, ok := p.queue.Pop()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			// Cancelled: keep draining so the reader never blocks on a
			// full queue, but skip the work.
			continue
		}
		p.process(id, frame)
	}
}

func (p *Pipeline) process(id int, frame *media.Keyframe) {
	ts := p.cfg.TimeBase.Seconds(frame.PTS)
	log.Debug().
		Int("worker", id).
		Int64("frame", frame.Number).
		Int64("pts", frame.PTS).
		Float64("timestamp", ts).
		Str("pixelFormat", frame.PixelFormat).
		Msg("Processing keyframe")

	gray, err := p.cfg.Convert(frame)
	if err != nil {
		p.stats.dropped.Add(1)
		log.Error().Err(err).Int64("frame", frame.Number).Msg("Could not convert keyframe to grayscale, dropping it")
		return
	}

	if p.cfg.DumpDir != "" {
		path := filepath.Join(p.cfg.DumpDir, media.KeyframeImageName(frame.Number))
		if err := media.WritePGM(path, gray); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to dump keyframe image")
		}
	}

	values, err := p.cfg.Grid.AnalyzeGray(gray)
	if err != nil {
		p.stats.dropped.Add(1)
		log.Error().Err(err).Int64("frame", frame.Number).Msg("Could not analyze keyframe, dropping it")
		return
	}

	result := analysis.FrameAnalysis{
		Timestamp:   ts,
		FrameNumber: frame.Number,
		Values:      values,
	}
	p.stats.analyzed.Add(1)
	if !p.store.Insert(result) {
		p.stats.duplicates.Add(1)
		log.Warn().Int64("frame", frame.Number).Msg("Duplicate keyframe number, keeping the first analysis")
		return
	}
	if p.cfg.OnAnalyzed != nil {
		p.cfg.OnAnalyzed(result)
	}
}
