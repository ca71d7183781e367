package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
	"github.com/jhoneycutt/analyze-keyframes/internal/logging"
	"github.com/jhoneycutt/analyze-keyframes/internal/media"
	"github.com/jhoneycutt/analyze-keyframes/internal/metrics"
	"github.com/jhoneycutt/analyze-keyframes/internal/pipeline"
	"github.com/jhoneycutt/analyze-keyframes/internal/report"
	"github.com/jhoneycutt/analyze-keyframes/internal/runner"
	"github.com/jhoneycutt/analyze-keyframes/internal/s3util"
)

// CLI flags
var (
	outputFlag     string
	rowsFlag       int
	colsFlag       int
	workersFlag    int
	queueSizeFlag  int
	dumpFramesFlag bool
	dumpDirFlag    string
	s3URIFlag      string
	metricsFlag    bool
	progressFlag   bool
)

// rootCmd is the main Cobra command for the analyze-keyframes CLI.
var rootCmd = &cobra.Command{
	Use:   "analyze-keyframes [flags] <video file>",
	Short: "Summarize the keyframes of a video as a grid of median brightness values",
	Long: `Analyze Keyframes decodes only the keyframes of a video, converts each one to
grayscale and splits it into a grid of cells. For every keyframe it writes one
CSV row: the presentation time in seconds followed by the median luminance of
each cell in row-major order.

The input may be a local file or an s3:// URI. Output ending in .zst is
zstd-compressed. Requires ffmpeg and ffprobe in PATH.

Examples:
  analyze-keyframes movie.mp4
  analyze-keyframes -o movie.csv --rows 4 --cols 4 movie.mkv
  analyze-keyframes --dump-frames --dump-dir ./frames clip.mov
  analyze-keyframes -o out.csv.zst --s3-uri s3://bucket/reports/out.csv.zst s3://bucket/in.mp4
  KEYFRAMES_LOG_LEVEL=debug analyze-keyframes --progress movie.mp4`,
	Args:    cobra.ExactArgs(1),
	Version: version(),
	Run:     runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", report.DefaultFilename, "CSV output path (a .zst suffix compresses the output)")
	rootCmd.Flags().IntVar(&rowsFlag, "rows", analysis.DefaultRows, "Number of horizontal bands in the analysis grid")
	rootCmd.Flags().IntVar(&colsFlag, "cols", analysis.DefaultCols, "Number of cells per band in the analysis grid")
	rootCmd.Flags().IntVar(&workersFlag, "workers", pipeline.DefaultWorkers(), "Number of analysis workers")
	rootCmd.Flags().IntVar(&queueSizeFlag, "queue-size", pipeline.DefaultQueueCapacity, "Maximum decoded keyframes waiting for a worker")
	rootCmd.Flags().BoolVar(&dumpFramesFlag, "dump-frames", false, "Write each grayscale keyframe as frame-<n>.pgm")
	rootCmd.Flags().StringVar(&dumpDirFlag, "dump-dir", ".", "Directory for --dump-frames output")
	rootCmd.Flags().StringVar(&s3URIFlag, "s3-uri", "", "Upload the finished CSV to s3://bucket/key")
	rootCmd.Flags().BoolVar(&metricsFlag, "metrics", false, "Print a CloudWatch EMF metrics line on stdout after the run")
	rootCmd.Flags().BoolVar(&progressFlag, "progress", false, "Show a progress spinner on stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	runID := uuid.NewString()
	logging.WithRunID(runID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, runID, args[0]); err != nil {
		stop()
		log.Fatal().Err(err).Str("input", args[0]).Msg("Keyframe analysis failed")
	}
}

func run(ctx context.Context, runID, input string) error {
	var (
		uploadBucket, uploadKey string
		s3Client                s3Clienter
	)
	if s3URIFlag != "" {
		bucket, key, err := s3util.ParseURI(s3URIFlag)
		if err != nil {
			return err
		}
		uploadBucket, uploadKey = bucket, key
	}

	if err := media.CheckFFprobeAvailable(); err != nil {
		return err
	}

	if s3URIFlag != "" || s3util.IsURI(input) {
		client, err := s3util.NewClient(ctx)
		if err != nil {
			return err
		}
		s3Client = client
	}

	localInput := input
	if s3util.IsURI(input) {
		bucket, key, err := s3util.ParseURI(input)
		if err != nil {
			return err
		}
		path, cleanup, err := s3util.DownloadToTempFile(ctx, s3Client, bucket, key)
		if err != nil {
			return fmt.Errorf("%w: %w", media.ErrOpenInput, err)
		}
		defer cleanup()
		localInput = path
	}

	opts := runner.Options{
		Input:         localInput,
		Output:        outputFlag,
		Grid:          analysis.Grid{Rows: rowsFlag, Cols: colsFlag},
		Workers:       workersFlag,
		QueueCapacity: queueSizeFlag,
		RunID:         runID,
		Version:       version(),
	}
	if dumpFramesFlag {
		opts.DumpDir = dumpDirFlag
	}

	if progressFlag {
		bar, onAnalyzed := newProgress()
		opts.OnAnalyzed = onAnalyzed
		defer bar.Finish()
	}

	result, err := runner.New().Run(ctx, opts)
	if err != nil {
		return err
	}

	if metricsFlag {
		if err := recordMetrics(runID, input, result).Flush(); err != nil {
			log.Warn().Err(err).Msg("Failed to write metrics")
		}
	}

	if uploadBucket != "" {
		if !result.Emitted {
			log.Warn().Str("uri", s3URIFlag).Msg("No report was written, skipping upload")
		} else if err := s3util.UploadReport(ctx, s3Client, uploadBucket, uploadKey, result.Output); err != nil {
			return err
		}
	}

	log.Info().
		Int("rows", result.Rows).
		Dur("elapsed", result.Duration).
		Msg("Done")
	return nil
}

// s3Clienter covers the S3 calls made by the CLI.
type s3Clienter interface {
	s3util.GetObjectAPI
	s3util.PutObjectAPI
}

func recordMetrics(runID, input string, result *runner.Result) *metrics.Recorder {
	s := result.Stats
	return metrics.New(metrics.DefaultNamespace).
		Dimension("Grid", fmt.Sprintf("%dx%d", rowsFlag, colsFlag)).
		Count("KeyframesRead", s.Read).
		Count("KeyframesAnalyzed", s.Analyzed).
		Count("KeyframesDropped", s.Dropped).
		Count("DuplicateKeyframes", s.Duplicates).
		Count("QueueHighWater", s.QueueHighMark).
		Count("RowsWritten", int64(result.Rows)).
		Duration("RunMs", result.Duration).
		Property("runId", runID).
		Property("input", input).
		Property("codec", result.Stream.Codec).
		Property("emitted", result.Emitted)
}
