package main

import (
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
)

// newProgress returns a spinner on stderr counting analyzed keyframes. The
// keyframe count is not known up front, so the bar has no total.
func newProgress() (*progressbar.ProgressBar, func(analysis.FrameAnalysis)) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Analyzing keyframes"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return bar, func(analysis.FrameAnalysis) {
		_ = bar.Add(1)
	}
}
