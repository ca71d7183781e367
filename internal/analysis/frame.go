package analysis

// FrameAnalysis is the grid summary of one keyframe.
type FrameAnalysis struct {
	// Timestamp is the presentation time in seconds.
	Timestamp float64

	// FrameNumber orders analyses; it is unique per keyframe within a run.
	FrameNumber int64

	// Values holds one median per grid cell, row-major.
	Values []float32
}
