package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunSummary collects the identity, input, selected stream, configuration
// and feature flags of an analysis run, then emits them as a single
// structured zerolog event. One line tells exactly how a run was set up.
type RunSummary struct {
	name      string
	runID     string
	version   string
	input     string
	output    string
	setupTime time.Duration

	stream   *streamFields
	features map[string]bool
	config   map[string]string
}

type streamFields struct {
	index  int
	codec  string
	width  int
	height int
}

// NewRunSummary creates a RunSummary for the named tool.
func NewRunSummary(name string) *RunSummary {
	return &RunSummary{
		name:     name,
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// RunID sets the run identifier.
func (s *RunSummary) RunID(id string) *RunSummary {
	s.runID = id
	return s
}

// Version sets the build version baked into the binary.
func (s *RunSummary) Version(v string) *RunSummary {
	s.version = v
	return s
}

// Input sets the analyzed video path.
func (s *RunSummary) Input(path string) *RunSummary {
	s.input = path
	return s
}

// Output sets the report path.
func (s *RunSummary) Output(path string) *RunSummary {
	s.output = path
	return s
}

// Stream records the selected video stream.
func (s *RunSummary) Stream(index int, codec string, width, height int) *RunSummary {
	s.stream = &streamFields{index: index, codec: codec, width: width, height: height}
	return s
}

// Feature registers a boolean feature flag (e.g. "dumpFrames").
func (s *RunSummary) Feature(name string, enabled bool) *RunSummary {
	s.features[name] = enabled
	return s
}

// Config registers a configuration key-value pair.
func (s *RunSummary) Config(key, value string) *RunSummary {
	s.config[key] = value
	return s
}

// SetupDuration records how long probing and validation took.
func (s *RunSummary) SetupDuration(d time.Duration) *RunSummary {
	s.setupTime = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO log event with all collected information.
func (s *RunSummary) Log() {
	s.event(log.Info()).Msg("Keyframe analysis configured")
}

func (s *RunSummary) event(evt *zerolog.Event) *zerolog.Event {
	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.GOMAXPROCS(0)).
		Str("logLevel", EnvOrDefault(LevelEnv, "info"))
	if s.runID != "" {
		process = process.Str("runID", s.runID)
	}
	if s.version != "" {
		process = process.Str("version", s.version)
	}
	evt = evt.Dict("process", process)

	if s.input != "" {
		evt = evt.Str("input", s.input)
	}
	if s.output != "" {
		evt = evt.Str("output", s.output)
	}

	if s.stream != nil {
		evt = evt.Dict("stream", zerolog.Dict().
			Int("index", s.stream.index).
			Str("codec", s.stream.codec).
			Int("width", s.stream.width).
			Int("height", s.stream.height))
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.setupTime > 0 {
		evt = evt.Dur("setupDuration", s.setupTime)
	}
	return evt
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
