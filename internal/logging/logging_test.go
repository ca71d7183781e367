package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitWithWriter(t *testing.T) {
	saved, savedLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(savedLevel)
	})

	t.Setenv(LevelEnv, "warn")
	var buf bytes.Buffer
	InitWithWriter(&buf)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestRunSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	NewRunSummary("analyze-keyframes").
		RunID("abc").
		Input("clip.mp4").
		Output("frame-analysis.csv").
		Stream(1, "h264", 1920, 1080).
		Feature("dumpFrames", true).
		Config("grid", "3x3").
		event(logger.Info()).
		Msg("summary")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}

	process, _ := got["process"].(map[string]any)
	if process["name"] != "analyze-keyframes" || process["runID"] != "abc" {
		t.Errorf("process: got %v", process)
	}
	if got["input"] != "clip.mp4" || got["output"] != "frame-analysis.csv" {
		t.Errorf("paths: got %v, %v", got["input"], got["output"])
	}
	stream, _ := got["stream"].(map[string]any)
	if stream["codec"] != "h264" || stream["width"] != float64(1920) {
		t.Errorf("stream: got %v", stream)
	}
	features, _ := got["features"].(map[string]any)
	if features["dumpFrames"] != true {
		t.Errorf("features: got %v", features)
	}
	config, _ := got["config"].(map[string]any)
	if config["grid"] != "3x3" {
		t.Errorf("config: got %v", config)
	}
	if _, ok := got["setupDuration"]; ok {
		t.Error("setupDuration present although never set")
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("KEYFRAMES_TEST_VAR", "")
	if got := EnvOrDefault("KEYFRAMES_TEST_VAR", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
	t.Setenv("KEYFRAMES_TEST_VAR", "set")
	if got := EnvOrDefault("KEYFRAMES_TEST_VAR", "fallback"); got != "set" {
		t.Errorf("got %q, want set", got)
	}
}
