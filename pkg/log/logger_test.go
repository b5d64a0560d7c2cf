package log

import (
	"context"
	"log/slog"
	"testing"
)

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ToLogLevel(tt.input)
			if err != nil {
				t.Fatalf("ToLogLevel(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ToLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToLogLevelUnknown(t *testing.T) {
	for _, input := range []string{"verbose", "warning", ""} {
		if _, err := ToLogLevel(input); err == nil {
			t.Errorf("ToLogLevel(%q) expected error", input)
		}
	}
}

func TestSetupLoggerUnknownLevel(t *testing.T) {
	if err := SetupLogger("warning"); err == nil {
		t.Error("SetupLogger() expected error for unknown level")
	}
}

func TestTestLoggerCapture(t *testing.T) {
	logger, buf := NewTestLogger(LevelInfo)

	logger.Info("training started", SamplesKey, 100)
	logger.Debug("should be filtered")

	out := buf.String()
	if !logger.Contains("training started") {
		t.Errorf("captured output missing message: %q", out)
	}
	if !logger.Contains(SamplesKey) {
		t.Errorf("captured output missing field key: %q", out)
	}
	if logger.Contains("should be filtered") {
		t.Errorf("debug message not filtered at info level: %q", out)
	}
}

func TestTestLoggerWith(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)

	child := logger.With(ComponentKey, "gbm.trainer")
	child.Info("iteration done")

	if !logger.Contains("gbm.trainer") {
		t.Error("With() fields missing from captured output")
	}
}

func TestLevelEnabled(t *testing.T) {
	logger, _ := NewTestLogger(LevelWarn)

	if logger.Enabled(context.Background(), LevelInfo) {
		t.Error("Enabled(info) = true at warn level")
	}
	if !logger.Enabled(context.Background(), LevelError) {
		t.Error("Enabled(error) = false at warn level")
	}
}

func TestGetLoggerWithName(t *testing.T) {
	logger := GetLoggerWithName("dataset")
	if logger == nil {
		t.Fatal("GetLoggerWithName() returned nil")
	}
}
