// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("track_id", "t-123").Msg("soft delete committed")

	out := buf.String()
	if !strings.Contains(out, `"track_id":"t-123"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"soft delete committed"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "error", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("should be filtered")
	Error().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("info message leaked through error level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("error message missing: %q", out)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := zerolog.New(&buf)
	SetLogger(custom)
	defer Init(DefaultConfig())

	Info().Msg("via custom logger")

	if !strings.Contains(buf.String(), "via custom logger") {
		t.Errorf("custom logger not used: %q", buf.String())
	}
}
