// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Errorf("empty context returned correlation ID %q", got)
	}

	ctx = ContextWithCorrelationID(ctx, "corr-42")
	if got := CorrelationIDFromContext(ctx); got != "corr-42" {
		t.Errorf("CorrelationIDFromContext = %q, want corr-42", got)
	}
}

func TestContextWithNewCorrelationID(t *testing.T) {
	ctx := ContextWithNewCorrelationID(context.Background())
	if CorrelationIDFromContext(ctx) == "" {
		t.Error("expected generated correlation ID, got empty string")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-7")
	if got := RequestIDFromContext(ctx); got != "req-7" {
		t.Errorf("RequestIDFromContext = %q, want req-7", got)
	}
}

func TestCtxEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithCorrelationID(context.Background(), "corr-abc")
	ctx = ContextWithRequestID(ctx, "req-def")

	Ctx(ctx).Info().Msg("enriched")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"corr-abc"`) {
		t.Errorf("correlation_id missing from output: %q", out)
	}
	if !strings.Contains(out, `"request_id":"req-def"`) {
		t.Errorf("request_id missing from output: %q", out)
	}
}

func TestGenerateCorrelationIDUnique(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	if a == b {
		t.Errorf("expected unique IDs, got %q twice", a)
	}
}
