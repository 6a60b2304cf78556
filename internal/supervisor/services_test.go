// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLoop struct {
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
}

func (f *fakeLoop) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeLoop) Stop() {
	f.stopped.Store(true)
}

func (f *fakeLoop) IsRunning() bool {
	return f.started.Load() && !f.stopped.Load()
}

func TestLoopServiceLifecycle(t *testing.T) {
	loop := &fakeLoop{}
	svc := NewLoopService("test-loop", loop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(time.Second)
	for !loop.started.Load() {
		select {
		case <-deadline:
			t.Fatal("loop never started")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}

	if !loop.stopped.Load() {
		t.Error("loop was not stopped")
	}
}

func TestLoopServiceStartFailure(t *testing.T) {
	loop := &fakeLoop{startErr: errors.New("bad config")}
	svc := NewLoopService("test-loop", loop)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() = nil, want start error")
	}
	if loop.stopped.Load() {
		t.Error("Stop() called after failed Start()")
	}
}

func TestLoopServiceString(t *testing.T) {
	if got := NewLoopService("outbox-poller", &fakeLoop{}).String(); got != "outbox-poller" {
		t.Errorf("String() = %q", got)
	}
}
