package frame

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScheduledCallbackRunsOnce(t *testing.T) {
	l := NewLoop()
	calls := 0
	l.Schedule(func(time.Time) { calls++ })

	if n := l.RunFrame(time.Now()); n != 1 {
		t.Fatalf("expected 1 callback, got %d", n)
	}
	l.RunFrame(time.Now())
	if calls != 1 {
		t.Errorf("expected callback once, got %d", calls)
	}
}

func TestRescheduleWaitsForNextFrame(t *testing.T) {
	l := NewLoop()
	calls := 0
	var again func(time.Time)
	again = func(time.Time) {
		calls++
		l.Schedule(again)
	}
	l.Schedule(again)

	for i := 1; i <= 3; i++ {
		l.RunFrame(time.Now())
		if calls != i {
			t.Fatalf("frame %d: expected %d calls, got %d", i, i, calls)
		}
	}
	if l.Pending() != 1 {
		t.Errorf("expected one pending callback, got %d", l.Pending())
	}
}

func TestCancel(t *testing.T) {
	l := NewLoop()
	ran := false
	cancel := l.Schedule(func(time.Time) { ran = true })
	cancel()
	cancel()
	l.RunFrame(time.Now())
	if ran {
		t.Error("cancelled callback ran")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	err := l.Run(ctx, 200, func(time.Time) {
		frames++
		if frames == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if frames < 3 {
		t.Errorf("expected at least 3 frames, got %d", frames)
	}
	if l.Frames() != int64(frames) {
		t.Errorf("expected frame counter %d, got %d", frames, l.Frames())
	}
}

func TestRunRejectsBadFPS(t *testing.T) {
	if err := NewLoop().Run(context.Background(), 0, nil); err == nil {
		t.Error("expected error for fps 0")
	}
}
