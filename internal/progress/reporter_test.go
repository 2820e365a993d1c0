package progress

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) read() time.Duration { return c.now }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestObserveEmitsOnInterval(t *testing.T) {
	clock := &fakeClock{}
	r := NewReporter(100, 25, 20*time.Second, WithClock(clock.read))

	for i := 1; i < 100; i++ {
		if _, ok := r.Observe(i); ok {
			t.Fatalf("unexpected event at frame %d", i)
		}
	}
	clock.now = 2 * time.Second
	ev, ok := r.Observe(100)
	if !ok {
		t.Fatal("expected event at frame 100")
	}
	if !approxEqual(ev.ProcessingFPS, 50) {
		t.Fatalf("processing fps = %v, want 50", ev.ProcessingFPS)
	}
	if !approxEqual(ev.PositionSeconds, 4) {
		t.Fatalf("position = %v, want 4", ev.PositionSeconds)
	}
	if !approxEqual(ev.Percent, 20) {
		t.Fatalf("percent = %v, want 20", ev.Percent)
	}

	clock.now = 3 * time.Second
	ev, ok = r.Observe(200)
	if !ok {
		t.Fatal("expected event at frame 200")
	}
	if !approxEqual(ev.ProcessingFPS, 100) {
		t.Fatalf("processing fps = %v, want 100", ev.ProcessingFPS)
	}
	if ev.Elapsed != 3*time.Second {
		t.Fatalf("elapsed = %v, want 3s", ev.Elapsed)
	}
}

func TestObserveNeverPanicsOnDegenerateInputs(t *testing.T) {
	tests := []struct {
		name     string
		fps      float64
		duration time.Duration
	}{
		{name: "zero fps", fps: 0, duration: time.Minute},
		{name: "zero duration", fps: 25, duration: 0},
		{name: "nan fps", fps: math.NaN(), duration: time.Minute},
		{name: "inf fps", fps: math.Inf(1), duration: time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{}
			r := NewReporter(10, tc.fps, tc.duration, WithClock(clock.read))
			ev, ok := r.Observe(10)
			if !ok {
				t.Fatal("expected event")
			}
			if ev.Known() {
				t.Fatalf("expected unknown percent, got %v", ev.Percent)
			}
			if ev.ProcessingFPS != 0 {
				t.Fatalf("zero clock delta should give zero fps, got %v", ev.ProcessingFPS)
			}
		})
	}
}

func TestPercentClampedAtHundred(t *testing.T) {
	clock := &fakeClock{}
	r := NewReporter(1, 10, time.Second, WithClock(clock.read))
	ev := r.Final(50)
	if ev.Percent != 100 {
		t.Fatalf("percent = %v, want 100", ev.Percent)
	}
}

func TestDefaultsAndNilReporter(t *testing.T) {
	r := NewReporter(0, 25, time.Second)
	if r.Interval() != DefaultInterval {
		t.Fatalf("interval = %d, want %d", r.Interval(), DefaultInterval)
	}
	var nilReporter *Reporter
	if _, ok := nilReporter.Observe(100); ok {
		t.Fatal("nil reporter should never emit")
	}
	if ev := nilReporter.Final(3); ev.Known() {
		t.Fatalf("nil reporter final should be unknown, got %+v", ev)
	}
}

func TestProcessCPUTimeAdvances(t *testing.T) {
	first := ProcessCPUTime()
	sum := 0
	for i := 0; i < 5_000_000; i++ {
		sum += i % 7
	}
	if sum < 0 {
		t.Fatal("unreachable")
	}
	if second := ProcessCPUTime(); second < first {
		t.Fatalf("cpu clock went backwards: %v -> %v", first, second)
	}
}
