package timectrl

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
)

// Mode describes how the TimeController paces its steps.
type Mode int

const (
	// Accelerated visits every epoch as fast as listeners allow.
	Accelerated Mode = iota
	// RealTime waits one Tick of wall-clock time between steps.
	RealTime
)

func (m Mode) String() string {
	switch m {
	case Accelerated:
		return "accelerated"
	case RealTime:
		return "realtime"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// TimeController walks ephemeris time from Start to End in fixed steps and
// notifies registered listeners at every epoch, both endpoints included.
type TimeController struct {
	mu    sync.RWMutex
	Start Epoch
	End   Epoch
	Step  float64 // seconds of ephemeris time per step
	Tick  time.Duration
	Mode  Mode

	current   Epoch
	listeners []func(Epoch) error
}

// NewTimeController constructs a controller over [start, end]. step must be
// positive and end must not precede start.
func NewTimeController(start, end Epoch, step float64, mode Mode) (*TimeController, error) {
	if step <= 0 {
		return nil, fmt.Errorf("time controller: step must be positive, got %v", step)
	}
	if end < start {
		return nil, fmt.Errorf("time controller: end %s precedes start %s", end, start)
	}
	return &TimeController{
		Start:   start,
		End:     end,
		Step:    step,
		Tick:    time.Second,
		Mode:    mode,
		current: start,
	}, nil
}

// Now returns the most recently visited epoch.
func (tc *TimeController) Now() Epoch {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// AddListener registers a callback invoked at every epoch. A listener error
// stops the run.
func (tc *TimeController) AddListener(fn func(Epoch) error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Epochs yields every epoch in the span. The final step is clamped so End
// is always visited.
func (tc *TimeController) Epochs() iter.Seq[Epoch] {
	return func(yield func(Epoch) bool) {
		for i := 0; ; i++ {
			e := tc.Start.Add(float64(i) * tc.Step)
			if e >= tc.End {
				yield(tc.End)
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Run visits every epoch in order, notifying listeners. It returns early
// with the context error on cancellation or with the first listener error.
func (tc *TimeController) Run(ctx context.Context) error {
	tc.mu.RLock()
	listeners := append([]func(Epoch) error(nil), tc.listeners...)
	tc.mu.RUnlock()

	var ticker *time.Ticker
	if tc.Mode == RealTime {
		ticker = time.NewTicker(tc.Tick)
		defer ticker.Stop()
	}

	first := true
	for e := range tc.Epochs() {
		if !first && ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		first = false
		if err := ctx.Err(); err != nil {
			return err
		}

		tc.mu.Lock()
		tc.current = e
		tc.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(e); err != nil {
				return fmt.Errorf("listener at %s: %w", e, err)
			}
		}
	}
	return nil
}
