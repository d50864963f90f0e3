package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the kernel
// during a sweep.
type Delta struct {
	Ticks     int
	Steps     int
	Grants    int
	Misses    int
	Releases  int
	Spawns    int
	Removals  int
	Signals   int
	Processes int
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Progress keeps aggregated kernel counters for one run. The kernel is the
// only writer; Snapshot may be called from any goroutine.
type Progress struct {
	RunID     string
	StartedAt time.Time

	Ticks    int
	Steps    int
	Grants   int
	Misses   int
	Releases int
	Spawns   int
	Removals int
	Signals  int
	// Processes is the size of the process collection after the last tick.
	Processes int

	mu       sync.Mutex
	onChange func(Progress)
}

// New creates a tracker for runID.
func New(runID string) *Progress {
	return &Progress{RunID: runID, StartedAt: time.Now()}
}

// Update applies d. If an onChange callback is registered it is invoked
// with a copy of the counters outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil || d.IsZero() {
		return
	}

	p.mu.Lock()
	p.Ticks += d.Ticks
	p.Steps += d.Steps
	p.Grants += d.Grants
	p.Misses += d.Misses
	p.Releases += d.Releases
	p.Spawns += d.Spawns
	p.Removals += d.Removals
	p.Signals += d.Signals
	p.Processes += d.Processes
	snapshot := p.copyLocked()
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (p *Progress) copyLocked() Progress {
	return Progress{
		RunID:     p.RunID,
		StartedAt: p.StartedAt,
		Ticks:     p.Ticks,
		Steps:     p.Steps,
		Grants:    p.Grants,
		Misses:    p.Misses,
		Releases:  p.Releases,
		Spawns:    p.Spawns,
		Removals:  p.Removals,
		Signals:   p.Signals,
		Processes: p.Processes,
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked()
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds p in a derived context.
func WithTracker(ctx context.Context, p *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, p)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}
