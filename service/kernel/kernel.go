// Package kernel implements the cooperative scheduler. Every tick the kernel
// sorts its processes by priority, steps each eligible one, mediates resource
// requests against the pool and applies spawns, removals and state signals at
// the tick boundary.
//
// The kernel is single-threaded: Tick and Run must not be called
// concurrently.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/internal/idgen"
	"github.com/viant/kernsim/progress"
	"github.com/viant/kernsim/runtime/process"
	"github.com/viant/kernsim/runtime/vm"
	"github.com/viant/kernsim/service/dao"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/pool"
	"github.com/viant/kernsim/tracing"
)

// Config bounds a run.
type Config struct {
	// MaxTicks stops Run after that many ticks; 0 means unbounded.
	MaxTicks int `yaml:"maxTicks" json:"maxTicks"`
	// SnapshotEvery saves a snapshot every n ticks; 0 disables the journal.
	SnapshotEvery int `yaml:"snapshotEvery" json:"snapshotEvery"`
}

// Kernel owns the process collection and the resource pool.
type Kernel struct {
	config    Config
	runID     string
	logger    logrus.FieldLogger
	pool      *pool.Pool
	cpu       vm.Processor
	ids       *process.Sequence
	publisher *event.Publisher[Trace]
	snapshots dao.Service[int, Snapshot]
	progress  *progress.Progress

	processes []process.Process
	tick      int
	dropped   int
}

type signal struct {
	from   int
	target int
	state  process.State
}

// sweep collects the effects deferred to the end of a tick.
type sweep struct {
	spawned []process.Process
	removed map[int]bool
	signals []signal
	delta   progress.Delta
}

// New creates a kernel with an empty pool and no processes.
func New(options ...Option) *Kernel {
	ret := &Kernel{}
	for _, opt := range options {
		opt(ret)
	}
	if ret.runID == "" {
		ret.runID = idgen.NewRunID()
	}
	if ret.logger == nil {
		ret.logger = logrus.New()
	}
	if ret.pool == nil {
		ret.pool = pool.New()
	}
	if ret.cpu == nil {
		ret.cpu = vm.NewMachine()
	}
	if ret.ids == nil {
		ret.ids = process.NewSequence(0)
	}
	if ret.progress == nil {
		ret.progress = progress.New(ret.runID)
	}
	return ret
}

// RunID returns the run identifier.
func (k *Kernel) RunID() string { return k.runID }

// Ticks returns the number of completed ticks.
func (k *Kernel) Ticks() int { return k.tick }

// Pool returns the resource pool.
func (k *Kernel) Pool() *pool.Pool { return k.pool }

// Progress returns the counter tracker.
func (k *Kernel) Progress() *progress.Progress { return k.progress }

// NextID allocates a fresh process id.
func (k *Kernel) NextID() int { return k.ids.NextID() }

// Processes returns the current collection in its last sweep order.
func (k *Kernel) Processes() []process.Process {
	return append([]process.Process(nil), k.processes...)
}

// Process returns a live process by id.
func (k *Kernel) Process(id int) (process.Process, bool) {
	idx := k.indexOf(id)
	if idx == -1 {
		return nil, false
	}
	return k.processes[idx], true
}

func (k *Kernel) indexOf(id int) int {
	for i, p := range k.processes {
		if p.ID() == id {
			return i
		}
	}
	return -1
}

// DroppedEvents returns how many kernel events the publisher rejected.
func (k *Kernel) DroppedEvents() int {
	return k.dropped
}

// Bootstrap adds processes before the first tick. Ids are checked up front, so
// a rejected batch adds nothing.
func (k *Kernel) Bootstrap(procs ...process.Process) error {
	seen := make(map[int]bool, len(procs))
	for _, p := range procs {
		if p == nil {
			return fmt.Errorf("kernel: nil bootstrap process")
		}
		if seen[p.ID()] || k.indexOf(p.ID()) != -1 {
			return &ProtocolError{Tick: k.tick, ProcessID: p.ID(), State: p.State(), Kind: process.KindSpawn, Reason: "duplicate process id"}
		}
		seen[p.ID()] = true
	}
	k.processes = append(k.processes, procs...)
	k.progress.Update(progress.Delta{Processes: len(procs)})
	return nil
}

// Idle reports whether no process can make progress: none is READY or
// BLOCKED.
func (k *Kernel) Idle() bool {
	for _, p := range k.processes {
		switch p.State() {
		case process.StateReady, process.StateBlocked:
			return false
		}
	}
	return true
}

// Run ticks until ctx is done, a protocol violation occurs, MaxTicks is
// reached or the schedule is idle.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if k.config.MaxTicks > 0 && k.tick >= k.config.MaxTicks {
			k.logger.WithField("tick", k.tick).Info("tick limit reached")
			return nil
		}
		if k.Idle() {
			k.logger.WithField("tick", k.tick).Info("no runnable process left")
			return nil
		}
		if err := k.Tick(ctx); err != nil {
			return err
		}
	}
}

// Tick runs one sweep over the process collection.
func (k *Kernel) Tick(ctx context.Context) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	k.tick++
	ctx, span := tracing.StartSpan(ctx, "kernel.tick")
	span.WithInt("tick", k.tick).WithInt("processes", len(k.processes))
	defer func() { tracing.EndSpan(span, err) }()

	sort.SliceStable(k.processes, func(i, j int) bool {
		return k.processes[i].Priority() < k.processes[j].Priority()
	})

	sw := &sweep{removed: make(map[int]bool), delta: progress.Delta{Ticks: 1}}
	defer func() { k.progress.Update(sw.delta) }()

	for _, p := range k.processes {
		if sw.removed[p.ID()] {
			continue
		}
		k.applyPending(ctx, p, sw)
		if err = k.visit(ctx, p, sw); err != nil {
			k.violation(ctx, err)
			return err
		}
	}
	if err = k.finish(ctx, sw); err != nil {
		k.violation(ctx, err)
		return err
	}
	k.saveSnapshot(ctx)
	return nil
}

// applyPending applies and consumes signals queued earlier in this tick for p.
func (k *Kernel) applyPending(ctx context.Context, p process.Process, sw *sweep) {
	pending := sw.signals[:0]
	for _, s := range sw.signals {
		if s.target != p.ID() {
			pending = append(pending, s)
			continue
		}
		k.applySignal(ctx, p, s)
	}
	sw.signals = pending
}

func (k *Kernel) applySignal(ctx context.Context, p process.Process, s signal) {
	p.SetState(s.state)
	switch s.state {
	case process.StateReadySuspended, process.StateBlockedSuspended:
		// a suspended process requests nothing, so it must not hold a fifo queue head
		k.pool.Forget(s.target)
	}
	k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": s.target, "from": s.from, "state": s.state.String()}).Debug("state signal applied")
	k.emit(ctx, s.from, Trace{Kind: TraceSignal, ProcessID: s.from, TargetID: s.target, State: s.state.String()})
}

func (k *Kernel) visit(ctx context.Context, p process.Process, sw *sweep) error {
	if p.State() == process.StateBlocked {
		outcome, err := k.step(ctx, p, sw)
		if err != nil {
			return err
		}
		switch outcome.Kind() {
		case process.KindRequest:
			k.grant(ctx, p, outcome, sw)
		case process.KindNone:
		default:
			return &ProtocolError{Tick: k.tick, ProcessID: p.ID(), State: process.StateBlocked, Kind: outcome.Kind(), Reason: "blocked process may only request"}
		}
	}
	// a blocked process that readied itself above is stepped again here
	if p.State() == process.StateReady {
		outcome, err := k.step(ctx, p, sw)
		if err != nil {
			return err
		}
		return k.dispatch(ctx, p, outcome, sw, followAll)
	}
	return nil
}

func (k *Kernel) step(ctx context.Context, p process.Process, sw *sweep) (process.Outcome, error) {
	state := p.State()
	sw.delta.Steps++
	outcome, err := p.Step(ctx, k.cpu)
	if err != nil {
		return outcome, &ProtocolError{Tick: k.tick, ProcessID: p.ID(), State: state, Kind: outcome.Kind(), Reason: "step failed", Err: err}
	}
	if err = outcome.Validate(); err != nil {
		return outcome, &ProtocolError{Tick: k.tick, ProcessID: p.ID(), State: state, Kind: outcome.Kind(), Reason: "malformed outcome", Err: err}
	}
	return outcome, nil
}

// followUp bounds the extra steps a READY visit may take.
type followUp int

const (
	followNone    followUp = iota
	followRelease          // only a release earns a continuation
	followAll              // release or none earn one more step
)

// dispatch applies a READY outcome. A release earns one continuation step and
// a none earns one retry; a retry that releases still gets its continuation,
// but a continuation never earns another step.
func (k *Kernel) dispatch(ctx context.Context, p process.Process, outcome process.Outcome, sw *sweep, follow followUp) error {
	switch outcome.Kind() {
	case process.KindRequest:
		k.grant(ctx, p, outcome, sw)
		return nil
	case process.KindRelease:
		r := outcome.Resource()
		k.pool.Add(r)
		sw.delta.Releases++
		k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": p.ID(), "resource": r.Type.String()}).Debug("resource released")
		k.emit(ctx, p.ID(), Trace{Kind: TraceRelease, ProcessID: p.ID(), Resource: r.Type.String(), Payload: r.Payload})
	case process.KindSpawn:
		child := outcome.Child()
		sw.spawned = append(sw.spawned, child)
		return nil
	case process.KindTerminate:
		if outcome.TargetID() != p.ID() {
			return &ProtocolError{Tick: k.tick, ProcessID: p.ID(), State: p.State(), Kind: process.KindTerminate,
				Reason: fmt.Sprintf("terminate must name the reporter, got %d", outcome.TargetID())}
		}
		sw.removed[p.ID()] = true
		k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": p.ID()}).Info("process will be removed")
		return nil
	case process.KindSignal:
		sw.signals = append(sw.signals, signal{from: p.ID(), target: outcome.TargetID(), state: outcome.TargetState()})
		sw.delta.Signals++
		return nil
	case process.KindNone:
		if follow != followAll {
			return nil
		}
	}
	if follow == followNone {
		return nil
	}
	next, err := k.step(ctx, p, sw)
	if err != nil {
		return err
	}
	if outcome.Kind() == process.KindNone {
		return k.dispatch(ctx, p, next, sw, followRelease)
	}
	return k.dispatch(ctx, p, next, sw, followNone)
}

func (k *Kernel) grant(ctx context.Context, p process.Process, outcome process.Outcome, sw *sweep) {
	t := outcome.ResourceType()
	r, ok := k.pool.Take(t, p.ID())
	if ok {
		p.AddResource(r)
		sw.delta.Grants++
	} else {
		sw.delta.Misses++
	}
	k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": p.ID(), "resource": t.String(), "granted": ok}).Debug("resource request")
	trace := Trace{Kind: TraceMiss, ProcessID: p.ID(), Resource: t.String()}
	if ok {
		trace.Kind = TraceGrant
		trace.Payload = r.Payload
	}
	k.emit(ctx, p.ID(), trace)
}

// finish applies the end-of-tick barrier: spawned children join, terminated
// processes leave, remaining signals are applied.
func (k *Kernel) finish(ctx context.Context, sw *sweep) error {
	for _, child := range sw.spawned {
		if k.indexOf(child.ID()) != -1 {
			return &ProtocolError{Tick: k.tick, ProcessID: child.ParentID(), State: process.StateReady, Kind: process.KindSpawn,
				Reason: fmt.Sprintf("duplicate process id %d", child.ID())}
		}
		k.processes = append(k.processes, child)
		sw.delta.Spawns++
		sw.delta.Processes++
		k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": child.ID(), "parent": child.ParentID()}).Debug("process spawned")
		k.emit(ctx, child.ParentID(), Trace{Kind: TraceSpawn, ProcessID: child.ParentID(), TargetID: child.ID()})
	}

	if len(sw.removed) > 0 {
		kept := k.processes[:0]
		for _, p := range k.processes {
			if !sw.removed[p.ID()] {
				kept = append(kept, p)
				continue
			}
			k.pool.Forget(p.ID())
			sw.delta.Removals++
			sw.delta.Processes--
			k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": p.ID(), "held": len(p.Resources())}).Info("process removed")
			k.emit(ctx, p.ID(), Trace{Kind: TraceRemove, ProcessID: p.ID()})
		}
		for i := len(kept); i < len(k.processes); i++ {
			k.processes[i] = nil
		}
		k.processes = kept
	}

	for _, s := range sw.signals {
		if sw.removed[s.target] {
			k.logger.WithFields(logrus.Fields{"tick": k.tick, "pid": s.target, "from": s.from}).Info("signal to removed process dropped")
			k.emit(ctx, s.from, Trace{Kind: TraceDrop, ProcessID: s.from, TargetID: s.target, State: s.state.String()})
			continue
		}
		idx := k.indexOf(s.target)
		if idx == -1 {
			return &ProtocolError{Tick: k.tick, ProcessID: s.from, State: process.StateReady, Kind: process.KindSignal,
				Reason: fmt.Sprintf("signal to unknown process %d", s.target)}
		}
		k.applySignal(ctx, k.processes[idx], s)
	}
	sw.signals = nil
	return nil
}

func (k *Kernel) violation(ctx context.Context, err error) {
	k.logger.WithField("tick", k.tick).WithError(err).Error("protocol violation")
	trace := Trace{Kind: TraceViolation, Detail: err.Error()}
	var pErr *ProtocolError
	if errors.As(err, &pErr) {
		trace.ProcessID = pErr.ProcessID
	}
	k.emit(ctx, trace.ProcessID, trace)
}

func (k *Kernel) emit(ctx context.Context, pid int, trace Trace) {
	if k.publisher == nil {
		return
	}
	ev := event.NewEvent(&event.Context{RunID: k.runID, Tick: k.tick, ProcessID: pid, EventType: trace.Kind}, trace)
	if err := k.publisher.Publish(ctx, ev); err != nil {
		k.dropped++
		entry := k.logger.WithFields(logrus.Fields{"tick": k.tick, "dropped": k.dropped}).WithError(err)
		if k.dropped == 1 {
			entry.Warn("kernel event dropped, further drops are logged at debug level")
			return
		}
		entry.Debug("kernel event dropped")
	}
}

func (k *Kernel) saveSnapshot(ctx context.Context) {
	if k.snapshots == nil || k.config.SnapshotEvery <= 0 || k.tick%k.config.SnapshotEvery != 0 {
		return
	}
	if err := k.snapshots.Save(ctx, k.Snapshot()); err != nil {
		k.logger.WithField("tick", k.tick).WithError(err).Warn("failed to save snapshot")
	}
}
