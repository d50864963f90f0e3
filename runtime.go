package kernsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/progress"
	"github.com/viant/kernsim/runtime/process/startstop"
	"github.com/viant/kernsim/service/dao"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/kernel"
	"github.com/viant/kernsim/service/messaging"
	mmemory "github.com/viant/kernsim/service/messaging/memory"
	"github.com/viant/kernsim/tracing"
)

// Runtime represents one simulator run.
type Runtime struct {
	kernel    *kernel.Kernel
	config    *Config
	logger    logrus.FieldLogger
	queue     messaging.Queue[event.Event[kernel.Trace]]
	snapshots dao.Service[int, kernel.Snapshot]
	boot      *startstop.Process
}

// Kernel returns the underlying kernel.
func (r *Runtime) Kernel() *kernel.Kernel {
	return r.kernel
}

// Bootstrap schedules the StartStop program with the configured lines.
func (r *Runtime) Bootstrap() error {
	if r.boot != nil {
		return fmt.Errorf("runtime already bootstrapped")
	}
	r.boot = startstop.New(r.kernel.NextID(), r.kernel,
		startstop.WithLines(r.config.Boot.Lines...),
		startstop.WithPrintPriority(r.config.Boot.PrintPriority),
		startstop.WithLogger(r.logger),
	)
	return r.kernel.Bootstrap(r.boot)
}

// Run ticks the kernel until it stops. A protocol violation is returned as
// a *kernel.ProtocolError.
func (r *Runtime) Run(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "kernel.run")
	span.WithAttributes(map[string]string{"run.id": r.kernel.RunID()})
	defer func() {
		span.WithInt("ticks", r.kernel.Ticks())
		tracing.EndSpan(span, err)
	}()

	ctx = progress.WithTracker(ctx, r.kernel.Progress())
	err = r.kernel.Run(ctx)
	fields := logrus.Fields{"run": r.kernel.RunID(), "ticks": r.kernel.Ticks()}
	switch {
	case err == nil:
		r.logger.WithFields(fields).Info("run finished")
	case errors.Is(err, kernel.ErrProtocolViolation):
		r.logger.WithFields(fields).WithError(err).Error("run aborted")
	default:
		r.logger.WithFields(fields).WithError(err).Warn("run interrupted")
	}
	return err
}

// Tick runs a single tick.
func (r *Runtime) Tick(ctx context.Context) error {
	return r.kernel.Tick(ctx)
}

// Progress returns a copy of the run counters.
func (r *Runtime) Progress() progress.Progress {
	return r.kernel.Progress().Snapshot()
}

// Snapshots lists the journal; nil when the journal is disabled.
func (r *Runtime) Snapshots(ctx context.Context) ([]*kernel.Snapshot, error) {
	if r.snapshots == nil {
		return nil, nil
	}
	return r.snapshots.List(ctx)
}

// Listen streams kernel events to handler on a separate goroutine until the
// returned listener is stopped.
func (r *Runtime) Listen(ctx context.Context, handler func(*event.Event[kernel.Trace])) (*event.Listener[kernel.Trace], error) {
	if r.queue == nil {
		return nil, fmt.Errorf("kernel events are disabled")
	}
	listener := event.NewListener[kernel.Trace](event.NewPublisher[kernel.Trace](r.queue), handler)
	listener.Start(ctx)
	return listener, nil
}

// Events drains buffered kernel events from the default in-memory queue.
func (r *Runtime) Events() []event.Event[kernel.Trace] {
	queue, ok := r.queue.(*mmemory.Queue[event.Event[kernel.Trace]])
	if !ok {
		return nil
	}
	return queue.Drain()
}
