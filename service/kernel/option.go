package kernel

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/progress"
	"github.com/viant/kernsim/runtime/process"
	"github.com/viant/kernsim/runtime/vm"
	"github.com/viant/kernsim/service/dao"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/pool"
)

// Option customises a Kernel.
type Option func(k *Kernel)

// WithConfig sets run limits.
func WithConfig(config Config) Option {
	return func(k *Kernel) {
		k.config = config
	}
}

// WithLogger sets the trace logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithPool sets the resource pool.
func WithPool(p *pool.Pool) Option {
	return func(k *Kernel) {
		k.pool = p
	}
}

// WithProcessor sets the virtual machine handed to every step.
func WithProcessor(cpu vm.Processor) Option {
	return func(k *Kernel) {
		k.cpu = cpu
	}
}

// WithPublisher enables kernel trace events.
func WithPublisher(publisher *event.Publisher[Trace]) Option {
	return func(k *Kernel) {
		k.publisher = publisher
	}
}

// WithSnapshots enables the snapshot journal.
func WithSnapshots(snapshots dao.Service[int, Snapshot]) Option {
	return func(k *Kernel) {
		k.snapshots = snapshots
	}
}

// WithProgress sets the counter tracker.
func WithProgress(p *progress.Progress) Option {
	return func(k *Kernel) {
		k.progress = p
	}
}

// WithRunID sets the run identifier used by events and snapshots.
func WithRunID(runID string) Option {
	return func(k *Kernel) {
		k.runID = runID
	}
}

// WithIDs sets the process id allocator.
func WithIDs(ids *process.Sequence) Option {
	return func(k *Kernel) {
		k.ids = ids
	}
}
