package kernsim

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/internal/idgen"
	"github.com/viant/kernsim/policy"
	"github.com/viant/kernsim/progress"
	"github.com/viant/kernsim/runtime/vm"
	"github.com/viant/kernsim/service/dao"
	"github.com/viant/kernsim/service/dao/fs"
	"github.com/viant/kernsim/service/dao/store"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/kernel"
	"github.com/viant/kernsim/service/messaging"
	mmemory "github.com/viant/kernsim/service/messaging/memory"
	"github.com/viant/kernsim/service/pool"
	"github.com/viant/kernsim/tracing"
)

// Version is reported as the tracing service version.
const Version = "0.1.0"

// Service wires a kernel from a Config.
type Service struct {
	config    *Config
	logger    logrus.FieldLogger
	output    io.Writer
	cpu       vm.Processor
	snapshots dao.Service[int, kernel.Snapshot]
	queue     messaging.Queue[event.Event[kernel.Trace]]
	runtime   *Runtime
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return err
	}
	inventory, _ := s.config.Inventory()
	aPool := pool.New(pool.WithPolicy(policy.FromConfig(s.config.Pool.Policy)))
	aPool.Seed(inventory)

	runID := idgen.NewRunID()
	kernelOptions := []kernel.Option{
		kernel.WithConfig(s.config.Kernel),
		kernel.WithLogger(s.logger),
		kernel.WithPool(aPool),
		kernel.WithProcessor(s.cpu),
		kernel.WithRunID(runID),
		kernel.WithProgress(progress.New(runID)),
	}
	if s.queue != nil {
		kernelOptions = append(kernelOptions, kernel.WithPublisher(event.NewPublisher[kernel.Trace](s.queue)))
	}
	if s.snapshots != nil {
		kernelOptions = append(kernelOptions, kernel.WithSnapshots(s.snapshots))
	}
	s.runtime = &Runtime{
		kernel:    kernel.New(kernelOptions...),
		config:    s.config,
		logger:    s.logger,
		queue:     s.queue,
		snapshots: s.snapshots,
	}
	return nil
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		logger := logrus.New()
		if s.config.Log.Level != "" {
			level, _ := logrus.ParseLevel(s.config.Log.Level)
			logger.SetLevel(level)
		}
		s.logger = logger
	}
	if s.output == nil {
		s.output = os.Stdout
	}
	if s.cpu == nil {
		s.cpu = vm.NewMachine(vm.WithOutput(s.output))
	}
	if s.queue == nil && s.config.Events.Buffer > 0 {
		queueConfig := mmemory.DefaultConfig()
		queueConfig.QueueBuffer = s.config.Events.Buffer
		s.queue = mmemory.NewQueue[event.Event[kernel.Trace]](queueConfig)
	}
	if s.snapshots == nil && s.config.Kernel.SnapshotEvery > 0 {
		if URL := s.config.Snapshot.URL; URL != "" {
			snapshots, err := fs.New[int, kernel.Snapshot](ctx, URL, kernel.SnapshotKey)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			s.snapshots = snapshots
		} else {
			s.snapshots = store.NewMemoryStore[int, kernel.Snapshot](kernel.SnapshotKey, s.config.Snapshot.Limit)
		}
	}
	if s.config.Tracing.Enabled {
		if err := tracing.Init("kernsim", Version, s.config.Tracing.Output); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}
	return nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Runtime returns the runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// New creates a service; the configuration is validated first.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	if err := ret.init(context.Background(), options); err != nil {
		return nil, err
	}
	return ret, nil
}
