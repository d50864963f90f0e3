package kernsim

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/runtime/vm"
	"github.com/viant/kernsim/service/dao"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/kernel"
	"github.com/viant/kernsim/service/messaging"
	"github.com/viant/kernsim/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises a Service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithLogger sets the logger used by the kernel and the programs. The
// log.level setting is not applied to a supplied logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithOutput redirects printer output of the default machine.
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		s.output = w
	}
}

// WithProcessor replaces the default virtual machine.
func WithProcessor(cpu vm.Processor) Option {
	return func(s *Service) {
		s.cpu = cpu
	}
}

// WithSnapshotDAO sets the snapshot journal store.
func WithSnapshotDAO(snapshots dao.Service[int, kernel.Snapshot]) Option {
	return func(s *Service) {
		s.snapshots = snapshots
	}
}

// WithEventQueue sets the queue kernel events are published to.
func WithEventQueue(queue messaging.Queue[event.Event[kernel.Trace]]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
