// Package startstop implements the bootstrap program. It starts a line
// printer, feeds it the configured lines, waits for one completion notice per
// line, suspends the printer and terminates, leaving the schedule idle.
package startstop

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/runtime/process"
	"github.com/viant/kernsim/runtime/process/printline"
	"github.com/viant/kernsim/runtime/vm"
)

// DefaultPriority runs the bootstrap ahead of everything else.
const DefaultPriority = 0

const (
	sectionSpawn = iota
	sectionFeed
	sectionAwait
	sectionSuspend
	sectionTerminate
)

// Process is the StartStop program.
type Process struct {
	process.Base
	ids           process.IDSource
	lines         []string
	printPriority int
	logger        logrus.FieldLogger

	printerID int
	fed       int
	acked     int
}

// Option customises the bootstrap.
type Option func(p *Process)

// WithLines sets the line payloads handed to the printer.
func WithLines(lines ...string) Option {
	return func(p *Process) {
		p.lines = append([]string(nil), lines...)
	}
}

// WithPrintPriority sets the printer priority.
func WithPrintPriority(priority int) Option {
	return func(p *Process) {
		p.printPriority = priority
	}
}

// WithLogger sets the logger shared with the printer.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Process) {
		p.logger = logger
	}
}

// New creates the bootstrap; child ids come from ids.
func New(id int, ids process.IDSource, options ...Option) *Process {
	ret := &Process{
		Base:          process.NewBase(id, 0, DefaultPriority),
		ids:           ids,
		printPriority: printline.DefaultPriority,
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		ret.logger = logger
	}
	return ret
}

// PrinterID returns the id of the spawned printer, 0 before the spawn.
func (p *Process) PrinterID() int { return p.printerID }

// Acked returns the number of completion notices consumed.
func (p *Process) Acked() int { return p.acked }

func (p *Process) Step(ctx context.Context, cpu vm.Processor) (process.Outcome, error) {
	switch p.Section() {
	case sectionSpawn:
		if p.ids == nil {
			return process.None(), fmt.Errorf("startstop %d: no id source", p.ID())
		}
		p.printerID = p.ids.NextID()
		printer := printline.NewWithPriority(p.printerID, p.ID(), p.printPriority, printline.WithLogger(p.logger))
		p.Advance()
		return process.Spawn(printer), nil
	case sectionFeed:
		if p.fed < len(p.lines) {
			line := resource.NewMessage(resource.LineInMemory, p.lines[p.fed])
			p.fed++
			return process.Release(line), nil
		}
		if len(p.lines) == 0 {
			p.SetSection(sectionSuspend)
			return process.None(), nil
		}
		p.Advance()
		p.SetState(process.StateBlocked)
		return process.Request(resource.FromInterrupt), nil
	case sectionAwait:
		for p.HasResource(resource.FromInterrupt) {
			notice, err := p.TakeResource(resource.FromInterrupt)
			if err != nil {
				return process.None(), err
			}
			p.acked++
			p.logger.WithFields(logrus.Fields{"pid": p.ID(), "notice": notice.Payload, "acked": p.acked}).Debug("line completed")
		}
		if p.acked < len(p.lines) {
			return process.Request(resource.FromInterrupt), nil
		}
		p.Advance()
		p.SetState(process.StateReady)
		return process.None(), nil
	case sectionSuspend:
		p.SetSection(sectionTerminate)
		return process.Signal(p.printerID, process.StateReadySuspended), nil
	case sectionTerminate:
		return process.Terminate(p.ID()), nil
	}
	return process.None(), fmt.Errorf("startstop %d: invalid section %d", p.ID(), p.Section())
}

var _ process.Process = (*Process)(nil)
