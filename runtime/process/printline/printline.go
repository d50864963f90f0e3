// Package printline implements the line printer program: it waits for a
// LINE_IN_MEM message, acquires the CHANNEL, prints the line and hands the
// channel back together with a FROM_INTERRUPT completion notice.
package printline

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/runtime/process"
	"github.com/viant/kernsim/runtime/vm"
)

// DefaultPriority is the scheduling priority of a printer.
const DefaultPriority = 3

// VarOffset is added to the slot index of n/s opcodes.
const VarOffset = 10

// AckPrefix prefixes the payload of the completion notice.
const AckPrefix = "printed:"

const (
	sectionAwaitLine = iota
	sectionAwaitChannel
	sectionPrint
	sectionReleaseChannel
	sectionNotify
)

// Process is a PrintLine program instance.
type Process struct {
	process.Base
	logger logrus.FieldLogger
}

// Option customises a printer.
type Option func(p *Process)

// WithLogger sets the logger used for malformed payloads.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Process) {
		p.logger = logger
	}
}

// New creates a READY printer with DefaultPriority.
func New(id, parentID int, options ...Option) *Process {
	return NewWithPriority(id, parentID, DefaultPriority, options...)
}

// NewWithPriority creates a READY printer.
func NewWithPriority(id, parentID, priority int, options ...Option) *Process {
	ret := &Process{Base: process.NewBase(id, parentID, priority)}
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

func (p *Process) Step(ctx context.Context, cpu vm.Processor) (process.Outcome, error) {
	switch p.Section() {
	case sectionAwaitLine:
		return p.await(resource.LineInMemory), nil
	case sectionAwaitChannel:
		return p.await(resource.Channel), nil
	case sectionPrint:
		line, err := p.TakeResource(resource.LineInMemory)
		if err != nil {
			return process.None(), err
		}
		if err = p.print(cpu, line.Payload); err != nil {
			return process.None(), err
		}
		p.Advance()
		return process.None(), nil
	case sectionReleaseChannel:
		channel, err := p.TakeResource(resource.Channel)
		if err != nil {
			return process.None(), err
		}
		p.Advance()
		return process.Release(channel), nil
	case sectionNotify:
		p.SetSection(sectionAwaitLine)
		return process.Release(resource.NewMessage(resource.FromInterrupt, AckPrefix+strconv.Itoa(p.ID()))), nil
	}
	return process.None(), fmt.Errorf("printline %d: invalid section %d", p.ID(), p.Section())
}

// await moves to the next section once t is held, otherwise requests it.
func (p *Process) await(t resource.Type) process.Outcome {
	if !p.HasResource(t) {
		return process.Request(t)
	}
	p.Advance()
	p.SetState(process.StateReady)
	return process.None()
}

// print interprets a line payload: e<text> prints text, n<k> prints slot
// k+VarOffset as a number, s<k> prints the string packed from that slot.
// Malformed payloads are logged and skipped. Only output failures are
// returned.
func (p *Process) print(cpu vm.Processor, payload string) error {
	if payload == "" {
		p.invalid(payload)
		return nil
	}
	opcode, operand := payload[0], payload[1:]
	switch opcode {
	case 'e':
		return cpu.Print(operand)
	case 'n', 's':
		k, err := strconv.Atoi(operand)
		if err != nil || k < 0 {
			p.invalid(payload)
			return nil
		}
		slot := k + VarOffset
		if err = cpu.Load(slot); err != nil {
			p.logger.WithFields(logrus.Fields{"pid": p.ID(), "slot": slot}).WithError(err).Warn("invalid slot for printing")
			return nil
		}
		if opcode == 'n' {
			err = cpu.PrintNumber()
		} else {
			err = cpu.PrintString()
		}
		if err != nil {
			return err
		}
		return cpu.Store(slot)
	}
	p.invalid(payload)
	return nil
}

func (p *Process) invalid(payload string) {
	p.logger.WithFields(logrus.Fields{"pid": p.ID(), "payload": payload}).Warn("invalid type for printing")
}

var _ process.Process = (*Process)(nil)
