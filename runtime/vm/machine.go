package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultSlots is the number of variable slots a Machine exposes by default.
const DefaultSlots = 256

// ErrSlotOutOfRange is returned for slot indexes outside the variable store.
var ErrSlotOutOfRange = errors.New("vm: slot out of range")

// Machine is a minimal in-memory Processor: a flat array of 32-bit variable
// slots, one working register and an output writer.
//
// Strings are packed four ASCII bytes per slot, big-endian, terminated by a
// zero byte or a zero slot.
type Machine struct {
	vars     []uint32
	register uint32
	loaded   int
	out      io.Writer
}

// Option customises a Machine.
type Option func(m *Machine)

// WithOutput redirects print operations.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.out = w
	}
}

// WithSlots sets the size of the variable store.
func WithSlots(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.vars = make([]uint32, n)
		}
	}
}

// NewMachine creates a Machine writing to stdout unless overridden.
func NewMachine(options ...Option) *Machine {
	m := &Machine{vars: make([]uint32, DefaultSlots), out: os.Stdout}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Machine) inRange(slot int) bool {
	return slot >= 0 && slot < len(m.vars)
}

// Var returns the slot value, or 0 when slot is out of range.
func (m *Machine) Var(slot int) uint32 {
	if !m.inRange(slot) {
		return 0
	}
	return m.vars[slot]
}

// SetVar writes the slot; out of range writes are ignored.
func (m *Machine) SetVar(slot int, value uint32) {
	if m.inRange(slot) {
		m.vars[slot] = value
	}
}

// SetString packs text into consecutive slots starting at slot.
func (m *Machine) SetString(slot int, text string) error {
	data := []byte(text)
	words := (len(data) + 4) / 4
	if !m.inRange(slot) || !m.inRange(slot+words-1) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	for i := 0; i < words; i++ {
		var word uint32
		for j := 0; j < 4; j++ {
			word <<= 8
			if idx := i*4 + j; idx < len(data) {
				word |= uint32(data[idx])
			}
		}
		m.vars[slot+i] = word
	}
	return nil
}

func (m *Machine) Load(slot int) error {
	if !m.inRange(slot) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	m.register = m.vars[slot]
	m.loaded = slot
	return nil
}

func (m *Machine) Store(slot int) error {
	if !m.inRange(slot) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	m.vars[slot] = m.register
	return nil
}

func (m *Machine) PrintNumber() error {
	_, err := fmt.Fprintln(m.out, m.register)
	return err
}

func (m *Machine) PrintString() error {
	var b strings.Builder
outer:
	for slot := m.loaded; m.inRange(slot); slot++ {
		word := m.vars[slot]
		if word == 0 {
			break
		}
		for shift := 24; shift >= 0; shift -= 8 {
			c := byte(word >> uint(shift))
			if c == 0 {
				break outer
			}
			b.WriteByte(c)
		}
	}
	_, err := fmt.Fprintln(m.out, b.String())
	return err
}

func (m *Machine) Print(text string) error {
	_, err := fmt.Fprintln(m.out, text)
	return err
}

var _ Processor = (*Machine)(nil)
