// Package process defines the contract every schedulable entity implements
// and the discriminated Outcome a step reports to the kernel.
package process

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/runtime/vm"
)

// ErrResourceNotHeld is returned by TakeResource when the process holds no
// instance of the requested type. It indicates a bug in the program logic.
var ErrResourceNotHeld = errors.New("process: resource not held")

// Process is a schedulable entity owned by the kernel.
type Process interface {
	ID() int
	ParentID() int
	Priority() int
	State() State
	// SetState is the only external mutation the kernel performs.
	SetState(state State)
	// AddResource transfers ownership of a granted instance to the process.
	AddResource(r *resource.Resource)
	// TakeResource removes and returns a held instance of t.
	TakeResource(t resource.Type) (*resource.Resource, error)
	HasResource(t resource.Type) bool
	// Resources lists held instances; the slice is a copy.
	Resources() []*resource.Resource
	// Step advances the process by one unit of work. A non-nil error is a
	// protocol violation and aborts the run.
	Step(ctx context.Context, cpu vm.Processor) (Outcome, error)
}

// IDSource hands out process identifiers.
type IDSource interface {
	NextID() int
}

// Sequence is an IDSource counting up from its start value.
type Sequence struct {
	last int64
}

// NewSequence returns a Sequence whose first id is start+1.
func NewSequence(start int) *Sequence {
	return &Sequence{last: int64(start)}
}

func (s *Sequence) NextID() int {
	return int(atomic.AddInt64(&s.last, 1))
}

// Base implements the bookkeeping part of Process. Programs embed it and add
// Step.
type Base struct {
	id        int
	parentID  int
	priority  int
	state     State
	section   int
	resources []*resource.Resource
}

// NewBase creates a READY base.
func NewBase(id, parentID, priority int) Base {
	return Base{id: id, parentID: parentID, priority: priority, state: StateReady}
}

func (b *Base) ID() int { return b.id }
func (b *Base) ParentID() int { return b.parentID }
func (b *Base) Priority() int { return b.priority }
func (b *Base) State() State { return b.state }
func (b *Base) SetState(s State) { b.state = s }
func (b *Base) Section() int { return b.section }
func (b *Base) SetSection(s int) { b.section = s }
func (b *Base) Advance() { b.section++ }

func (b *Base) AddResource(r *resource.Resource) {
	if r == nil {
		return
	}
	b.resources = append(b.resources, r)
}

func (b *Base) TakeResource(t resource.Type) (*resource.Resource, error) {
	for i, r := range b.resources {
		if r.Type == t {
			b.resources = append(b.resources[:i], b.resources[i+1:]...)
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: process %d has no %v", ErrResourceNotHeld, b.id, t)
}

func (b *Base) HasResource(t resource.Type) bool {
	for _, r := range b.resources {
		if r.Type == t {
			return true
		}
	}
	return false
}

// CountResource returns how many instances of t are held.
func (b *Base) CountResource(t resource.Type) int {
	count := 0
	for _, r := range b.resources {
		if r.Type == t {
			count++
		}
	}
	return count
}

func (b *Base) Resources() []*resource.Resource {
	return append([]*resource.Resource(nil), b.resources...)
}
