// Package pool owns every resource instance that is not held by a process.
// All mutation happens inside the single-threaded kernel sweep, so the pool
// carries no lock.
package pool

import (
	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/policy"
)

// Pool maps each resource type to its free instances.
type Pool struct {
	free    map[resource.Type][]*resource.Resource
	waiters map[resource.Type][]int
	policy  *policy.Policy
}

// Option customises a Pool.
type Option func(p *Pool)

// WithPolicy sets the grant arbitration policy.
func WithPolicy(aPolicy *policy.Policy) Option {
	return func(p *Pool) {
		p.policy = aPolicy
	}
}

// New creates an empty pool.
func New(options ...Option) *Pool {
	ret := &Pool{
		free:    make(map[resource.Type][]*resource.Resource),
		waiters: make(map[resource.Type][]int),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Seed adds count payload-less instances per type.
func (p *Pool) Seed(inventory map[resource.Type]int) {
	for _, t := range resource.Types() {
		for i := 0; i < inventory[t]; i++ {
			p.Add(resource.New(t))
		}
	}
}

// Take removes and returns a free instance of t for requesterID. A miss is
// normal backpressure: the requester retries on a later tick.
func (p *Pool) Take(t resource.Type, requesterID int) (*resource.Resource, bool) {
	fifo := p.policy.IsFIFO(t.String())
	if fifo && !p.admit(t, requesterID) {
		return nil, false
	}
	instances := p.free[t]
	if len(instances) == 0 {
		if fifo {
			p.waiters[t] = append(p.waiters[t], requesterID)
		}
		return nil, false
	}
	ret := instances[0]
	instances[0] = nil
	p.free[t] = instances[1:]
	if fifo {
		p.dropWaiter(t, requesterID)
	}
	return ret, true
}

// admit reports whether requesterID may take t under fifo arbitration: no one
// waits, or requesterID is the oldest waiter.
func (p *Pool) admit(t resource.Type, requesterID int) bool {
	queue := p.waiters[t]
	if len(queue) == 0 || queue[0] == requesterID {
		return true
	}
	for _, id := range queue {
		if id == requesterID {
			return false
		}
	}
	p.waiters[t] = append(queue, requesterID)
	return false
}

func (p *Pool) dropWaiter(t resource.Type, requesterID int) {
	queue := p.waiters[t]
	for i, id := range queue {
		if id == requesterID {
			p.waiters[t] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// Forget drops requesterID from every waiter queue, e.g. once it is removed
// from the schedule.
func (p *Pool) Forget(requesterID int) {
	for t := range p.waiters {
		p.dropWaiter(t, requesterID)
	}
}

// Add returns r to the free set. It does not wake anyone: blocked processes
// are polled again on the next sweep.
func (p *Pool) Add(r *resource.Resource) {
	if r == nil {
		return
	}
	p.free[r.Type] = append(p.free[r.Type], r)
}

// Free returns the number of unallocated instances of t.
func (p *Pool) Free(t resource.Type) int {
	return len(p.free[t])
}

// Waiters returns the recorded fifo waiters for t.
func (p *Pool) Waiters(t resource.Type) []int {
	return append([]int(nil), p.waiters[t]...)
}

// Inventory returns free instance counts for every non-empty type.
func (p *Pool) Inventory() map[resource.Type]int {
	ret := make(map[resource.Type]int)
	for t, instances := range p.free {
		if len(instances) > 0 {
			ret[t] = len(instances)
		}
	}
	return ret
}
