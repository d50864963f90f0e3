package process

import (
	"fmt"

	"github.com/viant/kernsim/model/resource"
)

// Kind discriminates the result of a single Step.
type Kind int

const (
	// KindNone is pure internal progress; the kernel steps the process once more.
	KindNone Kind = iota
	// KindRequest asks for one instance of a resource type.
	KindRequest
	// KindRelease returns a held (or newly created) instance to the pool.
	KindRelease
	// KindSpawn hands a fully constructed child to the kernel.
	KindSpawn
	// KindTerminate removes the reporting process at the end of the tick.
	KindTerminate
	// KindSignal sets another process' state at the next application point.
	KindSignal
)

var kindNames = [...]string{"none", "request", "release", "spawn", "terminate", "signal"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the single result of Process.Step. It carries at most one
// payload matching its Kind. Fields are unexported: the constructors below are
// the only way to build one, so a step cannot report two requests at once.
type Outcome struct {
	kind     Kind
	resType  resource.Type
	resource *resource.Resource
	child    Process
	targetID int
	state    State
}

// None reports internal progress without a request.
func None() Outcome {
	return Outcome{kind: KindNone}
}

// Request asks the kernel for one instance of t.
func Request(t resource.Type) Outcome {
	return Outcome{kind: KindRequest, resType: t}
}

// Release hands r over to the pool. The caller must drop its reference.
func Release(r *resource.Resource) Outcome {
	return Outcome{kind: KindRelease, resource: r}
}

// Spawn schedules child from the next tick on.
func Spawn(child Process) Outcome {
	return Outcome{kind: KindSpawn, child: child}
}

// Terminate removes process id (the reporter itself) at the end of the tick.
func Terminate(id int) Outcome {
	return Outcome{kind: KindTerminate, targetID: id}
}

// Signal sets process targetID to state.
func Signal(targetID int, state State) Outcome {
	return Outcome{kind: KindSignal, targetID: targetID, state: state}
}

func (o Outcome) Kind() Kind { return o.kind }

// ResourceType returns the requested type (KindRequest).
func (o Outcome) ResourceType() resource.Type { return o.resType }

// Resource returns the released instance (KindRelease).
func (o Outcome) Resource() *resource.Resource { return o.resource }

// Child returns the spawned process (KindSpawn).
func (o Outcome) Child() Process { return o.child }

// TargetID returns the terminated or signalled process id.
func (o Outcome) TargetID() int { return o.targetID }

// TargetState returns the signalled state (KindSignal).
func (o Outcome) TargetState() State { return o.state }

// Validate checks that the payload matches the kind.
func (o Outcome) Validate() error {
	switch o.kind {
	case KindNone:
		return nil
	case KindRequest:
		if !o.resType.Valid() {
			return fmt.Errorf("request for unknown resource type %v", o.resType)
		}
	case KindRelease:
		if o.resource == nil {
			return fmt.Errorf("release without resource")
		}
		if !o.resource.Type.Valid() {
			return fmt.Errorf("release of unknown resource type %v", o.resource.Type)
		}
	case KindSpawn:
		if o.child == nil {
			return fmt.Errorf("spawn without child process")
		}
	case KindTerminate:
	case KindSignal:
		if !o.state.Valid() {
			return fmt.Errorf("signal with invalid state %v", o.state)
		}
	default:
		return fmt.Errorf("unsupported outcome %v", o.kind)
	}
	return nil
}

func (o Outcome) String() string {
	switch o.kind {
	case KindRequest:
		return fmt.Sprintf("request(%v)", o.resType)
	case KindRelease:
		if o.resource == nil {
			return "release(nil)"
		}
		return fmt.Sprintf("release(%v)", o.resource.Type)
	case KindSpawn:
		if o.child == nil {
			return "spawn(nil)"
		}
		return fmt.Sprintf("spawn(%d)", o.child.ID())
	case KindTerminate:
		return fmt.Sprintf("terminate(%d)", o.targetID)
	case KindSignal:
		return fmt.Sprintf("signal(%d->%v)", o.targetID, o.state)
	}
	return o.kind.String()
}
