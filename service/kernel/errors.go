package kernel

import (
	"errors"
	"fmt"

	"github.com/viant/kernsim/runtime/process"
)

// ErrProtocolViolation marks a process that broke the step contract. The run
// cannot continue safely once it is returned.
var ErrProtocolViolation = errors.New("kernel: protocol violation")

// ProtocolError describes a protocol violation.
type ProtocolError struct {
	Tick      int
	ProcessID int
	State     process.State
	Kind      process.Kind
	Reason    string
	Err       error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("kernel: protocol violation at tick %d by process %d (%v, %v): %s",
		e.Tick, e.ProcessID, e.State, e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrProtocolViolation.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
