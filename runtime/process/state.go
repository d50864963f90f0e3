package process

import (
	"fmt"
	"strings"
)

// State represents the scheduling state of a process
type State int

const (
	StateReady State = iota + 1
	StateRunning
	StateBlocked
	StateReadySuspended
	StateBlockedSuspended
)

var stateNames = map[State]string{
	StateReady:            "READY",
	StateRunning:          "RUNNING",
	StateBlocked:          "BLOCKED",
	StateReadySuspended:   "READY_SUSPENDED",
	StateBlockedSuspended: "BLOCKED_SUSPENDED",
}

func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("INVALID(%d)", int(s))
}

// IsSuspended reports whether the kernel skips the process during a sweep.
func (s State) IsSuspended() bool {
	return s == StateReadySuspended || s == StateBlockedSuspended
}

// ParseState resolves a state name (case-insensitive).
func ParseState(name string) (State, error) {
	candidate := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range stateNames {
		if n == candidate {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown process state: %q", name)
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(data []byte) error {
	parsed, err := ParseState(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
