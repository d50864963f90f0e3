package resource

import (
	"fmt"
	"strings"
)

// Type identifies a system resource kind. The set is closed: every process
// program and the pool match on the same constants.
type Type int

const (
	SupervisorMemory Type = iota + 1
	UserMemory
	Disk
	Channel
	TaskInSupervisor
	FromUserInterrupt
	FilePack
	UserInput
	LineInMemory
	FromFileWork
	Interrupt
	FromInterrupt
	TaskHeadSupervisor
	TaskProgramSupervisor
	TaskInUser
	TaskDataSupervisor
)

var typeNames = map[Type]string{
	SupervisorMemory:      "S_MEM",
	UserMemory:            "U_MEM",
	Disk:                  "DISK",
	Channel:               "CHANNEL",
	TaskInSupervisor:      "TASK_IN_SUPER",
	FromUserInterrupt:     "FROM_USER_INT",
	FilePack:              "FILE_PACK",
	UserInput:             "USER_INPUT",
	LineInMemory:          "LINE_IN_MEM",
	FromFileWork:          "FROM_FILEWORK",
	Interrupt:             "INTERRUPT",
	FromInterrupt:         "FROM_INTERRUPT",
	TaskHeadSupervisor:    "THEAD_SUPER",
	TaskProgramSupervisor: "TPROG_SUPER",
	TaskInUser:            "TASK_IN_USER",
	TaskDataSupervisor:    "TDAT_SUPER",
}

// Types returns every known resource type in declaration order.
func Types() []Type {
	ret := make([]Type, 0, len(typeNames))
	for t := SupervisorMemory; t <= TaskDataSupervisor; t++ {
		ret = append(ret, t)
	}
	return ret
}

// Valid reports whether t belongs to the enumeration.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// String returns the canonical name, or UNKNOWN(n) for values outside the set.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// ParseType resolves a canonical name (case-insensitive) to its Type.
func ParseType(name string) (Type, error) {
	candidate := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == candidate {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown resource type: %q", name)
}

// MarshalText encodes the type by name so configs and snapshots stay readable.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name produced by MarshalText.
func (t *Type) UnmarshalText(data []byte) error {
	parsed, err := ParseType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
