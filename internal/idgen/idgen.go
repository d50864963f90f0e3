package idgen

import "github.com/google/uuid"

// NewFunc generates a globally unique identifier. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// NewRunID returns an identifier for one kernel run.
func NewRunID() string { return "run-" + NewFunc() }
