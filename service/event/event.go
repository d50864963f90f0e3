// Package event wraps kernel observations in a typed envelope and publishes
// them through a messaging.Queue.
package event

import (
	"time"

	"github.com/viant/kernsim/internal/clock"
)

// Context identifies where an event was emitted.
type Context struct {
	RunID     string `json:"runID"`
	Tick      int    `json:"tick"`
	ProcessID int    `json:"processID"`
	EventType string `json:"eventType"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}
