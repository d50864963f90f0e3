// Package resource defines the system resource catalogue shared by the pool,
// the kernel and every process program.
package resource

// Resource is a single instance of a typed system resource. Message-passing
// kinds carry a short payload, e.g. the line a printer should emit.
//
// An instance always has exactly one owner: the pool or one process. Owners
// hand it over by pointer and drop their reference.
type Resource struct {
	Type    Type   `json:"type" yaml:"type"`
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// New creates a resource without payload.
func New(t Type) *Resource {
	return &Resource{Type: t}
}

// NewMessage creates a resource carrying payload.
func NewMessage(t Type, payload string) *Resource {
	return &Resource{Type: t, Payload: payload}
}
