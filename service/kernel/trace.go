package kernel

// Trace event types published by the kernel.
const (
	TraceGrant     = "grant"
	TraceMiss      = "miss"
	TraceRelease   = "release"
	TraceSpawn     = "spawn"
	TraceRemove    = "remove"
	TraceSignal    = "signal"
	TraceDrop      = "drop"
	TraceViolation = "violation"
)

// Trace is the payload of a kernel event.
type Trace struct {
	Kind      string `json:"kind"`
	ProcessID int    `json:"processID"`
	Resource  string `json:"resource,omitempty"`
	Payload   string `json:"payload,omitempty"`
	TargetID  int    `json:"targetID,omitempty"`
	State     string `json:"state,omitempty"`
	Detail    string `json:"detail,omitempty"`
}
