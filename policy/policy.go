package policy

import (
	"fmt"
	"strings"
)

// Grant modes recognised by the pool.
const (
	ModeGreedy = "greedy" // first requester in sweep order wins (default)
	ModeFIFO   = "fifo"   // oldest recorded waiter of a type wins
)

// Policy represents the grant arbitration settings of a pool.
//
//   - Mode selects greedy or fifo arbitration.
//   - Types limits fifo arbitration to the listed resource type names; empty
//     means every type.
//
// A nil *Policy means greedy and is the zero-cost default.
type Policy struct {
	Mode  string
	Types []string
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode  string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`
}

// FromConfig converts a stored Config to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:  c.Mode,
		Types: append([]string(nil), c.Types...),
	}
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:  p.Mode,
		Types: append([]string(nil), p.Types...),
	}
}

// Validate reports unsupported modes.
func (p *Policy) Validate() error {
	if p == nil {
		return nil
	}
	switch strings.ToLower(p.Mode) {
	case "", ModeGreedy, ModeFIFO:
		return nil
	}
	return fmt.Errorf("unsupported grant mode: %q", p.Mode)
}

// IsFIFO reports whether typeName is arbitrated in arrival order. Type names
// match case-insensitively.
func (p *Policy) IsFIFO(typeName string) bool {
	if p == nil || strings.ToLower(p.Mode) != ModeFIFO {
		return false
	}
	if len(p.Types) == 0 {
		return true
	}
	normalized := strings.ToLower(typeName)
	for _, candidate := range p.Types {
		if normalized == strings.ToLower(candidate) {
			return true
		}
	}
	return false
}
