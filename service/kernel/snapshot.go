package kernel

import (
	"sort"

	"github.com/viant/kernsim/runtime/process"
)

// ProcessView is a read-only picture of one process.
type ProcessView struct {
	ID        int      `json:"id" yaml:"id"`
	ParentID  int      `json:"parentID" yaml:"parentID"`
	Priority  int      `json:"priority" yaml:"priority"`
	State     string   `json:"state" yaml:"state"`
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Snapshot captures the schedule and the free pool after a tick. Snapshots
// are written for inspection only; the kernel never reads them back.
type Snapshot struct {
	RunID     string         `json:"runID" yaml:"runID"`
	Tick      int            `json:"tick" yaml:"tick"`
	Processes []ProcessView  `json:"processes" yaml:"processes"`
	Free      map[string]int `json:"free" yaml:"free"`
}

// SnapshotKey selects the dao key of a snapshot.
func SnapshotKey(s *Snapshot) int { return s.Tick }

func viewOf(p process.Process) ProcessView {
	ret := ProcessView{
		ID:       p.ID(),
		ParentID: p.ParentID(),
		Priority: p.Priority(),
		State:    p.State().String(),
	}
	for _, r := range p.Resources() {
		ret.Resources = append(ret.Resources, r.Type.String())
	}
	sort.Strings(ret.Resources)
	return ret
}

// Snapshot returns the current state of the kernel.
func (k *Kernel) Snapshot() *Snapshot {
	ret := &Snapshot{
		RunID: k.runID,
		Tick:  k.tick,
		Free:  make(map[string]int),
	}
	for _, p := range k.processes {
		ret.Processes = append(ret.Processes, viewOf(p))
	}
	for t, count := range k.pool.Inventory() {
		ret.Free[t.String()] = count
	}
	return ret
}
