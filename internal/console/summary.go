// Package console renders kernel state for terminals: a static summary for
// batch runs and an interactive bubbletea model that steps the kernel one
// tick per key press.
package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/viant/kernsim/progress"
	"github.com/viant/kernsim/service/kernel"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	stateColors = map[string]lipgloss.Color{
		"READY":             lipgloss.Color("#6BCB77"),
		"BLOCKED":           lipgloss.Color("#FF6B6B"),
		"READY_SUSPENDED":   lipgloss.Color("#AAAAAA"),
		"BLOCKED_SUSPENDED": lipgloss.Color("#AAAAAA"),
	}
)

// Processes renders the process table of a snapshot.
func Processes(snapshot *kernel.Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-5s %-6s %-4s %-18s %s", "PID", "PARENT", "PRIO", "STATE", "RESOURCES")))
	for _, p := range snapshot.Processes {
		state := fmt.Sprintf("%-18s", p.State)
		if color, ok := stateColors[p.State]; ok {
			state = lipgloss.NewStyle().Foreground(color).Render(state)
		}
		fmt.Fprintf(&b, "\n%-5d %-6d %-4d %s %s", p.ID, p.ParentID, p.Priority, state, strings.Join(p.Resources, ","))
	}
	if len(snapshot.Processes) == 0 {
		b.WriteString("\n" + labelStyle.Render("(no processes)"))
	}
	return b.String()
}

// Pool renders free instance counts sorted by type name.
func Pool(snapshot *kernel.Snapshot) string {
	names := make([]string, 0, len(snapshot.Free))
	for name := range snapshot.Free {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(headerStyle.Render("FREE"))
	for _, name := range names {
		fmt.Fprintf(&b, "\n%-16s %d", name, snapshot.Free[name])
	}
	if len(names) == 0 {
		b.WriteString("\n" + labelStyle.Render("(empty)"))
	}
	return b.String()
}

// Counters renders run counters on one line.
func Counters(p progress.Progress) string {
	return labelStyle.Render(fmt.Sprintf("ticks %d · steps %d · grants %d · misses %d · releases %d · spawns %d · removals %d · signals %d",
		p.Ticks, p.Steps, p.Grants, p.Misses, p.Releases, p.Spawns, p.Removals, p.Signals))
}

// Summary renders a boxed overview of a run.
func Summary(snapshot *kernel.Snapshot, p progress.Progress) string {
	title := headerStyle.Render(fmt.Sprintf("KERNSIM · %s · tick %d", snapshot.RunID, snapshot.Tick))
	body := lipgloss.JoinHorizontal(lipgloss.Top, Processes(snapshot), "   ", Pool(snapshot))
	return boxStyle.Render(strings.Join([]string{title, "", body, "", Counters(p)}, "\n"))
}
