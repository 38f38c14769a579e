// Package responder holds what the escalation consumers share: how they
// attach to the bus and how they describe an event to a human.
package responder

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/ramwatch/internal/bus"
	"github.com/rileyhilliard/ramwatch/internal/events"
)

// Subscriber is the part of the bus responders attach to.
type Subscriber interface {
	Subscribe(t events.Type, h bus.Handler, opts ...bus.SubscribeOption)
}

// Attach subscribes h to each of types under name. Responders never see
// SAMPLE events.
func Attach(s Subscriber, name string, h bus.Handler, types ...events.Type) {
	for _, t := range types {
		if !t.IsEscalation() {
			continue
		}
		s.Subscribe(t, h, bus.WithName(name))
	}
}

// FormatProcesses renders the top processes as "name (12.3%), ...".
// Returns "" when there are none.
func FormatProcesses(procs []events.Process) string {
	parts := make([]string, 0, len(procs))
	for _, p := range procs {
		parts = append(parts, fmt.Sprintf("%s (%.1f%%)", p.Name, p.Percent))
	}
	return strings.Join(parts, ", ")
}

// ProcessLines renders the top processes one per line, each prefixed with
// indent. Used in banners and email bodies.
func ProcessLines(procs []events.Process, indent string) string {
	var b strings.Builder
	for i, p := range procs {
		fmt.Fprintf(&b, "%s%d. %s: %.1f%%\n", indent, i+1, p.Name, p.Percent)
	}
	return b.String()
}
