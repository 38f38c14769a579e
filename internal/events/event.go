// Package events defines the immutable records that flow over the bus.
//
// An Event carries one of two payload kinds, selected by its Type:
//
//	SAMPLE                                   -> Sample
//	RAM_HIGH, SEND_EMAIL, RESTART, RAM_NORMAL -> Escalation
//
// Constructors validate the payload and copy every slice, and accessors
// copy on the way out, so handlers running concurrently on the same event
// can never observe different contents.
package events

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/ramwatch/internal/errors"
)

// MaxTopProcesses bounds the length of Usage.TopProcesses.
const MaxTopProcesses = 10

// Process is one entry in the top memory consumers list.
type Process struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// Usage is the memory reading common to every payload kind.
type Usage struct {
	RAMPercent   float64   `json:"ram_percent"`
	TopProcesses []Process `json:"top_processes"`
}

// Sample is the payload of a SAMPLE event.
type Sample struct {
	Usage
}

// Escalation is the payload of the events derived by the escalation policy.
type Escalation struct {
	Usage

	// Since is when the current breach streak began.
	Since time.Time `json:"since"`

	// Elapsed is how long the streak had lasted when the event was derived.
	Elapsed time.Duration `json:"elapsed"`
}

// Event is an immutable record of something that happened.
// The zero value is not a valid event.
type Event struct {
	id        uuid.UUID
	typ       Type
	sender    string
	timestamp time.Time
	usage     Usage
	since     time.Time
	elapsed   time.Duration
}

// NewSample builds a SAMPLE event.
func NewSample(sender string, usage Usage, at time.Time) (Event, error) {
	u, err := normalizeUsage(usage)
	if err != nil {
		return Event{}, err
	}
	return Event{
		id:        uuid.New(),
		typ:       TypeSample,
		sender:    sender,
		timestamp: at,
		usage:     u,
	}, nil
}

// NewEscalation builds one of the policy-derived events.
func NewEscalation(typ Type, sender string, esc Escalation, at time.Time) (Event, error) {
	if !typ.IsEscalation() {
		return Event{}, errors.Newf(errors.ErrEvent, "event type %q does not carry an escalation payload", typ)
	}
	if esc.Elapsed < 0 {
		return Event{}, errors.Newf(errors.ErrEvent, "escalation elapsed time %s is negative", esc.Elapsed)
	}
	u, err := normalizeUsage(esc.Usage)
	if err != nil {
		return Event{}, err
	}
	return Event{
		id:        uuid.New(),
		typ:       typ,
		sender:    sender,
		timestamp: at,
		usage:     u,
		since:     esc.Since,
		elapsed:   esc.Elapsed,
	}, nil
}

// ValidateUsage checks the ranges of a reading without building an event.
func ValidateUsage(u Usage) error {
	_, err := normalizeUsage(u)
	return err
}

func normalizeUsage(u Usage) (Usage, error) {
	if !validPercent(u.RAMPercent) {
		return Usage{}, errors.Newf(errors.ErrEvent, "ram percent %v is outside [0,100]", u.RAMPercent)
	}
	if len(u.TopProcesses) > MaxTopProcesses {
		return Usage{}, errors.Newf(errors.ErrEvent, "%d top processes exceeds the limit of %d", len(u.TopProcesses), MaxTopProcesses)
	}

	procs := make([]Process, len(u.TopProcesses))
	copy(procs, u.TopProcesses)
	for _, p := range procs {
		if p.Name == "" {
			return Usage{}, errors.Newf(errors.ErrEvent, "top process entry has no name")
		}
		if !validPercent(p.Percent) {
			return Usage{}, errors.Newf(errors.ErrEvent, "process %q: percent %v is outside [0,100]", p.Name, p.Percent)
		}
	}
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].Percent > procs[j].Percent
	})

	return Usage{RAMPercent: u.RAMPercent, TopProcesses: procs}, nil
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

// ID uniquely identifies the event.
func (e Event) ID() uuid.UUID { return e.id }

// Type returns the routing tag.
func (e Event) Type() Type { return e.typ }

// Sender names the component that produced the event.
func (e Event) Sender() string { return e.sender }

// Timestamp is when the event was created.
func (e Event) Timestamp() time.Time { return e.timestamp }

// IsZero reports whether e was built without a constructor.
func (e Event) IsZero() bool { return e.typ == "" }

// Usage returns a copy of the memory reading carried by any payload kind.
func (e Event) Usage() Usage {
	return Usage{
		RAMPercent:   e.usage.RAMPercent,
		TopProcesses: e.TopProcesses(),
	}
}

// RAMPercent is shorthand for Usage().RAMPercent.
func (e Event) RAMPercent() float64 { return e.usage.RAMPercent }

// TopProcesses returns a copy of the top consumers, highest first.
func (e Event) TopProcesses() []Process {
	if e.usage.TopProcesses == nil {
		return nil
	}
	out := make([]Process, len(e.usage.TopProcesses))
	copy(out, e.usage.TopProcesses)
	return out
}

// Sample returns the SAMPLE payload. ok is false for any other type.
func (e Event) Sample() (Sample, bool) {
	if e.typ != TypeSample {
		return Sample{}, false
	}
	return Sample{Usage: e.Usage()}, true
}

// Escalation returns the derived-event payload. ok is false for SAMPLE
// and zero events.
func (e Event) Escalation() (Escalation, bool) {
	if !e.typ.IsEscalation() {
		return Escalation{}, false
	}
	return Escalation{
		Usage:   e.Usage(),
		Since:   e.since,
		Elapsed: e.elapsed,
	}, true
}
