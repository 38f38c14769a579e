package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
)

// Step is one scripted sample: RAMPercent observed At after the start.
type Step struct {
	At         time.Duration
	RAMPercent float64
}

// Outcome pairs a step with whatever the policy derived from it.
type Outcome struct {
	Step    Step
	Derived []events.Event
	Status  escalation.Status
}

// ParseSteps parses "offset=percent" pairs such as "0s=75" or "1m30s=42.5".
// Steps are returned sorted by offset.
func ParseSteps(args []string) ([]Step, error) {
	steps := make([]Step, 0, len(args))
	for _, arg := range args {
		at, pct, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' isn't a step", arg),
				"Write steps as offset=percent, like 0s=75 or 25s=80.")
		}
		d, err := time.ParseDuration(strings.TrimSpace(at))
		if err != nil || d < 0 {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid offset", at),
				"Try something like 0s, 10s, or 1m30s.")
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(pct), "%"), 64)
		if err != nil {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' isn't a percentage", pct),
				"Use a number between 0 and 100.")
		}
		steps = append(steps, Step{At: d, RAMPercent: v})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return steps, nil
}

// discard drops derived events; Simulate reads them from Evaluate.
type discard struct{}

func (discard) Publish(events.Event) error { return nil }

// Simulate replays steps through a fresh policy on a mock clock and returns
// what each step produced. Invalid samples are reported as errors.
func Simulate(cfg escalation.Config, steps []Step, log logger.Logger) ([]Outcome, error) {
	if log == nil {
		log = logger.Noop()
	}
	mock := clock.NewMock()
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.Set(start)

	policy, err := escalation.New(cfg, discard{},
		escalation.WithClock(mock),
		escalation.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	out := make([]Outcome, 0, len(steps))
	for _, step := range steps {
		mock.Set(start.Add(step.At))
		ev, err := events.NewSample("simulate", events.Usage{RAMPercent: step.RAMPercent}, mock.Now())
		if err != nil {
			return out, err
		}
		derived, err := policy.Evaluate(ev)
		if err != nil {
			return out, err
		}
		out = append(out, Outcome{Step: step, Derived: derived, Status: policy.Status()})
	}
	return out, nil
}
