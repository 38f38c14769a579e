package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
)

func derivedTypes(outcomes []Outcome) [][]events.Type {
	out := make([][]events.Type, len(outcomes))
	for i, o := range outcomes {
		for _, ev := range o.Derived {
			out[i] = append(out[i], ev.Type())
		}
	}
	return out
}

func TestParseSteps(t *testing.T) {
	steps, err := ParseSteps([]string{"20s=80", "0s=75%", "1m30s = 42.5"})

	require.NoError(t, err)
	assert.Equal(t, []Step{
		{At: 0, RAMPercent: 75},
		{At: 20 * time.Second, RAMPercent: 80},
		{At: 90 * time.Second, RAMPercent: 42.5},
	}, steps)
}

func TestParseSteps_Errors(t *testing.T) {
	for _, arg := range []string{"75", "soon=75", "-5s=75", "10s=lots"} {
		t.Run(arg, func(t *testing.T) {
			_, err := ParseSteps([]string{arg})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestSimulate_FullEscalation(t *testing.T) {
	steps, err := ParseSteps([]string{"0s=75", "10s=75", "20s=80", "30s=85", "40s=30", "50s=30"})
	require.NoError(t, err)

	outcomes, err := Simulate(escalation.DefaultConfig(), steps, nil)

	require.NoError(t, err)
	assert.Equal(t, [][]events.Type{
		{events.TypeRAMHigh},
		nil,
		{events.TypeSendEmail},
		{events.TypeRestart},
		{events.TypeRAMNormal},
		nil,
	}, derivedTypes(outcomes))
	assert.True(t, outcomes[3].Status.RestartTriggered)
	assert.False(t, outcomes[5].Status.High)
}

func TestSimulate_LateSample(t *testing.T) {
	steps, err := ParseSteps([]string{"0s=60", "35s=60"})
	require.NoError(t, err)

	outcomes, err := Simulate(escalation.DefaultConfig(), steps, nil)

	require.NoError(t, err)
	assert.Equal(t, [][]events.Type{
		{events.TypeRAMHigh},
		{events.TypeSendEmail, events.TypeRestart},
	}, derivedTypes(outcomes))
}

func TestSimulate_InvalidSample(t *testing.T) {
	outcomes, err := Simulate(escalation.DefaultConfig(), []Step{{RAMPercent: 40}, {At: time.Second, RAMPercent: 140}}, nil)

	require.Error(t, err)
	assert.Len(t, outcomes, 1)
}

func TestSimulate_InvalidConfig(t *testing.T) {
	_, err := Simulate(escalation.Config{HighThreshold: 0}, nil, nil)
	require.Error(t, err)
}
