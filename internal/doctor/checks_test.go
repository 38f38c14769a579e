package doctor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	assert.Equal(t, "pass", StatusPass.String())
	assert.Equal(t, "warn", StatusWarn.String())
	assert.Equal(t, "fail", StatusFail.String())
	assert.Equal(t, "unknown", CheckStatus(99).String())
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	result   CheckResult
	fixErr   error
	runs     atomic.Int32
}

func (m *mockCheck) Name() string     { return m.name }
func (m *mockCheck) Category() string { return m.category }
func (m *mockCheck) Fix() error       { return m.fixErr }
func (m *mockCheck) Run(context.Context) CheckResult {
	m.runs.Add(1)
	return m.result
}

func mockChecks() []Check {
	return []Check{
		&mockCheck{name: "a", category: "CONFIG", result: CheckResult{Status: StatusPass}},
		&mockCheck{name: "b", category: "EMAIL", result: CheckResult{Status: StatusWarn, Message: "meh"}},
		&mockCheck{name: "c", category: "CONFIG", result: CheckResult{Name: "custom", Status: StatusFail}},
	}
}

func TestRunAll_FillsNameAndCategory(t *testing.T) {
	results := RunAll(context.Background(), mockChecks())

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "CONFIG", results[0].Category)
	assert.Equal(t, "EMAIL", results[1].Category)
	assert.Equal(t, "custom", results[2].Name, "explicit names are kept")
}

func TestRunAllParallel_PreservesOrder(t *testing.T) {
	checks := mockChecks()
	results := RunAllParallel(context.Background(), checks)

	require.Len(t, results, 3)
	assert.Equal(t, []CheckStatus{StatusPass, StatusWarn, StatusFail},
		[]CheckStatus{results[0].Status, results[1].Status, results[2].Status})
	for _, c := range checks {
		assert.Equal(t, int32(1), c.(*mockCheck).runs.Load())
	}
}

func TestGroupByCategory(t *testing.T) {
	order, grouped := GroupByCategory(RunAll(context.Background(), mockChecks()))

	assert.Equal(t, []string{"CONFIG", "EMAIL"}, order)
	assert.Len(t, grouped["CONFIG"], 2)
	assert.Len(t, grouped["EMAIL"], 1)
}

func TestCountsAndFlags(t *testing.T) {
	results := []CheckResult{
		{Status: StatusPass, Fixable: true},
		{Status: StatusFail, Fixable: true},
		{Status: StatusFail},
		{Status: StatusWarn, Fixable: true},
	}

	counts := CountByStatus(results)
	assert.Equal(t, 1, counts[StatusPass])
	assert.Equal(t, 2, counts[StatusFail])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 2, FixableCount(results))
	assert.True(t, HasFailures(results))
	assert.True(t, HasIssues(results))

	warnOnly := []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}
	assert.False(t, HasFailures(warnOnly))
	assert.True(t, HasIssues(warnOnly))
	assert.False(t, HasIssues([]CheckResult{{Status: StatusPass}}))
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{"all good", []CheckResult{{Status: StatusPass}}, "Everything looks good"},
		{"one issue", []CheckResult{{Status: StatusFail}}, "1 issue found"},
		{"multiple issues", []CheckResult{{Status: StatusFail}, {Status: StatusWarn}}, "2 issues found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.results))
		})
	}
}
