// Package doctor runs the preflight checks behind 'ramwatch doctor': config,
// memory source, SMTP, restart command, CSV log, dashboard and instance lock.
package doctor

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
)

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Fixable    bool        `json:"fixable,omitempty"` // Whether --fix can address this
}

// Check is one diagnostic.
type Check interface {
	Name() string

	// Category groups related checks in the report, e.g. "CONFIG" or "EMAIL".
	Category() string

	Run(ctx context.Context) CheckResult

	// Fix attempts to repair the issue. Checks that can't return nil.
	Fix() error
}

// RunAll executes checks one after another.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		results[i] = run(ctx, check)
	}
	return results
}

// RunAllParallel executes checks concurrently. Results keep the input order.
func RunAllParallel(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg conc.WaitGroup
	for i, check := range checks {
		i, check := i, check
		wg.Go(func() { results[i] = run(ctx, check) })
	}
	wg.Wait()
	return results
}

func run(ctx context.Context, c Check) CheckResult {
	r := c.Run(ctx)
	if r.Name == "" {
		r.Name = c.Name()
	}
	if r.Category == "" {
		r.Category = c.Category()
	}
	return r
}

// GroupByCategory organizes results by category, preserving first-seen
// category order.
func GroupByCategory(results []CheckResult) (order []string, grouped map[string][]CheckResult) {
	grouped = make(map[string][]CheckResult)
	for _, r := range results {
		if _, ok := grouped[r.Category]; !ok {
			order = append(order, r.Category)
		}
		grouped[r.Category] = append(grouped[r.Category], r)
	}
	return order, grouped
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	return CountByStatus(results)[StatusFail] > 0
}

// HasIssues returns true if any result has a fail or warn status.
func HasIssues(results []CheckResult) bool {
	counts := CountByStatus(results)
	return counts[StatusFail]+counts[StatusWarn] > 0
}

// FixableCount returns the number of issues that can be fixed automatically.
func FixableCount(results []CheckResult) int {
	count := 0
	for _, r := range results {
		if r.Fixable && r.Status != StatusPass {
			count++
		}
	}
	return count
}

// Summary returns a one-line summary of the results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	total := counts[StatusWarn] + counts[StatusFail]
	if total == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d issue%s found", total, pluralize(total))
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
