package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/ramwatch/internal/doctor"
)

func TestRenderDoctor(t *testing.T) {
	results := []doctor.CheckResult{
		{Name: "config_file", Category: "CONFIG", Status: doctor.StatusWarn, Message: "No config file", Suggestion: "Run init", Fixable: true},
		{Name: "config_valid", Category: "CONFIG", Status: doctor.StatusPass, Message: "High at 50%", Suggestion: "hidden"},
		{Name: "smtp", Category: "EMAIL", Status: doctor.StatusFail, Message: "SMTP credentials not set"},
	}

	out := ansiPattern.ReplaceAllString(renderDoctor(results, false), "")

	assert.Contains(t, out, "CONFIG\n  ⚠ No config file\n    Run init\n  ✓ High at 50%\n")
	assert.Contains(t, out, "EMAIL\n  ✗ SMTP credentials not set\n")
	assert.NotContains(t, out, "hidden", "suggestions are only shown for problems")
	assert.Contains(t, out, "2 issues found")
	assert.Contains(t, out, "1 can be fixed with 'ramwatch doctor --fix'")

	assert.NotContains(t, ansiPattern.ReplaceAllString(renderDoctor(results, true), ""), "--fix")
}

func TestRenderDoctor_AllGood(t *testing.T) {
	out := ansiPattern.ReplaceAllString(renderDoctor([]doctor.CheckResult{
		{Category: "LOCK", Status: doctor.StatusPass, Message: "No other ramwatch running"},
	}, false), "")

	assert.Contains(t, out, "✓ Everything looks good")
}
