// Package doctor runs environment diagnostics for wf: config, store,
// required tools, and configured hosts.
package doctor

import (
	"fmt"
	"sync"

	"github.com/wfkit/wf/internal/util"
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
}

// Check is one diagnostic.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns the check's category (e.g. "CONFIG", "TOOLS").
	Category() string

	// Run executes the check and returns the result.
	Run() CheckResult
}

// RunAll executes all checks in order.
func RunAll(checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		results[i] = check.Run()
	}
	return results
}

// RunAllParallel executes all checks concurrently. Host checks dial
// real machines, so this keeps a slow host from serializing the rest.
func RunAllParallel(checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(idx int, c Check) {
			defer wg.Done()
			results[idx] = c.Run()
		}(i, check)
	}
	wg.Wait()
	return results
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
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// Summary formats a one-line rollup of the results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	passed := counts[StatusPass]
	warned := counts[StatusWarn]
	failed := counts[StatusFail]

	if failed == 0 && warned == 0 {
		return fmt.Sprintf("All %d checks passed", len(results))
	}
	out := fmt.Sprintf("%d passed", passed)
	if warned > 0 {
		out += fmt.Sprintf(", %d %s", warned, util.Pluralize(warned, "warning", "warnings"))
	}
	if failed > 0 {
		out += fmt.Sprintf(", %d failed", failed)
	}
	return out
}
