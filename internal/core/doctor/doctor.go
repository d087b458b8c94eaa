// Package doctor runs the environment checks behind `gaffer check`: required
// executables, agent availability, plan folder sanity, and repository state.
package doctor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Status represents the result status of a check item.
type Status string

// Check item statuses.
const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckItem represents a single line item within a check result.
type CheckItem struct {
	Label  string `json:"label"`
	Status Status `json:"-"`
	Detail string `json:"detail,omitempty"`

	// For JSON output
	StatusStr string `json:"status"`
}

// Result represents the outcome of a check containing multiple items.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

// Check defines the interface for a doctor check.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll executes all checks and returns their results. Checks are
// independent probes, so they run concurrently; results keep the order the
// checks were given in.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			result := check.Run(ctx)
			for j := range result.Items {
				result.Items[j].StatusStr = string(result.Items[j].Status)
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summary returns counts of passed, warned, and failed items across all results.
func Summary(results []Result) (passed, warned, failed int) {
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass:
				passed++
			case StatusWarn:
				warned++
			case StatusFail:
				failed++
			}
		}
	}

	return passed, warned, failed
}
