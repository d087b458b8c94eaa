package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/gafferworks/gaffer/internal/core/plan"
)

// PlanCheck verifies the plan folder holds a parseable plan document with
// work left to do.
type PlanCheck struct {
	planDir string
}

// NewPlanCheck creates a plan folder check.
func NewPlanCheck(planDir string) *PlanCheck {
	return &PlanCheck{planDir: planDir}
}

func (c *PlanCheck) Name() string {
	return "Plan"
}

func (c *PlanCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	info, err := os.Stat(c.planDir)
	switch {
	case os.IsNotExist(err):
		result.Items = append(result.Items, CheckItem{
			Label:  "plan folder",
			Status: StatusFail,
			Detail: fmt.Sprintf("%s does not exist", c.planDir),
		})
		return result
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "plan folder",
			Status: StatusFail,
			Detail: fmt.Sprintf("inaccessible: %v", err),
		})
		return result
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{
			Label:  "plan folder",
			Status: StatusFail,
			Detail: "path is not a directory",
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  "plan folder",
		Status: StatusPass,
		Detail: c.planDir,
	})

	docPath, err := plan.Discover(c.planDir, nil)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "plan document",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	doc, err := plan.Parse(docPath)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "plan document",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	pending, done := doc.Counts()
	item := CheckItem{
		Label:  "plan document",
		Status: StatusPass,
		Detail: fmt.Sprintf("%s: %d stories (%d done, %d pending)", docPath, done+pending, done, pending),
	}
	if pending == 0 {
		item.Status = StatusWarn
		item.Detail = fmt.Sprintf("%s: all %d stories complete, nothing to do", docPath, done)
	}
	result.Items = append(result.Items, item)

	return result
}
