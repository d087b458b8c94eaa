package gaffer

import (
	"context"

	"github.com/gafferworks/gaffer/internal/core/config"
	"github.com/gafferworks/gaffer/internal/core/doctor"
	"github.com/gafferworks/gaffer/internal/core/git"
)

// DoctorService runs environment checks for `gaffer check`.
type DoctorService struct {
	config *config.Config
	git    git.Git
	paths  Paths
}

// NewDoctorService creates a new DoctorService.
func NewDoctorService(cfg *config.Config, g git.Git, paths Paths) *DoctorService {
	return &DoctorService{
		config: cfg,
		git:    g,
		paths:  paths,
	}
}

// RunChecks executes all checks and returns results.
func (d *DoctorService) RunChecks(ctx context.Context) []doctor.Result {
	checks := []doctor.Check{
		doctor.NewToolsCheck(),
		doctor.NewAgentsCheck(d.config.Agent.Initial, d.config.Agent.Fallback, d.config.ResolveAgent),
		doctor.NewPlanCheck(d.paths.PlanDir),
		doctor.NewRepoCheck(d.git, d.paths.PlanDir, d.paths.LockFile()),
	}
	return doctor.RunAll(ctx, checks)
}
