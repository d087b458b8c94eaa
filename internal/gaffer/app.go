package gaffer

import (
	"github.com/gafferworks/gaffer/internal/core/agent"
	"github.com/gafferworks/gaffer/internal/core/checkpoint"
	"github.com/gafferworks/gaffer/internal/core/config"
	"github.com/gafferworks/gaffer/internal/core/git"
	"github.com/gafferworks/gaffer/internal/core/verify"
	"github.com/gafferworks/gaffer/pkg/executil"
	"github.com/rs/zerolog"
)

// App is the central entry point for all gaffer operations. Commands
// consume App instead of cherry-picking raw dependencies.
type App struct {
	Loop    *LoopService
	Doctor  *DoctorService
	Reports *ReportService
	Status  *checkpoint.StatusStore

	Config *config.Config
	Paths  Paths
}

// NewApp wires a full application for one plan folder.
func NewApp(cfg *config.Config, planDir string, log zerolog.Logger) *App {
	paths := NewPaths(planDir)
	g := git.NewExecutor("git", &executil.RealExecutor{})
	runner := agent.NewRunner(log, cfg.Agent.GracePeriod.Duration(), cfg.Agent.EnvDrop)
	verifier := verify.New(log)
	prompts := NewPromptRenderer(planDir)
	reports := NewReportService(paths, log)

	return &App{
		Loop:    NewLoopService(cfg, g, runner, verifier, prompts, reports, paths, log),
		Doctor:  NewDoctorService(cfg, g, paths),
		Reports: reports,
		Status:  checkpoint.NewStatusStore(paths.StatusFile()),
		Config:  cfg,
		Paths:   paths,
	}
}
