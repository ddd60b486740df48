package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spachava753/assetpipe/internal/config"
	"github.com/spachava753/assetpipe/internal/graph"
	"github.com/spachava753/assetpipe/internal/livereload"
	"github.com/spachava753/assetpipe/internal/models"
)

// productionTasks run in Production mode; every other task runs in
// Development unless Options.Production forces it.
var productionTasks = map[string]bool{
	TaskLive:            true,
	TaskProductionBuild: true,
	TaskDeploy:          true,
	TaskDist:            true,
	TaskBuild:           true,
	TaskBundle:          true,
}

// watchTasks rebuild in Development on every change, so forcing
// Production on them is rejected.
var watchTasks = map[string]bool{
	TaskWatch:   true,
	TaskDefault: true,
}

// Options tune an orchestrator.
type Options struct {
	// Production forces Production mode for every task.
	Production bool
	// ReportPath, when set, receives the JSON report after each run.
	ReportPath string
}

// Orchestrator owns the task graph built from one project config and runs
// named tasks on it.
type Orchestrator struct {
	cfg      models.ProjectConfig
	graph    *graph.Graph
	reg      *Registration
	recorder *Recorder
	opts     Options
}

// NewOrchestrator registers every task cfg defines.
func NewOrchestrator(cfg models.ProjectConfig, deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Recorder == nil {
		deps.Recorder = NewRecorder()
	}
	o := &Orchestrator{
		cfg:      cfg,
		graph:    graph.New(),
		recorder: deps.Recorder,
		opts:     opts,
	}
	reg, err := Register(o.graph, &o.cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("registering tasks: %w", err)
	}
	o.reg = reg
	return o, nil
}

// Graph returns the sealed task graph.
func (o *Orchestrator) Graph() *graph.Graph { return o.graph }

// Registration returns the groups and watch bindings that were registered.
func (o *Orchestrator) Registration() *Registration { return o.reg }

// ModeFor returns the mode a run of task uses.
func (o *Orchestrator) ModeFor(task string) models.RunMode {
	if o.opts.Production || productionTasks[task] {
		return models.Production
	}
	return models.Development
}

// Run executes task to completion. The report is returned even when the
// run fails; the error then names the innermost failing task.
func (o *Orchestrator) Run(ctx context.Context, task string) (*Report, error) {
	exec, err := o.graph.Resolve(task)
	if err != nil {
		return nil, err
	}
	if o.opts.Production && watchTasks[task] {
		return nil, models.Configf("production", "cannot be combined with the %s task; rebuilds always run in %s mode", task, models.Development)
	}
	mode := o.ModeFor(task)
	if err := config.ValidateForMode(o.cfg, mode); err != nil {
		return nil, err
	}

	o.recorder.Reset()
	started := time.Now()
	slog.Info("running task", "task", task, "mode", mode)

	runErr := exec.Run(ctx, mode)
	// A failed parallel composite returns before its siblings finish;
	// their output and results still belong to this run.
	o.graph.Wait()
	report := buildReport(task, mode, started, o.recorder.Results(), runErr)

	if o.opts.ReportPath != "" {
		if err := writeReport(o.opts.ReportPath, report); err != nil {
			slog.Warn("writing report failed", "path", o.opts.ReportPath, "error", err)
		}
	}
	return report, runErr
}

func writeReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RunFromConfig loads a project config and runs task with RunProject.
func RunFromConfig(ctx context.Context, configPath, task string, opts Options) (*Report, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	return RunProject(ctx, cfg, task, opts)
}

// RunProject runs task on cfg with a live-reload server as the group
// notifier. The server only listens once a watch task starts it.
func RunProject(ctx context.Context, cfg models.ProjectConfig, task string, opts Options) (*Report, error) {
	addr := net.JoinHostPort(cfg.LiveReload.Host, strconv.Itoa(cfg.LiveReload.Port))
	server := livereload.NewServer(addr)
	defer server.Close()

	orchestrator, err := NewOrchestrator(cfg, Deps{
		Notifier: server,
		Reload:   server,
		Recorder: NewRecorder(),
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	return orchestrator.Run(ctx, task)
}
