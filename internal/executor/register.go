package executor

import (
	"context"
	"path"
	"time"

	"github.com/spachava753/assetpipe/internal/graph"
	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/packaging"
	"github.com/spachava753/assetpipe/internal/watch"
)

// Lifecycle task names.
const (
	TaskBuildAssets     = "build-assets"
	TaskWatch           = "watch"
	TaskDefault         = "default"
	TaskClean           = "clean"
	TaskLive            = "live"
	TaskProductionBuild = "production-build"
	TaskDeploy          = "deploy"
	TaskDist            = "dist"
	TaskBuild           = "build"
	TaskBundle          = "bundle"
	TaskPackage         = "package"
	TaskPlugin          = "plugin"

	releaseCopy      = "release:copy"
	releaseCopyNamed = "release:copy-named"
	releaseZip       = "release:zip"
)

// Deps are the collaborators the registered tasks share.
type Deps struct {
	// Notifier receives one notification per group run.
	Notifier Notifier
	// Reload is started by the first watch run.
	Reload watch.Starter
	// Watch overrides the filesystem watcher; nil creates an FSService
	// rooted at the project when watch first runs.
	Watch    watch.Service
	Recorder *Recorder
}

// Registration is what Register produced beyond the graph entries.
type Registration struct {
	Watcher  *watch.Watcher
	Bindings []*watch.Binding
	Groups   []*GroupTask
}

// Register populates g from cfg and seals it. Group leaves come first so
// the aggregate composites see every group of their class.
func Register(g *graph.Graph, cfg *models.ProjectConfig, deps Deps) (*Registration, error) {
	reg := &Registration{}

	for _, class := range models.AssetClasses {
		for _, spec := range cfg.Groups(class).Groups {
			t, err := NewGroupTask(class, spec, cfg, deps.Notifier, deps.Recorder)
			if err != nil {
				return nil, err
			}
			if err := g.Register(t.ID, graph.Func(t.Run)); err != nil {
				return nil, err
			}
			reg.Groups = append(reg.Groups, t)
		}
	}

	for _, pt := range packaging.Tasks(cfg) {
		run := pt.Run
		if err := g.Register(TaskPackage+":"+pt.Name, graph.Func(func(ctx context.Context, _ models.RunMode) error {
			return run(ctx)
		})); err != nil {
			return nil, err
		}
	}

	aggregates := []struct{ id, alias string }{
		{models.Style.Namespace(), "styles"},
		{models.Script.Namespace(), "scripts"},
		{models.Copy.Namespace(), ""},
		{TaskPackage, TaskPlugin},
	}
	for _, a := range aggregates {
		if err := g.ComposeByPrefix(a.id, a.id+":"); err != nil {
			return nil, err
		}
		if a.alias != "" {
			if err := g.Alias(a.alias, a.id); err != nil {
				return nil, err
			}
		}
	}

	// Bindings resolve through the graph so a rebuild is logged and
	// attributed like any other run of the group.
	for _, t := range reg.Groups {
		exec, err := g.Resolve(t.ID)
		if err != nil {
			return nil, err
		}
		reg.Bindings = append(reg.Bindings, watch.NewBinding(t.ID, t.Spec.WatchPatterns(), exec))
	}
	reg.Watcher = watch.NewWatcher(deps.Watch, deps.Reload, reg.Bindings)

	if err := registerLifecycle(g, cfg, reg.Watcher); err != nil {
		return nil, err
	}

	g.Seal()
	return reg, nil
}

func registerLifecycle(g *graph.Graph, cfg *models.ProjectConfig, w *watch.Watcher) error {
	root := cfg.Root
	distDir := cfg.Dist.Dir

	leaves := []struct {
		id  string
		run graph.Func
	}{
		{TaskWatch, func(ctx context.Context, mode models.RunMode) error {
			if w.Service == nil {
				svc, err := watch.NewFSService(root, time.Duration(cfg.Watch.DebounceMs)*time.Millisecond)
				if err != nil {
					return err
				}
				w.Service = svc
				defer func() {
					svc.Close()
					w.Service = nil
				}()
			}
			return w.Run(ctx, mode)
		}},
		{TaskClean, func(ctx context.Context, _ models.RunMode) error {
			return Clean(root, cfg.Clean)
		}},
		{releaseCopy, func(ctx context.Context, _ models.RunMode) error {
			_, err := Dist(ctx, root, cfg.Dist, distDir)
			return err
		}},
		{releaseCopyNamed, func(ctx context.Context, _ models.RunMode) error {
			dest, err := namedDist(cfg)
			if err != nil {
				return err
			}
			_, err = Dist(ctx, root, cfg.Dist, dest)
			return err
		}},
		{releaseZip, func(ctx context.Context, _ models.RunMode) error {
			dest, err := namedDist(cfg)
			if err != nil {
				return err
			}
			_, err = Archive(root, dest)
			return err
		}},
	}
	for _, l := range leaves {
		if err := g.Register(l.id, l.run); err != nil {
			return err
		}
	}

	steps := []struct {
		id       string
		parallel bool
		children []string
	}{
		{TaskBuildAssets, true, []string{models.Style.Namespace(), models.Script.Namespace(), models.Copy.Namespace(), TaskPackage}},
		{TaskDefault, false, []string{TaskBuildAssets, TaskWatch}},
		{TaskLive, false, []string{TaskClean, TaskBuildAssets}},
		{TaskDeploy, false, []string{TaskLive, releaseCopy}},
		{TaskDist, false, []string{TaskLive, releaseCopyNamed}},
		{TaskBundle, false, []string{TaskDist, releaseZip}},
	}
	for _, s := range steps {
		var err error
		if s.parallel {
			err = g.ComposeParallel(s.id, s.children...)
		} else {
			err = g.ComposeSequential(s.id, s.children...)
		}
		if err != nil {
			return err
		}
	}

	if err := g.Alias(TaskProductionBuild, TaskLive); err != nil {
		return err
	}
	return g.Alias(TaskBuild, TaskDist)
}

// namedDist is the per-plugin dist directory, build/<plugin name>.
func namedDist(cfg *models.ProjectConfig) (string, error) {
	if cfg.Plugin.Name == "" {
		return "", models.Configf("plugin.name", "required to name the dist directory")
	}
	return path.Join(cfg.Dist.Dir, cfg.Plugin.Name), nil
}
