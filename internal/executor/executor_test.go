package executor_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spachava753/assetpipe/internal/config"
	"github.com/spachava753/assetpipe/internal/executor"
	"github.com/spachava753/assetpipe/internal/graph"
	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/watch"
)

// fakeNotifier records every notification.
type fakeNotifier struct {
	mu    sync.Mutex
	paths []string
}

func (n *fakeNotifier) Notify(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *fakeNotifier) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// newProject lays out a small project with one style, one script and one
// copy group.
func newProject(t *testing.T) models.ProjectConfig {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/scss/a.scss", ".a {\n  color: red;\n}\n")
	writeFile(t, root, "src/scss/b.scss", ".b {\n  color: blue;\n}\n")
	writeFile(t, root, "src/js/app.js", "var answer = 42;\nconsole.log(answer);\n")
	writeFile(t, root, "src/img/logo.svg", "<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>")

	cfg := config.DefaultProjectConfig()
	cfg.Root = root
	cfg.Plugin = models.PluginMeta{Name: "demo", Title: "Demo", Version: "1.0.0"}
	cfg.Styles = models.GroupSet{Groups: []models.GroupSpec{
		{Name: "main", Files: models.Patterns{"src/scss/a.scss", "src/scss/b.scss"}, Dest: "assets/css"},
	}}
	cfg.Scripts = models.GroupSet{Groups: []models.GroupSpec{
		{Name: "app", Files: models.Patterns{"src/js/*.js"}, Dest: "assets/js"},
	}}
	cfg.Assets = models.GroupSet{Groups: []models.GroupSpec{
		{Name: "images", Files: models.Patterns{"src/img/**"}, Dest: "assets/img"},
	}}
	return cfg
}

func newOrchestrator(t *testing.T, cfg models.ProjectConfig, notifier executor.Notifier, opts executor.Options) *executor.Orchestrator {
	t.Helper()
	o, err := executor.NewOrchestrator(cfg, executor.Deps{Notifier: notifier}, opts)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func TestStyleGroup_Development(t *testing.T) {
	cfg := newProject(t)
	notifier := &fakeNotifier{}
	o := newOrchestrator(t, cfg, notifier, executor.Options{})

	report, err := o.Run(context.Background(), "style:main")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := listDir(t, filepath.Join(cfg.Root, "assets/css")); strings.Join(got, ",") != "main.css,main.min.css" {
		t.Fatalf("written files = %v", got)
	}

	css := readFile(t, cfg.Root, "assets/css/main.css")
	a, b := strings.Index(css, ".a {"), strings.Index(css, ".b {")
	if a < 0 || b < 0 || a > b {
		t.Errorf("expected both inputs in configuration order:\n%s", css)
	}
	if !strings.Contains(css, "/*# sourceMappingURL=data:application/json") {
		t.Errorf("development output should carry an inline source map:\n%s", css)
	}

	minCSS := readFile(t, cfg.Root, "assets/css/main.min.css")
	if !strings.HasPrefix(minCSS, ".a{color:red}.b{") {
		t.Errorf("unexpected minified output:\n%s", minCSS)
	}

	if got := notifier.Paths(); len(got) != 1 || got[0] != "assets/css/main.css" {
		t.Errorf("expected one notification for assets/css/main.css, got %v", got)
	}

	if report.Mode != "development" || report.FilesWritten != 2 || len(report.Groups) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestStyleGroup_ProductionIsIdempotent(t *testing.T) {
	cfg := newProject(t)
	o := newOrchestrator(t, cfg, nil, executor.Options{Production: true})

	var outputs []string
	for range 2 {
		if _, err := o.Run(context.Background(), "style:main"); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := listDir(t, filepath.Join(cfg.Root, "assets/css")); strings.Join(got, ",") != "main.min.css" {
			t.Fatalf("production should only write the minified variant, got %v", got)
		}
		outputs = append(outputs, readFile(t, cfg.Root, "assets/css/main.min.css"))
	}
	if outputs[0] != outputs[1] {
		t.Errorf("production output differs between runs:\n%q\n%q", outputs[0], outputs[1])
	}
	if strings.Contains(outputs[0], "sourceMappingURL") {
		t.Error("production output must not carry source maps")
	}
}

func TestGroupHeaders(t *testing.T) {
	cfg := newProject(t)
	cfg.Header = "/*! {{ .pkg.title }} v{{ .pkg.version }} */"
	cfg.Theme = map[string]any{"name": "demo-theme"}
	cfg.Styles.Groups[0].Header = "/* Theme Name: {{ .pkg.name }} */"
	o := newOrchestrator(t, cfg, nil, executor.Options{})

	if _, err := o.Run(context.Background(), "build-assets"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	css := readFile(t, cfg.Root, "assets/css/main.css")
	if !strings.HasPrefix(css, "/*! Demo v1.0.0 */\n/* Theme Name: demo-theme */\n.a {") {
		t.Errorf("unexpected style headers:\n%s", css)
	}

	js := readFile(t, cfg.Root, "assets/js/app.js")
	if !strings.HasPrefix(js, "\"use strict\";\n/*! Demo v1.0.0 */\nvar answer") {
		t.Errorf("unexpected script headers:\n%s", js)
	}
}

func TestNewGroupTask_InvalidHeader(t *testing.T) {
	cfg := newProject(t)
	cfg.Header = "{{ .pkg.title"
	_, err := executor.NewOrchestrator(cfg, executor.Deps{}, executor.Options{})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCopyGroup(t *testing.T) {
	for _, production := range []bool{false, true} {
		cfg := newProject(t)
		o := newOrchestrator(t, cfg, nil, executor.Options{Production: production})
		if _, err := o.Run(context.Background(), "copy"); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := listDir(t, filepath.Join(cfg.Root, "assets/img"))
		if strings.Join(got, ",") != "logo.svg" {
			t.Errorf("production=%v: copy groups write one unminified output, got %v", production, got)
		}
		if readFile(t, cfg.Root, "assets/img/logo.svg") != "<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>" {
			t.Errorf("production=%v: copy must not modify contents", production)
		}
	}
}

func TestGroupFailure_IsolatesFiles(t *testing.T) {
	cfg := newProject(t)
	cfg.Styles.Groups[0].Compiler = []string{"sh", "-c", `read first; case "$first" in .b*) exit 1;; esac; echo "$first"; cat`}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("sh not available")
	}
	notifier := &fakeNotifier{}
	o := newOrchestrator(t, cfg, notifier, executor.Options{})

	report, err := o.Run(context.Background(), "style:main")
	if err == nil {
		t.Fatal("expected the group to fail")
	}
	var se *models.StageError
	if !errors.As(err, &se) || se.Path != "src/scss/b.scss" {
		t.Errorf("expected a stage error for b.scss, got %v", err)
	}
	if report.FailedTask != "style:main" {
		t.Errorf("expected failed task style:main, got %q", report.FailedTask)
	}

	// The other source still reaches the output.
	css := readFile(t, cfg.Root, "assets/css/main.css")
	if !strings.Contains(css, ".a {") || strings.Contains(css, ".b {") {
		t.Errorf("unexpected output:\n%s", css)
	}
	if len(notifier.Paths()) != 1 {
		t.Errorf("expected exactly one notification, got %v", notifier.Paths())
	}
}

func TestOrchestrator_FailedRunWaitsForSiblings(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("sh not available")
	}
	cfg := newProject(t)
	cfg.Styles.Groups[0].Compiler = []string{"sh", "-c", "cat >/dev/null; exit 1"}
	cfg.Scripts.Groups[0].Compiler = []string{"sh", "-c", "sleep 1; cat"}
	o := newOrchestrator(t, cfg, nil, executor.Options{})

	report, err := o.Run(context.Background(), executor.TaskLive)
	if err == nil {
		t.Fatal("expected the style group to fail")
	}
	if report.FailedTask != "style:main" {
		t.Errorf("expected failure attributed to style:main, got %q", report.FailedTask)
	}

	if _, err := os.Stat(filepath.Join(cfg.Root, "assets/js/app.min.js")); err != nil {
		t.Errorf("slow sibling output should exist once Run returns: %v", err)
	}
	var sawScript bool
	for _, g := range report.Groups {
		if g.Task == "script:app" {
			sawScript = true
		}
	}
	if !sawScript {
		t.Errorf("report should include the sibling's result, got %+v", report.Groups)
	}
}

func TestOrchestrator_ProductionRejectedForWatch(t *testing.T) {
	cfg := newProject(t)
	cfg.Scripts.Groups[0].NoMinify = true
	o := newOrchestrator(t, cfg, nil, executor.Options{Production: true})

	for _, task := range []string{executor.TaskWatch, executor.TaskDefault} {
		_, err := o.Run(context.Background(), task)
		var cfgErr *models.ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "production" {
			t.Errorf("%s: expected a production ConfigError, got %v", task, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Root, "assets")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("nothing should be built, got %v", err)
	}
}

func TestOrchestrator_UnknownTask(t *testing.T) {
	o := newOrchestrator(t, newProject(t), nil, executor.Options{})
	_, err := o.Run(context.Background(), "style:missing")
	if !errors.Is(err, models.ErrUnknownTask) {
		t.Errorf("expected unknown task error, got %v", err)
	}
}

func TestOrchestrator_ProductionValidation(t *testing.T) {
	cfg := newProject(t)
	cfg.Scripts.Groups[0].NoMinify = true
	writeFile(t, cfg.Root, "build/keep.txt", "x")
	o := newOrchestrator(t, cfg, nil, executor.Options{})

	_, err := o.Run(context.Background(), executor.TaskLive)
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Root, "build/keep.txt")); err != nil {
		t.Errorf("no task may run before validation fails: %v", err)
	}

	// The same group is fine in development.
	if _, err := o.Run(context.Background(), "script:app"); err != nil {
		t.Errorf("development run failed: %v", err)
	}
	if got := listDir(t, filepath.Join(cfg.Root, "assets/js")); strings.Join(got, ",") != "app.js" {
		t.Errorf("noMinify should write only the primary variant, got %v", got)
	}
}

func TestOrchestrator_ModeFor(t *testing.T) {
	o := newOrchestrator(t, newProject(t), nil, executor.Options{})
	tests := map[string]models.RunMode{
		executor.TaskDefault:         models.Development,
		executor.TaskBuildAssets:     models.Development,
		"style":                      models.Development,
		executor.TaskLive:            models.Production,
		executor.TaskProductionBuild: models.Production,
		executor.TaskDeploy:          models.Production,
		executor.TaskDist:            models.Production,
		executor.TaskBuild:           models.Production,
		executor.TaskBundle:          models.Production,
	}
	for task, want := range tests {
		if got := o.ModeFor(task); got != want {
			t.Errorf("ModeFor(%s) = %s, want %s", task, got, want)
		}
	}

	forced := newOrchestrator(t, newProject(t), nil, executor.Options{Production: true})
	if forced.ModeFor("style") != models.Production {
		t.Error("Production option should force production mode")
	}
}

func TestRegister_Tasks(t *testing.T) {
	cfg := newProject(t)
	o := newOrchestrator(t, cfg, nil, executor.Options{})
	g := o.Graph()

	for _, id := range []string{
		"style:main", "script:app", "copy:images", "package:readme",
		"style", "styles", "script", "scripts", "copy", "package", "plugin",
		"build-assets", "watch", "default", "clean", "live", "production-build",
		"deploy", "dist", "build", "bundle",
	} {
		if _, err := g.Resolve(id); err != nil {
			t.Errorf("expected task %s: %v", id, err)
		}
	}

	if kind, _ := g.Kind(executor.TaskBuildAssets); kind != graph.KindParallel {
		t.Errorf("build-assets should be parallel, got %s", kind)
	}
	if got := g.Children(executor.TaskDefault); strings.Join(got, ",") != "build-assets,watch" {
		t.Errorf("default children = %v", got)
	}
	if got := g.Children(executor.TaskLive); strings.Join(got, ",") != "clean,build-assets" {
		t.Errorf("live children = %v", got)
	}

	bindings := o.Registration().Bindings
	if len(bindings) != 3 {
		t.Fatalf("expected one binding per group, got %d", len(bindings))
	}
	if bindings[0].ID != "style:main" || len(bindings[0].Patterns) != 2 {
		t.Errorf("unexpected first binding %s %v", bindings[0].ID, bindings[0].Patterns)
	}

	if err := g.Register("late", graph.Func(func(context.Context, models.RunMode) error { return nil })); !errors.Is(err, graph.ErrSealed) {
		t.Errorf("graph should be sealed after registration, got %v", err)
	}
}

func TestRegister_DuplicateGroupAcrossLoad(t *testing.T) {
	cfg := newProject(t)
	cfg.Styles.Groups = append(cfg.Styles.Groups, cfg.Styles.Groups[0])
	_, err := executor.NewOrchestrator(cfg, executor.Deps{}, executor.Options{})
	if !errors.Is(err, models.ErrDuplicateTask) {
		t.Errorf("expected duplicate task error, got %v", err)
	}
}

func TestBundle(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, cfg.Root, "demo.php", "<?php\n")
	writeFile(t, cfg.Root, "node_modules/x/index.js", "x")
	writeFile(t, cfg.Root, "assets/stale.css", "old")
	o := newOrchestrator(t, cfg, nil, executor.Options{})

	report, err := o.Run(context.Background(), executor.TaskBundle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != "production" {
		t.Errorf("bundle runs in production mode, got %s", report.Mode)
	}

	if _, err := os.Stat(filepath.Join(cfg.Root, "assets/stale.css")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("clean should remove stale assets, got %v", err)
	}

	dist := filepath.Join(cfg.Root, "build", "demo")
	for _, name := range []string{"demo.php", "assets/css/main.min.css", "assets/js/app.min.js", "assets/img/logo.svg", "README.md"} {
		if _, err := os.Stat(filepath.Join(dist, filepath.FromSlash(name))); err != nil {
			t.Errorf("expected %s in dist: %v", name, err)
		}
	}
	for _, name := range []string{"node_modules/x/index.js", "src/scss/a.scss", "assets/css/main.css"} {
		if _, err := os.Stat(filepath.Join(dist, filepath.FromSlash(name))); err == nil {
			t.Errorf("%s must not be in dist", name)
		}
	}

	zr, err := zip.OpenReader(filepath.Join(cfg.Root, "build", "demo.zip"))
	if err != nil {
		t.Fatalf("opening bundle: %v", err)
	}
	defer zr.Close()
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	if !contains(entries, "demo/demo.php") || !contains(entries, "demo/assets/css/main.min.css") {
		t.Errorf("unexpected archive entries %v", entries)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestClean_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	err := executor.Clean(root, []string{"../outside"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestDist_RequiresPluginName(t *testing.T) {
	cfg := newProject(t)
	cfg.Plugin.Name = ""
	o := newOrchestrator(t, cfg, nil, executor.Options{})
	_, err := o.Run(context.Background(), executor.TaskDist)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestReportFile(t *testing.T) {
	cfg := newProject(t)
	path := filepath.Join(t.TempDir(), "report.json")
	o := newOrchestrator(t, cfg, nil, executor.Options{ReportPath: path})
	if _, err := o.Run(context.Background(), "script"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !bytes.Contains(data, []byte(`"task": "script"`)) || !bytes.Contains(data, []byte(`"script:app"`)) {
		t.Errorf("unexpected report:\n%s", data)
	}
}

// eventService hands out one channel per subscription, keyed by the first
// pattern.
type eventService struct {
	mu   sync.Mutex
	subs map[string]chan watch.Event
}

func (s *eventService) Subscribe(ctx context.Context, patterns []string) (<-chan watch.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan watch.Event, 1)
	s.subs[patterns[0]] = ch
	return ch, nil
}

func (s *eventService) send(pattern string, ev watch.Event) {
	s.mu.Lock()
	ch := s.subs[pattern]
	s.mu.Unlock()
	ch <- ev
}

func TestWatch_RebuildsChangedGroup(t *testing.T) {
	cfg := newProject(t)
	cfg.Styles.Groups[0].Watch = models.Patterns{"src/scss/**/*.scss"}
	svc := &eventService{subs: make(map[string]chan watch.Event)}
	notifier := &fakeNotifier{}

	o, err := executor.NewOrchestrator(cfg, executor.Deps{Notifier: notifier, Watch: svc}, executor.Options{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, executor.TaskWatch)
		result <- err
	}()

	select {
	case <-o.Registration().Watcher.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never became ready")
	}

	svc.send("src/scss/**/*.scss", watch.Event{Path: "src/scss/a.scss", Op: watch.OpWrite})

	deadline := time.Now().Add(2 * time.Second)
	for len(notifier.Paths()) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("changed group was not rebuilt")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := notifier.Paths(); len(got) != 1 || got[0] != "assets/css/main.css" {
		t.Errorf("expected one reload for the style group, got %v", got)
	}
	if got := listDir(t, filepath.Join(cfg.Root, "assets/css")); strings.Join(got, ",") != "main.css,main.min.css" {
		t.Errorf("watch rebuilds in development mode, got %v", got)
	}

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
