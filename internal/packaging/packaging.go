// Package packaging implements the metadata tasks that stamp plugin
// metadata into the project's own files: README, the main plugin file
// header, class constants, composer autoload, PHP namespaces, text
// domains and the translation template.
package packaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/util"
)

// Task is one packaging step.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// phpSources selects the project's own PHP files.
var phpSources = []string{"**/*.php", "!vendor/**", "!node_modules/**", "!build/**"}

// Tasks returns the packaging steps cfg has enough metadata for.
func Tasks(cfg *models.ProjectConfig) []Task {
	meta := cfg.Plugin
	root := cfg.Root

	tasks := []Task{
		{Name: "readme", Run: func(ctx context.Context) error { return Readme(root, meta) }},
	}
	if meta.File != "" {
		tasks = append(tasks, Task{Name: "mainfile", Run: func(ctx context.Context) error { return MainFile(root, meta) }})
	}
	if len(cfg.Constants) > 0 {
		tasks = append(tasks, Task{Name: "constants", Run: func(ctx context.Context) error { return Constants(root, meta, cfg.Constants) }})
	}
	if meta.Namespace != "" {
		tasks = append(tasks,
			Task{Name: "composer", Run: func(ctx context.Context) error { return Composer(root, meta.Namespace) }},
			Task{Name: "namespace", Run: func(ctx context.Context) error { return Namespace(root, meta.Namespace) }},
		)
	}
	if meta.TextDomain != "" {
		tasks = append(tasks,
			Task{Name: "textdomain", Run: func(ctx context.Context) error { return TextDomain(root, meta.TextDomain) }},
			Task{Name: "pot", Run: func(ctx context.Context) error { return Pot(root, meta) }},
		)
	}
	return tasks
}

// rewriteFiles applies fn to every file matched by patterns under root and
// writes back the files whose contents changed.
func rewriteFiles(root string, patterns []string, fn func(string) string) error {
	matches, err := util.ExpandGlobs(os.DirFS(root), patterns)
	if err != nil {
		return err
	}
	for _, m := range matches {
		path := filepath.Join(root, filepath.FromSlash(m.Path))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", m.Path, err)
		}
		updated := fn(string(data))
		if updated == string(data) {
			continue
		}
		if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", m.Path, err)
		}
		slog.Debug("rewrote file", "file", m.Path)
	}
	return nil
}

// literal escapes a value for use as a regexp replacement.
func literal(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
