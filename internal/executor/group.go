package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/pipeline"
	"github.com/spachava753/assetpipe/internal/transform"
)

// Notifier receives one notification per completed group run.
type Notifier interface {
	Notify(path string)
}

// GroupTask is the executable bound to one configuration group.
type GroupTask struct {
	ID      string
	Class   models.AssetClass
	Spec    models.GroupSpec
	Root    string
	Options pipeline.VariantOptions

	stages   []pipeline.Stage
	notifier Notifier
	recorder *Recorder
}

// NewGroupTask builds the class's default stage sequence for spec. Header
// templates are parsed here so template errors surface at startup.
func NewGroupTask(class models.AssetClass, spec models.GroupSpec, cfg *models.ProjectConfig, notifier Notifier, recorder *Recorder) (*GroupTask, error) {
	id := class.Namespace() + ":" + spec.Name
	t := &GroupTask{
		ID:       id,
		Class:    class,
		Spec:     spec,
		Root:     cfg.Root,
		notifier: notifier,
		recorder: recorder,
		Options: pipeline.VariantOptions{
			SkipMinified: spec.NoMinify,
			Destination:  filepath.Join(cfg.Root, filepath.FromSlash(spec.Dest)),
		},
	}

	if class == models.Copy {
		t.Options.SingleVariant = true
		return t, nil
	}

	t.Options.Rename = transform.Rename(transform.MinSuffix)
	t.Options.Minify = transform.Minify()
	t.Options.SourceMaps = transform.SourceMaps(cfg.SourceMaps)

	if len(spec.Compiler) > 0 {
		t.stages = append(t.stages, transform.Command(spec.Compiler, class.Extension()))
	}
	t.stages = append(t.stages, transform.Concat(spec.Name+class.Extension()))

	if class == models.Style && spec.Header != "" {
		header, err := transform.Header("group header", spec.Header, cfg.Theme)
		if err != nil {
			return nil, models.Configf(id, "%v", err)
		}
		t.stages = append(t.stages, header)
	}

	if cfg.Header != "" {
		text, err := transform.RenderHeader("header", cfg.Header, cfg.Plugin.Values())
		if err != nil {
			return nil, models.Configf("header", "%v", err)
		}
		if class == models.Script {
			text = "\"use strict\";\n" + text
		}
		t.Options.Header = transform.Prepend("header", text)
	}

	return t, nil
}

// Run builds the group once in mode. A file that fails a stage is dropped
// and reported; the rest of the stream is still written, and the run then
// fails with every collected stage error.
func (t *GroupTask) Run(ctx context.Context, mode models.RunMode) error {
	start := time.Now()
	runID := uuid.NewString()
	logger := slog.With("task", t.ID, "run", runID, "mode", mode)
	diag := pipeline.NewDiagnostics(logger)

	src, err := pipeline.Src(ctx, os.DirFS(t.Root), t.Spec.Files, diag, pipeline.SrcOptions{
		AllowEmpty: t.Class == models.Copy,
	})
	if err != nil {
		return fmt.Errorf("reading sources: %w", err)
	}

	out, err := pipeline.VariantBuilder{}.Build(ctx, src, t.stages, mode, t.Options, diag)
	if err != nil {
		return err
	}

	files, err := out.Drain(ctx)
	if err != nil {
		return err
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		written = append(written, f.Written)
	}

	if t.notifier != nil {
		t.notifier.Notify(t.reloadPath(files))
	}

	t.recorder.Record(GroupResult{
		Task:        t.ID,
		RunID:       runID,
		Mode:        mode.String(),
		Files:       written,
		Failures:    diag.Len(),
		Duration:    time.Since(start),
		CompletedAt: time.Now(),
	})

	logger.Info("group built", "files", len(written), "failures", diag.Len(), "duration", time.Since(start))
	return diag.Err()
}

// reloadPath picks the path browsers are told about: the first written
// file, relative to the project root, or the destination itself.
func (t *GroupTask) reloadPath(files []*pipeline.File) string {
	target := t.Options.Destination
	if len(files) > 0 {
		target = files[0].Written
	}
	if rel, err := filepath.Rel(t.Root, target); err == nil {
		return filepath.ToSlash(rel)
	}
	return target
}
