package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spachava753/assetpipe/internal/util"
)

// SrcOptions configures Src.
type SrcOptions struct {
	// AllowEmpty permits patterns that match nothing.
	AllowEmpty bool
}

// Src expands patterns against fsys and returns a lazy stream that reads
// each matched file in pattern order. Glob errors and, unless AllowEmpty
// is set, an empty match set are returned immediately; read failures are
// reported per file.
func Src(ctx context.Context, fsys fs.FS, patterns []string, diag *Diagnostics, opts SrcOptions) (<-chan *File, error) {
	matches, err := util.ExpandGlobs(fsys, patterns)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 && !opts.AllowEmpty {
		return nil, fmt.Errorf("no files match %v", patterns)
	}

	out := make(chan *File)
	go func() {
		defer close(out)
		for _, m := range matches {
			if ctx.Err() != nil {
				return
			}
			data, err := fs.ReadFile(fsys, m.Path)
			if err != nil {
				diag.Report("src", m.Path, err)
				continue
			}
			f := &File{Path: m.Rel(), Source: m.Path, Contents: data}
			if !send(ctx, out, f) {
				return
			}
		}
	}()
	return out, nil
}

type destStage struct {
	dir string
}

// Dest writes every record under dir, keeping its relative path, and
// forwards it with Written set.
func Dest(dir string) Stage {
	return &destStage{dir: dir}
}

func (s *destStage) Name() string { return "dest" }

func (s *destStage) Apply(ctx context.Context, in <-chan *File, diag *Diagnostics) <-chan *File {
	return Map("dest", func(ctx context.Context, f *File) (*File, error) {
		target := filepath.Join(s.dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(target, f.Contents, 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", target, err)
		}
		f.Written = target
		return f, nil
	}).Apply(ctx, in, diag)
}
