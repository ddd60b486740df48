package executor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/util"
)

// copyWorkers bounds concurrent file copies in Dist.
const copyWorkers = 8

// validatePath rejects paths containing ".." segments or absolute paths so
// lifecycle tasks never touch files outside the project root.
func validatePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("invalid path: must be relative to the project root: %q", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("invalid path: contains directory traversal: %q", path)
		}
	}
	return nil
}

// Clean removes the configured output directories.
func Clean(root string, paths []string) error {
	for _, p := range paths {
		if err := validatePath(p); err != nil {
			return models.Configf("clean", "%v", err)
		}
		target := filepath.Join(root, filepath.FromSlash(p))
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
		slog.Debug("removed", "path", p)
	}
	return nil
}

// Dist copies the distributable project files into dest (relative to
// root). The dist directory itself is always excluded.
func Dist(ctx context.Context, root string, cfg models.DistConfig, dest string) (int, error) {
	if err := validatePath(dest); err != nil {
		return 0, models.Configf("dist", "%v", err)
	}

	patterns := append([]string(nil), cfg.Files...)
	for _, ex := range cfg.Exclude {
		patterns = append(patterns, "!"+ex)
	}
	patterns = append(patterns, "!"+filepath.ToSlash(cfg.Dir)+"/**")

	matches, err := util.ExpandGlobs(os.DirFS(root), patterns)
	if err != nil {
		return 0, fmt.Errorf("selecting dist files: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(copyWorkers)
	for _, m := range matches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := filepath.Join(root, filepath.FromSlash(m.Path))
			dst := filepath.Join(root, filepath.FromSlash(dest), filepath.FromSlash(m.Path))
			return copyFile(src, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	slog.Info("dist copied", "dest", dest, "files", len(matches))
	return len(matches), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

// Archive zips the directory dir (relative to root) into dir + ".zip",
// with entries prefixed by the directory's base name.
func Archive(root, dir string) (string, error) {
	if err := validatePath(dir); err != nil {
		return "", models.Configf("dist", "%v", err)
	}
	srcDir := filepath.Join(root, filepath.FromSlash(dir))
	target := srcDir + ".zip"

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", target, err)
	}
	zw := zip.NewWriter(f)

	prefix := filepath.Base(srcDir)
	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(prefix + "/" + filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if walkErr != nil {
		zw.Close()
		f.Close()
		return "", fmt.Errorf("archiving %s: %w", dir, walkErr)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("finishing %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	slog.Info("archive written", "path", target)
	return target, nil
}
