package transform

import (
	"context"
	"path"
	"strings"

	"github.com/spachava753/assetpipe/internal/pipeline"
)

// MinSuffix marks the minified variant of an output.
const MinSuffix = ".min"

// Rename inserts suffix between a record's stem and its extension.
func Rename(suffix string) pipeline.Stage {
	return pipeline.Map("rename", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		f.Path = SuffixPath(f.Path, suffix)
		if f.SourceMap != nil {
			f.SourceMap.File = path.Base(f.Path)
		}
		return f, nil
	})
}

// SuffixPath returns p with suffix inserted before its extension.
func SuffixPath(p, suffix string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + suffix + ext
}
