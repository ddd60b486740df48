// Package transform holds the concrete stages the asset classes are built
// from: bundling, headers, renaming, minification, source maps and
// external compilers.
package transform

import (
	"bytes"
	"context"

	"github.com/spachava753/assetpipe/internal/pipeline"
)

// Concat bundles the whole stream, in stream order, into a single record
// named name, with a source map pointing each output line back to its
// origin.
func Concat(name string) pipeline.Stage {
	return pipeline.Collect("concat", func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		var (
			buf      bytes.Buffer
			mappings pipeline.MappingBuilder
		)
		sm := &pipeline.SourceMap{Version: 3, File: name, Names: []string{}}

		for i, f := range files {
			sm.Sources = append(sm.Sources, f.Source)
			sm.SourcesContent = append(sm.SourcesContent, string(f.Contents))

			body := bytes.TrimSuffix(f.Contents, []byte("\n"))
			lines := bytes.Split(body, []byte("\n"))
			for n := range lines {
				mappings.AddLine(i, n)
			}
			buf.Write(body)
			buf.WriteByte('\n')
		}
		sm.Mappings = mappings.String()

		return []*pipeline.File{{
			Path:      name,
			Source:    name,
			Contents:  buf.Bytes(),
			SourceMap: sm,
		}}, nil
	})
}
