package transform

import (
	"context"
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/spachava753/assetpipe/internal/pipeline"
)

var mediaTypes = map[string]string{
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// Minify minifies records by extension. Records of unknown types pass
// through unchanged. Line mappings do not survive minification, so a
// record's source map keeps its sources but loses its mappings.
func Minify() pipeline.Stage {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	return pipeline.Map("minify", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		mediaType, ok := mediaTypes[f.Ext()]
		if !ok {
			return f, nil
		}
		out, err := m.Bytes(mediaType, f.Contents)
		if err != nil {
			return nil, fmt.Errorf("minifying %s: %w", f.Path, err)
		}
		f.Contents = out
		if f.SourceMap != nil {
			f.SourceMap.Mappings = ""
		}
		return f, nil
	})
}
