package transform

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/pipeline"
)

// SourceMaps attaches each record's source map, creating an identity map
// for records that have none. Inline maps are embedded as a data URI;
// external maps are emitted as a sibling ".map" record.
func SourceMaps(mode models.SourceMapMode) pipeline.Stage {
	return pipeline.FlatMap("sourcemaps", func(ctx context.Context, f *pipeline.File) ([]*pipeline.File, error) {
		format, ok := commentFormats[f.Ext()]
		if !ok {
			return []*pipeline.File{f}, nil
		}

		sm := f.SourceMap
		if sm == nil {
			sm = identityMap(f)
		}
		sm.File = path.Base(f.Path)

		if mode == models.SourceMapsExternal {
			data, err := sm.JSON()
			if err != nil {
				return nil, fmt.Errorf("encoding source map: %w", err)
			}
			f.Contents = append(f.Contents, fmt.Sprintf(format, path.Base(f.Path)+".map")...)
			mapFile := &pipeline.File{Path: f.Path + ".map", Source: f.Source, Contents: data}
			return []*pipeline.File{f, mapFile}, nil
		}

		uri, err := sm.DataURI()
		if err != nil {
			return nil, fmt.Errorf("encoding source map: %w", err)
		}
		f.Contents = append(f.Contents, fmt.Sprintf(format, uri)...)
		return []*pipeline.File{f}, nil
	})
}

var commentFormats = map[string]string{
	".css": "\n/*# sourceMappingURL=%s */\n",
	".js":  "\n//# sourceMappingURL=%s\n",
	".mjs": "\n//# sourceMappingURL=%s\n",
}

func identityMap(f *pipeline.File) *pipeline.SourceMap {
	var b pipeline.MappingBuilder
	lines := bytes.Count(f.Contents, []byte("\n")) + 1
	for i := 0; i < lines; i++ {
		b.AddLine(0, i)
	}
	return &pipeline.SourceMap{
		Version:        3,
		Sources:        []string{f.Source},
		SourcesContent: []string{string(f.Contents)},
		Names:          []string{},
		Mappings:       b.String(),
	}
}
