package transform

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/spachava753/assetpipe/internal/pipeline"
)

// Header renders tmpl with data once and prepends the result to every
// record. The template sees data as .pkg, so "{{ .pkg.version }}"
// expands to the package version when data is PluginMeta.Values().
func Header(name, tmpl string, data any) (pipeline.Stage, error) {
	text, err := RenderHeader(name, tmpl, data)
	if err != nil {
		return nil, err
	}
	return Prepend(name, text), nil
}

// RenderHeader renders a header template with data bound to .pkg.
func RenderHeader(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any{"pkg": data}); err != nil {
		return "", fmt.Errorf("rendering %s template: %w", name, err)
	}
	return buf.String(), nil
}

// Prepend inserts text, terminated by a newline, above every record.
func Prepend(name, text string) pipeline.Stage {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	lines := strings.Count(text, "\n")
	return pipeline.Map(name, func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		f.Contents = append([]byte(text), f.Contents...)
		if f.SourceMap != nil {
			f.SourceMap.ShiftLines(lines)
		}
		return f, nil
	})
}
