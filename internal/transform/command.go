package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spachava753/assetpipe/internal/pipeline"
)

// Command pipes every record through an external compiler: the record's
// contents go to the command's stdin and its stdout replaces them. When
// ext is non-empty the record is renamed to that extension.
func Command(argv []string, ext string) pipeline.Stage {
	return pipeline.Map("compile", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin = bytes.NewReader(f.Contents)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("running %s: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
		}

		f.Contents = stdout.Bytes()
		if ext != "" {
			f.Path = strings.TrimSuffix(f.Path, f.Ext()) + ext
		}
		return f, nil
	})
}
