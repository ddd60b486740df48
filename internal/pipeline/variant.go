package pipeline

import (
	"context"
	"sync"

	"github.com/spachava753/assetpipe/internal/models"
)

// VariantOptions parameterizes VariantBuilder.Build.
type VariantOptions struct {
	// SkipMinified ends processing after the primary branch.
	SkipMinified bool
	// SingleVariant emits only the primary branch, without source maps,
	// in every mode. Copy groups use it.
	SingleVariant bool
	// Destination is the directory both branches write to.
	Destination string
	// Header, when set, is the last shared stage.
	Header Stage
	// Rename and Minify shape the minified branch.
	Rename Stage
	Minify Stage
	// SourceMaps attaches maps; it only runs in development mode.
	SourceMaps Stage
}

// VariantOutput holds the two output branches of one run. A nil branch
// was not produced. Both are consumed once by Drain.
type VariantOutput struct {
	Primary  <-chan *File
	Minified <-chan *File
}

// VariantBuilder fans one source stream out into the primary and minified
// outputs.
type VariantBuilder struct{}

// Build applies shared once, then splits the result into:
//   - the primary branch (development mode only, or always for
//     SingleVariant): source maps, then Destination;
//   - the minified branch (unless SkipMinified or SingleVariant): rename,
//     minify, source maps in development mode, then Destination.
//
// A production build that skips the minified variant would write nothing
// and is rejected as a configuration error.
func (VariantBuilder) Build(ctx context.Context, source <-chan *File, shared []Stage, mode models.RunMode, opts VariantOptions, diag *Diagnostics) (VariantOutput, error) {
	wantPrimary := opts.SingleVariant || mode == models.Development
	wantMinified := !opts.SingleVariant && !opts.SkipMinified
	if !wantPrimary && !wantMinified {
		return VariantOutput{}, models.Configf("", "skipping the minified variant leaves no output in %s mode", mode)
	}

	common := Pipe(ctx, source, diag, append(append([]Stage(nil), shared...), opts.Header)...)

	var primaryIn, minifiedIn <-chan *File
	switch {
	case wantPrimary && wantMinified:
		branches := Split(ctx, common, 2)
		primaryIn, minifiedIn = branches[0], branches[1]
	case wantPrimary:
		primaryIn = common
	default:
		minifiedIn = common
	}

	var maps Stage
	if mode == models.Development {
		maps = opts.SourceMaps
	}

	var out VariantOutput
	if primaryIn != nil {
		primaryMaps := maps
		if opts.SingleVariant {
			primaryMaps = nil
		}
		out.Primary = Pipe(ctx, primaryIn, diag, primaryMaps, Dest(opts.Destination))
	}
	if minifiedIn != nil {
		out.Minified = Pipe(ctx, minifiedIn, diag, opts.Rename, opts.Minify, maps, Dest(opts.Destination))
	}
	return out, nil
}

// Drain consumes both branches concurrently and returns every written
// record, primary branch first. It completes only when both branches have
// finished writing.
func (v VariantOutput) Drain(ctx context.Context) ([]*File, error) {
	var (
		wg       sync.WaitGroup
		primary  []*File
		minified []*File
	)
	drain := func(in <-chan *File, dst *[]*File) {
		if in == nil {
			return
		}
		wg.Go(func() {
			*dst = ToSlice(in)
		})
	}
	drain(v.Primary, &primary)
	drain(v.Minified, &minified)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append(primary, minified...), nil
}
