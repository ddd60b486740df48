package pipeline

import (
	"context"
)

// Stage is one transform step. Apply must drain in completely and close
// the returned channel once in is exhausted.
type Stage interface {
	Name() string
	Apply(ctx context.Context, in <-chan *File, diag *Diagnostics) <-chan *File
}

// FlatMapFunc transforms one record into zero or more records.
type FlatMapFunc func(ctx context.Context, f *File) ([]*File, error)

// MapFunc transforms one record. Returning a nil file drops it.
type MapFunc func(ctx context.Context, f *File) (*File, error)

// CollectFunc sees the whole stream at once, e.g. to bundle it.
type CollectFunc func(ctx context.Context, files []*File) ([]*File, error)

type flatMapStage struct {
	name string
	fn   FlatMapFunc
}

// FlatMap builds a per-record stage. A failing record is reported to the
// diagnostics sink and dropped; the others continue.
func FlatMap(name string, fn FlatMapFunc) Stage {
	return &flatMapStage{name: name, fn: fn}
}

// Map builds a one-to-one per-record stage.
func Map(name string, fn MapFunc) Stage {
	return FlatMap(name, func(ctx context.Context, f *File) ([]*File, error) {
		out, err := fn(ctx, f)
		if err != nil || out == nil {
			return nil, err
		}
		return []*File{out}, nil
	})
}

func (s *flatMapStage) Name() string { return s.name }

func (s *flatMapStage) Apply(ctx context.Context, in <-chan *File, diag *Diagnostics) <-chan *File {
	out := make(chan *File)
	go func() {
		defer close(out)
		for f := range in {
			if ctx.Err() != nil {
				continue
			}
			res, err := s.fn(ctx, f)
			if err != nil {
				diag.Report(s.name, f.Source, err)
				continue
			}
			for _, r := range res {
				if !send(ctx, out, r) {
					break
				}
			}
		}
	}()
	return out
}

type collectStage struct {
	name string
	fn   CollectFunc
}

// Collect builds a stage that waits for its whole input before emitting.
// A failure drops every record of the stream, since the result could not
// be built from a partial set.
func Collect(name string, fn CollectFunc) Stage {
	return &collectStage{name: name, fn: fn}
}

func (s *collectStage) Name() string { return s.name }

func (s *collectStage) Apply(ctx context.Context, in <-chan *File, diag *Diagnostics) <-chan *File {
	out := make(chan *File)
	go func() {
		defer close(out)
		var files []*File
		for f := range in {
			files = append(files, f)
		}
		if ctx.Err() != nil || len(files) == 0 {
			return
		}
		res, err := s.fn(ctx, files)
		if err != nil {
			diag.Report(s.name, "", err)
			return
		}
		for _, r := range res {
			if !send(ctx, out, r) {
				return
			}
		}
	}()
	return out
}

// Pipe applies stages to in, in order.
func Pipe(ctx context.Context, in <-chan *File, diag *Diagnostics, stages ...Stage) <-chan *File {
	for _, s := range stages {
		if s == nil {
			continue
		}
		in = s.Apply(ctx, in, diag)
	}
	return in
}

// FromSlice turns files into a stream.
func FromSlice(ctx context.Context, files ...*File) <-chan *File {
	out := make(chan *File)
	go func() {
		defer close(out)
		for _, f := range files {
			if !send(ctx, out, f) {
				return
			}
		}
	}()
	return out
}

// ToSlice drains a stream.
func ToSlice(in <-chan *File) []*File {
	var files []*File
	for f := range in {
		files = append(files, f)
	}
	return files
}

func send(ctx context.Context, out chan<- *File, f *File) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
