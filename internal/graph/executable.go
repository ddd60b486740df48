package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/spachava753/assetpipe/internal/models"
)

// Executable is a unit of work. A started Executable runs to completion
// or failure.
type Executable interface {
	Run(ctx context.Context, mode models.RunMode) error
}

// Func adapts a function to Executable.
type Func func(ctx context.Context, mode models.RunMode) error

func (f Func) Run(ctx context.Context, mode models.RunMode) error { return f(ctx, mode) }

// Kind classifies a registered task.
type Kind int

const (
	KindLeaf Kind = iota
	KindSequential
	KindParallel
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSequential:
		return "sequential"
	case KindParallel:
		return "parallel"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// node names an executable so its failures carry the task id.
type node struct {
	id   string
	kind Kind
	exec Executable
}

func (n *node) Run(ctx context.Context, mode models.RunMode) error {
	if n.kind == KindAlias {
		return n.exec.Run(ctx, mode)
	}

	start := time.Now()
	slog.Debug("task started", "task", n.id, "mode", mode)
	err := n.exec.Run(ctx, mode)
	if err != nil {
		var tf *models.TaskFailure
		if !errors.As(err, &tf) || tf.Task != n.id {
			err = &models.TaskFailure{Task: n.id, Err: err}
		}
		slog.Debug("task failed", "task", n.id, "duration", time.Since(start))
		return err
	}
	slog.Debug("task finished", "task", n.id, "duration", time.Since(start))
	return nil
}

type sequential []Executable

// Run starts each child only after the previous one succeeded.
func (s sequential) Run(ctx context.Context, mode models.RunMode) error {
	for _, child := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := child.Run(ctx, mode); err != nil {
			return err
		}
	}
	return nil
}

type parallel struct {
	children []Executable
	// inflight tracks every started child, including those still running
	// after Run returned.
	inflight *sync.WaitGroup
}

// Run starts every child at once. It returns the first failure as soon as
// it arrives; children still running are left to finish on their own and
// their results are discarded.
func (p parallel) Run(ctx context.Context, mode models.RunMode) error {
	// buffered so abandoned children never block on send
	results := make(chan error, len(p.children))
	for _, child := range p.children {
		p.inflight.Go(func() {
			results <- child.Run(ctx, mode)
		})
	}
	for range p.children {
		if err := <-results; err != nil {
			return err
		}
	}
	return nil
}
