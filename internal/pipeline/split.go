package pipeline

import "context"

// splitBuffer lets a fast branch run a few records ahead of a slow one.
const splitBuffer = 16

// Split is the explicit duplication point of a stream: it reads in once
// and hands every branch its own clone of each record, so branches can
// transform records independently without re-reading the source.
//
// Every returned branch must be drained; a branch that stops reading
// stalls its siblings once the buffer fills.
func Split(ctx context.Context, in <-chan *File, n int) []<-chan *File {
	outs := make([]chan *File, n)
	branches := make([]<-chan *File, n)
	for i := range outs {
		outs[i] = make(chan *File, splitBuffer)
		branches[i] = outs[i]
	}

	go func() {
		defer func() {
			for _, o := range outs {
				close(o)
			}
		}()
		for f := range in {
			if ctx.Err() != nil {
				continue
			}
			for _, o := range outs {
				send(ctx, o, f.Clone())
			}
		}
	}()
	return branches
}
