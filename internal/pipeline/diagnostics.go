package pipeline

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/spachava753/assetpipe/internal/models"
)

// Diagnostics collects per-file stage failures of one run. It is safe for
// concurrent use by the stages of every branch.
type Diagnostics struct {
	mu     sync.Mutex
	errs   []error
	logger *slog.Logger
}

// NewDiagnostics creates a sink that also logs each failure to logger.
// A nil logger uses slog.Default.
func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{logger: logger}
}

// Report records a failure of stage on the file at path.
func (d *Diagnostics) Report(stage, path string, err error) {
	se := &models.StageError{Stage: stage, Path: path, Err: err}
	d.logger.Warn("stage failed", "stage", stage, "file", path, "error", err)
	d.mu.Lock()
	d.errs = append(d.errs, se)
	d.mu.Unlock()
}

// Len returns the number of recorded failures.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errs)
}

// Err joins all recorded failures, or returns nil.
func (d *Diagnostics) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(d.errs...)
}
