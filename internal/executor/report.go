package executor

import (
	"sort"
	"sync"
	"time"

	"github.com/spachava753/assetpipe/internal/models"
)

// GroupResult is the outcome of one GroupTask run.
type GroupResult struct {
	Task        string        `json:"task"`
	RunID       string        `json:"run_id"`
	Mode        string        `json:"mode"`
	Files       []string      `json:"files"`
	Failures    int           `json:"failures"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Report summarizes one orchestrator invocation.
type Report struct {
	Task         string        `json:"task"`
	Mode         string        `json:"mode"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	DurationSec  float64       `json:"duration_sec"`
	Groups       []GroupResult `json:"groups"`
	FilesWritten int           `json:"files_written"`
	FailedGroups int           `json:"failed_groups"`
	// FailedTask is the innermost failing task, if any.
	FailedTask string `json:"failed_task,omitempty"`
}

// Recorder collects GroupResults from concurrently running tasks.
type Recorder struct {
	mu      sync.Mutex
	results []GroupResult
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores a result.
func (r *Recorder) Record(res GroupResult) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Results returns the recorded results ordered by task id, then by
// completion time.
func (r *Recorder) Results() []GroupResult {
	r.mu.Lock()
	out := append([]GroupResult(nil), r.results...)
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Task != out[j].Task {
			return out[i].Task < out[j].Task
		}
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out
}

// Reset forgets all results.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.results = nil
	r.mu.Unlock()
}

func buildReport(task string, mode models.RunMode, started time.Time, results []GroupResult, err error) *Report {
	rep := &Report{
		Task:      task,
		Mode:      mode.String(),
		StartedAt: started,
		EndedAt:   time.Now(),
		Groups:    results,
	}
	rep.DurationSec = rep.EndedAt.Sub(rep.StartedAt).Seconds()
	for _, g := range results {
		rep.FilesWritten += len(g.Files)
		if g.Failures > 0 {
			rep.FailedGroups++
		}
	}
	if err != nil {
		rep.FailedTask = models.FailedTask(err)
	}
	return rep
}
