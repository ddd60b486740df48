package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks failures detected before any task executes.
	ErrConfiguration = errors.New("configuration error")
	ErrDuplicateTask = errors.New("duplicate task")
	ErrUnknownTask   = errors.New("unknown task")
)

// ConfigError describes an invalid configuration entry.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Configf builds a ConfigError for field.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// DuplicateTaskError is returned when a task id is registered twice.
// It is also a configuration error since task ids derive from config.
type DuplicateTaskError struct {
	ID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("%s: %q already registered", ErrDuplicateTask, e.ID)
}

func (e *DuplicateTaskError) Is(target error) bool {
	return target == ErrDuplicateTask || target == ErrConfiguration
}

// UnknownTaskError is returned when a task id cannot be resolved.
type UnknownTaskError struct {
	ID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownTask, e.ID)
}

func (e *UnknownTaskError) Is(target error) bool { return target == ErrUnknownTask }

// StageError is a per-file transform failure. The offending file is dropped
// from its stream; the remaining files keep flowing.
type StageError struct {
	Stage string
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TaskFailure wraps the error of a task that did not complete successfully.
type TaskFailure struct {
	Task string
	Err  error
}

func (e *TaskFailure) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskFailure) Unwrap() error { return e.Err }

// FailedTask returns the innermost task named in err's TaskFailure chain,
// or "" if err carries none.
func FailedTask(err error) string {
	var id string
	for err != nil {
		var tf *TaskFailure
		if !errors.As(err, &tf) {
			break
		}
		id = tf.Task
		err = tf.Err
	}
	return id
}
