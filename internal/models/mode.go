package models

import "fmt"

// RunMode selects which output variants a run produces. It is fixed for
// the duration of one orchestrator invocation.
type RunMode int

const (
	Development RunMode = iota
	Production
)

func (m RunMode) String() string {
	switch m {
	case Development:
		return "development"
	case Production:
		return "production"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}
