// Package checkpoint implements the append-only JSON-lines logs that record each
// pipeline stage's output and make re-runs skip work already done.
package checkpoint

import "fmt"

// Error represents a checkpoint file failure.
type Error struct {
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("checkpoint %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("checkpoint %s: %s", e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
