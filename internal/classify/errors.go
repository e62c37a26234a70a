// Package classify assigns a company category to a speaker: ordered keyword
// heuristics first, a structured model call when no rule matches.
package classify

import "fmt"

// ClassificationError represents a failed model classification. The record still
// receives the fail-closed category.
type ClassificationError struct {
	URL     string
	Message string
	Cause   error
}

func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("classification error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("classification error for %s: %s", e.URL, e.Message)
}

func (e *ClassificationError) Unwrap() error {
	return e.Cause
}

// PolicyError represents an invalid heuristic policy.
type PolicyError struct {
	Message string
	Cause   error
}

func (e *PolicyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("policy error: %s", e.Message)
}

func (e *PolicyError) Unwrap() error {
	return e.Cause
}
