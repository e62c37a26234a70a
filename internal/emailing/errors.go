// Package emailing drafts short personalized outreach emails for categorized
// speakers.
package emailing

import (
	"errors"
	"fmt"
)

// ErrCompetitorExcluded is returned for any record categorized as Competitor. No
// model call is made for such records.
var ErrCompetitorExcluded = errors.New("competitors are never emailed")

// DraftError represents a failed draft for one speaker.
type DraftError struct {
	URL     string
	Message string
	Cause   error
}

func (e *DraftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("draft error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("draft error for %s: %s", e.URL, e.Message)
}

func (e *DraftError) Unwrap() error {
	return e.Cause
}
