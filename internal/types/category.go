// Package types provides type definitions for the records that flow through the outreach pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Category is the coarse employer bucket assigned to a speaker.
type Category string

// The five known categories. Any other value is rejected at parse time.
const (
	CategoryBuilder    Category = "Builder"
	CategoryOwner      Category = "Owner"
	CategoryPartner    Category = "Partner"
	CategoryCompetitor Category = "Competitor"
	CategoryOther      Category = "Other"
)

// AllCategories lists every category in canonical order.
func AllCategories() []Category {
	return []Category{CategoryBuilder, CategoryOwner, CategoryPartner, CategoryCompetitor, CategoryOther}
}

// CategoryLabels returns the labels of AllCategories, used as the enum of model response schemas.
func CategoryLabels() []string {
	all := AllCategories()
	labels := make([]string, len(all))
	for i, c := range all {
		labels[i] = string(c)
	}
	return labels
}

// ParseCategory resolves a label case-insensitively. Unknown labels are an error.
func ParseCategory(s string) (Category, error) {
	trimmed := strings.TrimSpace(s)
	for _, c := range AllCategories() {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown company category %q", s)
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects labels outside the closed set.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("company category must be a string: %w", err)
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// targetAliases maps user-facing target names to categories.
var targetAliases = map[string]Category{
	"builder":     CategoryBuilder,
	"builders":    CategoryBuilder,
	"owner":       CategoryOwner,
	"owners":      CategoryOwner,
	"partner":     CategoryPartner,
	"partners":    CategoryPartner,
	"competitor":  CategoryCompetitor,
	"competitors": CategoryCompetitor,
	"other":       CategoryOther,
	"others":      CategoryOther,
}

// ParseTargetName resolves a single target name such as "builders" or "Owner".
func ParseTargetName(name string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := targetAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown target category %q (valid: %s)", name, strings.Join(TargetNames(), ", "))
}

// TargetNames returns the accepted plural target names, sorted.
func TargetNames() []string {
	names := []string{"builders", "owners", "partners", "competitors", "other"}
	sort.Strings(names)
	return names
}

// DecisionSource records how a category was decided.
type DecisionSource string

const (
	// DecisionHeuristic means a keyword rule matched.
	DecisionHeuristic DecisionSource = "heuristic"
	// DecisionModel means the structured model call decided (or failed closed).
	DecisionModel DecisionSource = "model"
)
