package classify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/speaker-outreach/internal/types"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Rule maps any of its keywords to a category.
type Rule struct {
	Category types.Category `yaml:"category"`
	Keywords []string       `yaml:"keywords"`
}

// Policy is the ordered heuristic table. Earlier rules win.
type Policy struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in policy is invalid: %v", err))
	}
	return p
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PolicyError{Message: fmt.Sprintf("failed to read policy file %s", path), Cause: err}
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy. Keywords are case-folded once
// here; surrounding spaces are significant ("gc " must not match "gcs").
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &PolicyError{Message: "failed to parse policy YAML", Cause: err}
	}
	if len(p.Rules) == 0 {
		return nil, &PolicyError{Message: "policy has no rules"}
	}

	folder := cases.Fold()
	for i := range p.Rules {
		rule := &p.Rules[i]
		category, err := types.ParseCategory(string(rule.Category))
		if err != nil {
			return nil, &PolicyError{Message: fmt.Sprintf("rule %d", i+1), Cause: err}
		}
		rule.Category = category
		if len(rule.Keywords) == 0 {
			return nil, &PolicyError{Message: fmt.Sprintf("rule %d (%s) has no keywords", i+1, category)}
		}
		for j, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				return nil, &PolicyError{Message: fmt.Sprintf("rule %d (%s) has an empty keyword", i+1, category)}
			}
			rule.Keywords[j] = folder.String(kw)
		}
	}
	return &p, nil
}

// Match returns the category of the first rule with a keyword contained in the
// speaker's company, title and bio. ok is false when no rule matches.
func (p *Policy) Match(sp types.Speaker) (category types.Category, keyword string, ok bool) {
	hay := p.haystack(sp)
	if hay == "" {
		return "", "", false
	}
	for _, rule := range p.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(hay, kw) {
				return rule.Category, kw, true
			}
		}
	}
	return "", "", false
}

// A Caser is stateful, so each call folds with its own.
func (p *Policy) haystack(sp types.Speaker) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{sp.Company, sp.Title, sp.Bio} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return cases.Fold().String(strings.Join(parts, " "))
}
