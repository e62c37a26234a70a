// Package steps defines the pipeline stages, the checkpoint each one owns, and
// which stages a requested stage expands to.
package steps

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Stage names
const (
	Scrape     = "scrape"
	Categorize = "categorize"
	Email      = "email"
	Report     = "report"

	// All is a request alias, not a stage of its own
	All = "all"
)

// StageDefinition defines metadata for a pipeline stage
type StageDefinition struct {
	Name       string
	Checkpoint string // file name under the data dir; empty when the stage writes none
	Network    bool   // uses the network concurrency limit
	Model      bool   // uses the model concurrency limit
}

// StageRegistry holds all stage definitions
var StageRegistry = map[string]StageDefinition{
	Scrape: {
		Name:       Scrape,
		Checkpoint: "speakers_enriched.jsonl",
		Network:    true,
	},
	Categorize: {
		Name:       Categorize,
		Checkpoint: "speakers_categorized.jsonl",
		Model:      true,
	},
	Email: {
		Name:       Email,
		Checkpoint: "emails.jsonl",
		Model:      true,
	},
	Report: {
		Name: Report,
	},
}

// requests maps a requested stage to the stages it runs. Stages after scrape read
// their input from the previous stage's checkpoint when it did not run.
var requests = map[string][]string{
	Scrape:     {Scrape},
	Categorize: {Categorize},
	Email:      {Categorize, Email, Report},
	All:        {Scrape, Categorize, Email, Report},
}

// UnknownStageError is returned for a stage name outside the registry
type UnknownStageError struct {
	Stage string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q (want one of %s)", e.Stage, strings.Join(RequestNames(), ", "))
}

// Plan returns the stages to run for a requested stage, in execution order
func Plan(requested string) ([]string, error) {
	stages, ok := requests[strings.ToLower(strings.TrimSpace(requested))]
	if !ok {
		return nil, &UnknownStageError{Stage: requested}
	}
	out := make([]string, len(stages))
	copy(out, stages)
	return out, nil
}

// Includes reports whether plan contains stage
func Includes(plan []string, stage string) bool {
	for _, s := range plan {
		if s == stage {
			return true
		}
	}
	return false
}

// RequestNames lists the accepted --stage values
func RequestNames() []string {
	return []string{Scrape, Categorize, Email, All}
}

// Resources reports whether any stage of plan uses the network or the model limit
func Resources(plan []string) (network, model bool) {
	for _, name := range plan {
		def := StageRegistry[name]
		network = network || def.Network
		model = model || def.Model
	}
	return network, model
}

// CheckpointPath returns the checkpoint file of stage under dataDir
func CheckpointPath(dataDir, stage string) (string, error) {
	def, ok := StageRegistry[stage]
	if !ok {
		return "", &UnknownStageError{Stage: stage}
	}
	if def.Checkpoint == "" {
		return "", fmt.Errorf("stage %s has no checkpoint", stage)
	}
	return filepath.Join(dataDir, def.Checkpoint), nil
}
