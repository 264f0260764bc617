package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"scriptorium/internal/services"
)

// StepKind is the closed enumeration of workflow step kinds.
type StepKind string

const (
	// KindSegmentation partitions page images into layout regions.
	KindSegmentation StepKind = "segmentation"
	// KindRecognition runs text recognition over segmented regions.
	KindRecognition StepKind = "recognition"
	// KindLarexExport emits page-addressable output for the LAREX
	// correction tool; the only kind the collection bridge may import.
	KindLarexExport StepKind = "larex_export"
	// KindPostcorrection applies automatic post-correction to recognized text.
	KindPostcorrection StepKind = "postcorrection"
)

var knownKinds = map[StepKind]struct{}{
	KindSegmentation:   {},
	KindRecognition:    {},
	KindLarexExport:    {},
	KindPostcorrection: {},
}

// Importable reports whether the step kind exposes page-addressable output
// suitable for collection import.
func (k StepKind) Importable() bool {
	return k == KindLarexExport
}

// Valid reports whether the kind is part of the closed enumeration.
func (k StepKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// Step is one unit of a workflow definition.
type Step struct {
	Provider string            `json:"provider"`
	Kind     StepKind          `json:"kind"`
	Params   map[string]string `json:"params,omitempty"`
}

// Definition describes a workflow: the ordered steps a job executes against
// a parent snapshot to derive a new one.
type Definition struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Steps []Step `json:"steps"`
}

// FinalKind returns the kind of the last step, which determines what the
// derived snapshot's output looks like to downstream consumers.
func (d Definition) FinalKind() StepKind {
	if len(d.Steps) == 0 {
		return ""
	}
	return d.Steps[len(d.Steps)-1].Kind
}

// Validate checks structural requirements of a definition.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "definition requires an id", nil)
	}
	if len(d.Steps) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "definition requires at least one step", nil)
	}
	for i, step := range d.Steps {
		if strings.TrimSpace(step.Provider) == "" {
			return services.Wrap(services.ErrValidation, "workflow", "validate",
				fmt.Sprintf("step %d requires a provider", i), nil)
		}
		if !step.Kind.Valid() {
			return services.Wrap(services.ErrValidation, "workflow", "validate",
				fmt.Sprintf("step %d has unknown kind %q", i, step.Kind), nil)
		}
	}
	return nil
}

// ParseDefinition decodes and validates the JSON wire form.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, services.Wrap(services.ErrValidation, "workflow", "parse", "", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Encode renders the JSON wire form for persistence.
func (d Definition) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode workflow definition: %w", err)
	}
	return data, nil
}
