// Package pipeline chains plugin commands into sequential, stateful runs.
//
// A pipeline is an ordered list of steps, each invoking one plugin command.
// Steps execute strictly one after another; each step sees the accumulated
// execution context, including the ordered results of every step before it.
// A step's failure is recorded like any success (the result history is
// never lossy), and whether the run continues is a pipeline policy, not a
// plugin decision.
package pipeline

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Pipeline is a parsed pipeline definition.
type Pipeline struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Steps       []Step    `yaml:"steps"`
	Settings    *Settings `yaml:"settings,omitempty"`
}

// Step invokes one plugin command.
type Step struct {
	// ID names the step within the pipeline. IDs must be unique.
	ID string `yaml:"id"`

	// Plugin is the "plugin:command" reference to invoke.
	Plugin string `yaml:"plugin"`

	// Args are static arguments for the invocation.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// ArgsExpr, when set, is an expression evaluated against the
	// accumulated context whose result map is merged over Args.
	ArgsExpr string `yaml:"args_expr,omitempty"`

	// Condition, when set, must evaluate true for the step to run.
	Condition string `yaml:"condition,omitempty"`
}

// Settings is pipeline-level policy.
type Settings struct {
	// FailFast stops the run at the first failed step. A recorded failure
	// stays in the history either way.
	FailFast bool `yaml:"fail_fast"`

	// StepTimeout bounds each step's execution.
	StepTimeout Duration `yaml:"step_timeout,omitempty"`
}

// Duration decodes Go duration strings like "30s" from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// State is the terminal state of a pipeline run.
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Validate checks the pipeline for structural problems before any step
// runs.
func (p *Pipeline) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline '%s' has no steps", p.Name)
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("pipeline '%s': step %d has no id", p.Name, i+1)
		}
		if seen[step.ID] {
			return fmt.Errorf("pipeline '%s': duplicate step id '%s'", p.Name, step.ID)
		}
		seen[step.ID] = true
		if step.Plugin == "" {
			return fmt.Errorf("pipeline '%s': step '%s' has no plugin reference", p.Name, step.ID)
		}
	}
	return nil
}
