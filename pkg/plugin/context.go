package plugin

import (
	"encoding/json"
	"time"
)

// ExecutionContext is the JSON document handed to a plugin subprocess. Its
// field names are the wire protocol; plugins read them verbatim.
type ExecutionContext struct {
	// PluginArgs are the validated arguments for this invocation.
	PluginArgs map[string]interface{} `json:"plugin_args"`

	// Manifest is the invoked plugin's manifest.
	Manifest *Manifest `json:"manifest,omitempty"`

	// Config is the plugin's user configuration, when present.
	Config map[string]interface{} `json:"config,omitempty"`

	// ProjectVariables come from the project configuration file.
	ProjectVariables map[string]interface{} `json:"project_variables,omitempty"`

	// ProjectRoot is the absolute path of the project being operated on.
	ProjectRoot string `json:"project_root"`

	// Meta identifies the invoked plugin (name, version, description), so
	// scripts can read their own identity without walking the manifest.
	Meta *Meta `json:"meta,omitempty"`

	// DryRun tells the plugin it must not perform side effects.
	DryRun bool `json:"dry_run"`

	// Results is the ordered history of prior step outcomes in a pipeline.
	// It only ever grows; no merge may truncate or reorder it.
	Results []StepResult `json:"results"`
}

// StepResult records the outcome of one executed pipeline step.
type StepResult struct {
	Plugin    string                 `json:"plugin"`
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewExecutionContext returns a context with the protocol's collection
// fields initialized so they serialize as {} and [].
func NewExecutionContext(projectRoot string) *ExecutionContext {
	return &ExecutionContext{
		PluginArgs:  map[string]interface{}{},
		ProjectRoot: projectRoot,
		Results:     []StepResult{},
	}
}

// AppendResult adds one step outcome to the history, in invocation order.
func (c *ExecutionContext) AppendResult(r StepResult) {
	c.Results = append(c.Results, r)
}

// MergePassthrough merges a plugin-returned context fragment into c.
// Only the writable protocol fields are honored: plugin_args, config and
// project_variables are shallow-merged with the new values winning. The
// engine-owned fields (results, dry_run, project_root, meta, manifest)
// are ignored, so a plugin can never rewrite history or widen its run.
func (c *ExecutionContext) MergePassthrough(passthrough map[string]interface{}) {
	if passthrough == nil {
		return
	}
	if v, ok := passthrough["plugin_args"].(map[string]interface{}); ok {
		if c.PluginArgs == nil {
			c.PluginArgs = map[string]interface{}{}
		}
		for k, val := range v {
			c.PluginArgs[k] = val
		}
	}
	if v, ok := passthrough["config"].(map[string]interface{}); ok {
		if c.Config == nil {
			c.Config = map[string]interface{}{}
		}
		for k, val := range v {
			c.Config[k] = val
		}
	}
	if v, ok := passthrough["project_variables"].(map[string]interface{}); ok {
		if c.ProjectVariables == nil {
			c.ProjectVariables = map[string]interface{}{}
		}
		for k, val := range v {
			c.ProjectVariables[k] = val
		}
	}
}

// snapshot serializes the context for delivery to a subprocess.
func (c *ExecutionContext) snapshot() ([]byte, error) {
	return json.Marshal(c)
}
