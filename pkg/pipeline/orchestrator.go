package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/skipper-cli/skipper/pkg/args"
	"github.com/skipper-cli/skipper/pkg/plugin"
)

// Runner executes one plugin script. *plugin.Executor satisfies it; tests
// substitute fakes.
type Runner interface {
	Execute(ctx context.Context, scriptPath string, argv []string, perms *plugin.Resolved, execCtx *plugin.ExecutionContext) (*plugin.Outcome, error)
}

// Orchestrator drives a pipeline run, one step at a time.
type Orchestrator struct {
	Registry *plugin.Registry
	Runner   Runner

	// DryRun resolves and validates every step without executing anything.
	// The runner is never invoked and no results accumulate.
	DryRun bool

	// OutcomeTransform, when set, rewrites each step's outcome before it
	// is recorded. Returning the outcome unchanged is fine.
	OutcomeTransform func(step Step, outcome *plugin.Outcome) *plugin.Outcome

	// Logger receives per-step diagnostics at debug level.
	Logger *log.Logger
}

// Run is the record of one pipeline execution.
type Run struct {
	ID       string
	Pipeline string
	State    State
	Started  time.Time
	Finished time.Time

	// Context is the final accumulated execution context, including the
	// ordered result history.
	Context *plugin.ExecutionContext

	// Err is the structural or step error that failed the run, if any.
	Err error
}

// Execute runs every step of p in order against execCtx.
//
// Step failures are recorded in the context's result history, one entry
// per executed step, in order. Failed is reserved for runs that stop
// early: a structural problem (an unresolvable plugin reference, invalid
// arguments, a broken expression) or a step failure under fail-fast
// policy. A run that processes every step completes, with any failures
// visible in the history; how to exit on those is the caller's call. A
// dry run walks the same resolution path but never reaches the runner.
func (o *Orchestrator) Execute(ctx context.Context, p *Pipeline, execCtx *plugin.ExecutionContext) (*Run, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:       uuid.NewString(),
		Pipeline: p.Name,
		State:    StateCompleted,
		Started:  time.Now(),
		Context:  execCtx,
	}

	execCtx.DryRun = o.DryRun

	failFast := p.Settings != nil && p.Settings.FailFast

	for _, step := range p.Steps {
		failed, err := o.runStep(ctx, p, step, execCtx)
		if err != nil {
			run.State = StateFailed
			run.Err = fmt.Errorf("step '%s': %w", step.ID, err)
			break
		}
		if failed && failFast {
			run.State = StateFailed
			break
		}
	}

	run.Finished = time.Now()
	return run, nil
}

// runStep executes one step. The bool reports a recorded step failure; a
// non-nil error is structural and aborts the run.
func (o *Orchestrator) runStep(ctx context.Context, p *Pipeline, step Step, execCtx *plugin.ExecutionContext) (bool, error) {
	ref, err := plugin.ParseRef(step.Plugin)
	if err != nil {
		return false, err
	}

	inv, err := o.Registry.Lookup(ref)
	if err != nil {
		return false, err
	}

	eval := NewEvaluator(execCtx)
	ok, err := eval.EvaluateCondition(step.Condition)
	if err != nil {
		return false, err
	}
	if !ok {
		if o.Logger != nil {
			o.Logger.Debug("skipping step", "step", step.ID, "condition", step.Condition)
		}
		return false, nil
	}

	stepArgs, err := o.deriveArgs(step, eval, execCtx)
	if err != nil {
		return false, err
	}

	parsed, err := args.Validate(stringifyArgs(stepArgs), inv.Command.Args)
	if err != nil {
		return false, err
	}

	perms, err := plugin.Resolve(execCtx.ProjectRoot, inv.Manifest.Permissions, inv.Command.Permissions)
	if err != nil {
		return false, err
	}

	if o.DryRun {
		if o.Logger != nil {
			o.Logger.Debug("dry run, not executing", "step", step.ID, "plugin", ref)
		}
		return false, nil
	}

	execCtx.PluginArgs = parsed.Map()
	execCtx.Manifest = inv.Manifest
	execCtx.Meta = &inv.Manifest.Plugin

	if p.Settings != nil && p.Settings.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.Settings.StepTimeout))
		defer cancel()
	}

	if o.Logger != nil {
		o.Logger.Debug("executing step", "step", step.ID, "plugin", ref, "args", parsed.Map())
	}

	outcome, execErr := o.Runner.Execute(ctx, inv.ScriptPath, parsed.Tokens(), perms, execCtx)
	if execErr != nil {
		// A launch failure is still a step outcome: record it, then let
		// the fail policy decide.
		outcome = &plugin.Outcome{Success: false, Error: execErr.Error()}
	}
	if o.OutcomeTransform != nil {
		outcome = o.OutcomeTransform(step, outcome)
	}

	execCtx.AppendResult(plugin.StepResult{
		Plugin:    ref.String(),
		Success:   outcome.Success,
		Data:      outcome.Data,
		Error:     outcome.Error,
		Timestamp: time.Now(),
	})
	execCtx.MergePassthrough(outcome.Context)

	return !outcome.Success, nil
}

// deriveArgs builds the step's argument map: static args first, then the
// transform result over them. A step declaring neither inherits the
// accumulated plugin_args.
func (o *Orchestrator) deriveArgs(step Step, eval *Evaluator, execCtx *plugin.ExecutionContext) (map[string]interface{}, error) {
	if step.Args == nil && step.ArgsExpr == "" {
		out := make(map[string]interface{}, len(execCtx.PluginArgs))
		for k, v := range execCtx.PluginArgs {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]interface{}, len(step.Args))
	for k, v := range step.Args {
		out[k] = v
	}

	transformed, err := eval.EvaluateArgs(step.ArgsExpr)
	if err != nil {
		return nil, err
	}
	for k, v := range transformed {
		out[k] = v
	}
	return out, nil
}

// stringifyArgs renders an argument map to the raw string form argument
// validation consumes.
func stringifyArgs(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
