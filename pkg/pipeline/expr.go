package pipeline

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/skipper-cli/skipper/pkg/plugin"
)

// Evaluator evaluates step conditions and argument transforms against the
// accumulated execution context.
type Evaluator struct {
	context *plugin.ExecutionContext
}

// NewEvaluator creates an evaluator over ctx.
func NewEvaluator(ctx *plugin.ExecutionContext) *Evaluator {
	return &Evaluator{context: ctx}
}

// buildEnvironment exposes the context to expressions. "results" is the
// ordered step history; "last" is the most recent result or nil.
func (e *Evaluator) buildEnvironment() map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(e.context.Results))
	for _, r := range e.context.Results {
		results = append(results, map[string]interface{}{
			"plugin":  r.Plugin,
			"success": r.Success,
			"data":    r.Data,
			"error":   r.Error,
		})
	}

	var last interface{}
	if len(results) > 0 {
		last = results[len(results)-1]
	}

	return map[string]interface{}{
		"args":    e.context.PluginArgs,
		"vars":    e.context.ProjectVariables,
		"results": results,
		"last":    last,
		"dry_run": e.context.DryRun,
	}
}

// EvaluateCondition evaluates a boolean condition. An empty condition is
// true.
func (e *Evaluator) EvaluateCondition(condition string) (bool, error) {
	if condition == "" {
		return true, nil
	}

	env := e.buildEnvironment()
	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compiling condition: %w", err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating condition: %w", err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to boolean: %v", output)
	}
	return result, nil
}

// EvaluateArgs evaluates an argument transform that must yield a map.
func (e *Evaluator) EvaluateArgs(expression string) (map[string]interface{}, error) {
	if expression == "" {
		return nil, nil
	}

	env := e.buildEnvironment()
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("compiling argument transform: %w", err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluating argument transform: %w", err)
	}

	result, ok := output.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("argument transform did not evaluate to a map: %v", output)
	}
	return result, nil
}
