package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skipper-cli/skipper/pkg/plugin"
)

const buildManifest = `
[plugin]
name = "build"
version = "2.0.0"

[commands.prepare]
script = "prepare.ts"

[commands.compile]
script = "compile.ts"

[commands.publish]
script = "publish.ts"
`

func testRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, ".skipper", "plugins", "build")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte(buildManifest), 0o644))

	registry, err := plugin.NewRegistry(root)
	require.NoError(t, err)
	return registry
}

// fakeRunner records invocations and replays scripted outcomes keyed by
// script file name.
type fakeRunner struct {
	calls    []string
	argv     map[string][]string
	metas    map[string]*plugin.Meta
	outcomes map[string]*plugin.Outcome
	errs     map[string]error
}

func (f *fakeRunner) Execute(ctx context.Context, scriptPath string, argv []string, perms *plugin.Resolved, execCtx *plugin.ExecutionContext) (*plugin.Outcome, error) {
	name := filepath.Base(scriptPath)
	f.calls = append(f.calls, name)
	if f.argv == nil {
		f.argv = map[string][]string{}
	}
	f.argv[name] = argv
	if f.metas == nil {
		f.metas = map[string]*plugin.Meta{}
	}
	f.metas[name] = execCtx.Meta

	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if outcome, ok := f.outcomes[name]; ok {
		return outcome, nil
	}
	return &plugin.Outcome{Success: true}, nil
}

func threeStepPipeline(failFast bool) *Pipeline {
	return &Pipeline{
		Name: "release",
		Steps: []Step{
			{ID: "prepare", Plugin: "build:prepare"},
			{ID: "compile", Plugin: "build:compile"},
			{ID: "publish", Plugin: "build:publish"},
		},
		Settings: &Settings{FailFast: failFast},
	}
}

func TestExecuteAllStepsSucceed(t *testing.T) {
	runner := &fakeRunner{}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	run, err := orch.Execute(context.Background(), threeStepPipeline(false), plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, []string{"prepare.ts", "compile.ts", "publish.ts"}, runner.calls)

	require.Len(t, run.Context.Results, 3)
	for i, want := range []string{"build:prepare", "build:compile", "build:publish"} {
		assert.Equal(t, want, run.Context.Results[i].Plugin)
		assert.True(t, run.Context.Results[i].Success)
	}

	// Every step's context identifies the invoked plugin.
	require.NotNil(t, runner.metas["compile.ts"])
	assert.Equal(t, "build", runner.metas["compile.ts"].Name)
	assert.Equal(t, "2.0.0", runner.metas["compile.ts"].Version)
}

func TestExecuteMidFailureContinues(t *testing.T) {
	runner := &fakeRunner{
		outcomes: map[string]*plugin.Outcome{
			"compile.ts": {Success: false, Error: "type error in main.ts"},
		},
	}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	run, err := orch.Execute(context.Background(), threeStepPipeline(false), plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	// The failing step is recorded like any other, the run carries on,
	// and processing every step still completes the run.
	assert.Equal(t, StateCompleted, run.State)
	require.Len(t, run.Context.Results, 3)
	assert.True(t, run.Context.Results[0].Success)
	assert.False(t, run.Context.Results[1].Success)
	assert.Equal(t, "type error in main.ts", run.Context.Results[1].Error)
	assert.True(t, run.Context.Results[2].Success)
}

func TestExecuteFailFastStops(t *testing.T) {
	runner := &fakeRunner{
		outcomes: map[string]*plugin.Outcome{
			"compile.ts": {Success: false, Error: "boom"},
		},
	}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	run, err := orch.Execute(context.Background(), threeStepPipeline(true), plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, run.State)
	assert.Equal(t, []string{"prepare.ts", "compile.ts"}, runner.calls)
	require.Len(t, run.Context.Results, 2)
	assert.False(t, run.Context.Results[1].Success)
}

func TestExecuteRunnerErrorBecomesStepFailure(t *testing.T) {
	runner := &fakeRunner{
		errs: map[string]error{
			"prepare.ts": os.ErrPermission,
		},
	}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	run, err := orch.Execute(context.Background(), threeStepPipeline(true), plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, run.State)
	require.Len(t, run.Context.Results, 1)
	assert.False(t, run.Context.Results[0].Success)
	assert.Contains(t, run.Context.Results[0].Error, "permission denied")
}

func TestExecuteDryRunNeverInvokesRunner(t *testing.T) {
	runner := &fakeRunner{}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner, DryRun: true}

	run, err := orch.Execute(context.Background(), threeStepPipeline(false), plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State)
	assert.Empty(t, runner.calls)
	assert.Empty(t, run.Context.Results)
}

func TestExecuteUnresolvableRefFailsRun(t *testing.T) {
	runner := &fakeRunner{}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	p := &Pipeline{
		Name: "broken",
		Steps: []Step{
			{ID: "a", Plugin: "build:prepare"},
			{ID: "b", Plugin: "missing:command"},
			{ID: "c", Plugin: "build:publish"},
		},
	}

	run, err := orch.Execute(context.Background(), p, plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	assert.Equal(t, StateFailed, run.State)
	require.Error(t, run.Err)
	assert.Contains(t, run.Err.Error(), "not found")
	// The structural failure aborts before step c; step a's result stays.
	assert.Equal(t, []string{"prepare.ts"}, runner.calls)
	assert.Len(t, run.Context.Results, 1)
}

func TestExecuteDuplicateStepIDs(t *testing.T) {
	orch := &Orchestrator{Registry: testRegistry(t), Runner: &fakeRunner{}}

	p := &Pipeline{
		Name: "dupes",
		Steps: []Step{
			{ID: "x", Plugin: "build:prepare"},
			{ID: "x", Plugin: "build:compile"},
		},
	}

	_, err := orch.Execute(context.Background(), p, plugin.NewExecutionContext("/project"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestExecuteConditionSkips(t *testing.T) {
	runner := &fakeRunner{}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	p := &Pipeline{
		Name: "conditional",
		Steps: []Step{
			{ID: "always", Plugin: "build:prepare"},
			{ID: "never", Plugin: "build:compile", Condition: `vars["mode"] == "full"`},
		},
	}

	execCtx := plugin.NewExecutionContext("/project")
	execCtx.ProjectVariables = map[string]interface{}{"mode": "fast"}

	run, err := orch.Execute(context.Background(), p, execCtx)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State)
	assert.Equal(t, []string{"prepare.ts"}, runner.calls)
	assert.Len(t, run.Context.Results, 1)
}

func TestExecutePassthroughFlowsToNextStep(t *testing.T) {
	runner := &fakeRunner{
		outcomes: map[string]*plugin.Outcome{
			"prepare.ts": {
				Success: true,
				Context: map[string]interface{}{
					"plugin_args": map[string]interface{}{"token": "abc123"},
				},
			},
		},
	}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	p := &Pipeline{
		Name: "handoff",
		Steps: []Step{
			{ID: "prepare", Plugin: "build:prepare", Args: map[string]interface{}{"target": "linux"}},
			// No args declared: inherits the accumulated plugin_args.
			{ID: "compile", Plugin: "build:compile"},
		},
	}

	run, err := orch.Execute(context.Background(), p, plugin.NewExecutionContext("/project"))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.State)

	assert.Contains(t, runner.argv["compile.ts"], "--token")
	assert.Contains(t, runner.argv["compile.ts"], "abc123")
}

func TestExecuteOutcomeTransform(t *testing.T) {
	runner := &fakeRunner{}
	orch := &Orchestrator{
		Registry: testRegistry(t),
		Runner:   runner,
		OutcomeTransform: func(step Step, outcome *plugin.Outcome) *plugin.Outcome {
			if step.ID == "compile" {
				return &plugin.Outcome{Success: false, Error: "rejected by policy"}
			}
			return outcome
		},
	}

	run, err := orch.Execute(context.Background(), threeStepPipeline(false), plugin.NewExecutionContext("/project"))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State)
	require.Len(t, run.Context.Results, 3)
	assert.False(t, run.Context.Results[1].Success)
	assert.Equal(t, "rejected by policy", run.Context.Results[1].Error)
}

func TestExecuteArgsExprTransform(t *testing.T) {
	runner := &fakeRunner{
		outcomes: map[string]*plugin.Outcome{
			"prepare.ts": {Success: true, Data: map[string]interface{}{"artifact": "app.tar.gz"}},
		},
	}
	orch := &Orchestrator{Registry: testRegistry(t), Runner: runner}

	p := &Pipeline{
		Name: "transform",
		Steps: []Step{
			{ID: "prepare", Plugin: "build:prepare"},
			{ID: "publish", Plugin: "build:publish", ArgsExpr: `{"file": last.data.artifact}`},
		},
	}

	run, err := orch.Execute(context.Background(), p, plugin.NewExecutionContext("/project"))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.State)

	assert.Equal(t, []string{"--file", "app.tar.gz"}, runner.argv["publish.ts"])
}
