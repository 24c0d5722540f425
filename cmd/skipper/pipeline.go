package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/skipper-cli/skipper/internal/config"
	"github.com/skipper-cli/skipper/internal/deno"
	"github.com/skipper-cli/skipper/pkg/pipeline"
	"github.com/skipper-cli/skipper/pkg/plugin"
)

func newPipelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <file.yaml>",
		Short: "Run a pipeline of plugin commands",
		Long: `Run the steps of a YAML pipeline definition in order. Each step sees
the accumulated context, including the results of every step before it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return runPipeline(cmd, a, argv[0])
		},
	}
}

func runPipeline(cmd *cobra.Command, a *app, path string) error {
	p, err := pipeline.Load(path)
	if err != nil {
		return err
	}

	project, err := config.LoadProject(".")
	if err != nil {
		return err
	}

	registry, err := plugin.NewRegistry(project.Root)
	if err != nil {
		return err
	}

	if !a.dryRun {
		toolchain := &deno.Toolchain{Bin: a.settings.DenoBin, Logger: a.logger}
		if _, err := toolchain.Version(cmd.Context()); err != nil {
			return err
		}
		for _, name := range registry.Plugins() {
			manifest, _ := registry.Manifest(name)
			if err := toolchain.CacheDependencies(cmd.Context(), manifest.DenoDependencies); err != nil {
				return err
			}
		}
	}

	orch := &pipeline.Orchestrator{
		Registry: registry,
		Runner: &plugin.Executor{
			DenoBin: a.settings.DenoBin,
			Timeout: a.settings.PluginTimeout,
			Logger:  a.logger,
		},
		DryRun: a.dryRun,
		Logger: a.logger,
	}

	execCtx := plugin.NewExecutionContext(project.Root)
	execCtx.ProjectVariables = project.ProjectVariables

	run, err := orch.Execute(cmd.Context(), p, execCtx)
	if err != nil {
		return err
	}

	failures := 0
	for _, r := range run.Context.Results {
		if r.Success {
			pterm.Success.Printfln("%s", r.Plugin)
		} else {
			failures++
			pterm.Error.Printfln("%s: %s", r.Plugin, r.Error)
		}
	}

	if a.dryRun {
		pterm.Info.Printfln("dry run: pipeline '%s' validated, %d steps", p.Name, len(p.Steps))
		return nil
	}

	if run.State != pipeline.StateCompleted {
		if run.Err != nil {
			return fmt.Errorf("pipeline '%s' failed: %w", p.Name, run.Err)
		}
		return fmt.Errorf("pipeline '%s' failed", p.Name)
	}
	if failures > 0 {
		return fmt.Errorf("pipeline '%s' completed with %d failed step(s)", p.Name, failures)
	}
	pterm.Success.Printfln("pipeline '%s' completed (%d steps, run %s)", p.Name, len(run.Context.Results), run.ID)
	return nil
}
