package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/skipper-cli/skipper/internal/config"
	"github.com/skipper-cli/skipper/internal/deno"
	"github.com/skipper-cli/skipper/pkg/args"
	"github.com/skipper-cli/skipper/pkg/plugin"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plugin:command> [--arg value ...]",
		Short: "Run a single plugin command",
		Long: `Run one plugin command. Everything after the plugin:command reference is
passed to the plugin as its arguments and validated against the command's
declared schema.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return runPlugin(cmd, a, argv[0], argv[1:])
		},
	}
	// Tokens after the plugin reference belong to the plugin, not to us.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runPlugin(cmd *cobra.Command, a *app, refStr string, tokens []string) error {
	ref, err := plugin.ParseRef(refStr)
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
	inv, err := registry.Lookup(ref)
	if err != nil {
		return err
	}

	provided, err := args.ParseTokens(tokens)
	if err != nil {
		return err
	}
	parsed, err := args.Validate(provided, inv.Command.Args)
	if err != nil {
		return err
	}

	perms, err := plugin.Resolve(project.Root, inv.Manifest.Permissions, inv.Command.Permissions)
	if err != nil {
		return err
	}

	userConfig, err := plugin.LoadUserConfig(inv.Dir)
	if err != nil {
		return err
	}

	execCtx := plugin.NewExecutionContext(project.Root)
	execCtx.PluginArgs = parsed.Map()
	execCtx.Manifest = inv.Manifest
	execCtx.Meta = &inv.Manifest.Plugin
	execCtx.Config = userConfig
	execCtx.ProjectVariables = project.ProjectVariables
	execCtx.DryRun = a.dryRun

	if a.dryRun {
		pterm.Info.Printfln("dry run: would execute %s", ref)
		pterm.Info.Printfln("  script: %s", inv.ScriptPath)
		pterm.Info.Printfln("  args: %s", strings.Join(parsed.Tokens(), " "))
		return nil
	}

	toolchain := &deno.Toolchain{Bin: a.settings.DenoBin, Logger: a.logger}
	if _, err := toolchain.Version(cmd.Context()); err != nil {
		return err
	}
	if err := toolchain.CacheDependencies(cmd.Context(), inv.Manifest.DenoDependencies); err != nil {
		return err
	}

	executor := &plugin.Executor{
		DenoBin: a.settings.DenoBin,
		Timeout: a.settings.PluginTimeout,
		Logger:  a.logger,
	}

	outcome, err := executor.Execute(cmd.Context(), inv.ScriptPath, parsed.Tokens(), perms, execCtx)
	if err != nil {
		return plugin.NewError(ref.Plugin, "execution failed", err)
	}

	if !outcome.Success {
		if outcome.Error != "" {
			return fmt.Errorf("%s failed: %s", ref, outcome.Error)
		}
		return fmt.Errorf("%s failed", ref)
	}

	pterm.Success.Printfln("%s completed", ref)
	printOutcomeData(outcome.Data)
	return nil
}

func printOutcomeData(data map[string]interface{}) {
	if len(data) == 0 {
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "  %s: %v\n", k, data[k])
	}
}
