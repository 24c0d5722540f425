package main

import (
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/skipper-cli/skipper/internal/config"
	"github.com/skipper-cli/skipper/pkg/plugin"
)

func newPluginsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect installed plugins",
	}
	cmd.AddCommand(newPluginsListCmd(a))
	return cmd
}

func newPluginsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins and their commands",
		RunE: func(cmd *cobra.Command, argv []string) error {
			project, err := config.LoadProject(".")
			if err != nil {
				return err
			}
			registry, err := plugin.NewRegistry(project.Root)
			if err != nil {
				return err
			}

			names := registry.Plugins()
			if len(names) == 0 {
				pterm.Info.Println("no plugins installed")
				return nil
			}

			rows := pterm.TableData{{"Plugin", "Version", "Command", "Description"}}
			for _, name := range names {
				manifest, _ := registry.Manifest(name)
				commands := make([]string, 0, len(manifest.Commands))
				for c := range manifest.Commands {
					commands = append(commands, c)
				}
				sort.Strings(commands)
				for _, c := range commands {
					rows = append(rows, []string{
						name, manifest.Plugin.Version, c, manifest.Commands[c].Description,
					})
				}
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}
