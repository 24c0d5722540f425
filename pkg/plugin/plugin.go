// Package plugin implements the plugin execution engine of skipper.
//
// A plugin is a directory of user-authored Deno scripts described by a TOML
// manifest. The manifest declares the plugin's commands, each command's
// argument schema, and the permission grants the plugin needs. Execution is
// a security boundary: a plugin runs as an isolated subprocess under exactly
// the permissions resolved from its manifest, never more.
//
// The engine exchanges structured state with the subprocess over a narrow
// JSON protocol: the execution context goes in (via a temp file or stdin),
// and a single trailing JSON result object comes back on stdout.
package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skipper-cli/skipper/pkg/args"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "plugin.toml"

// UserConfigFile is the optional per-plugin user configuration file.
const UserConfigFile = "config.toml"

// Meta identifies a plugin.
type Meta struct {
	Name        string `toml:"name" json:"name"`
	Version     string `toml:"version" json:"version"`
	Description string `toml:"description" json:"description,omitempty"`

	// Registry is the source the plugin was installed from, when known.
	Registry string `toml:"registry" json:"registry,omitempty"`
}

// Command is one invocable operation of a plugin.
type Command struct {
	// Script is the plugin-relative path of the Deno script to run.
	Script string `toml:"script" json:"script"`

	Description string `toml:"description" json:"description,omitempty"`

	// Args declares the command's argument schema. A nil schema accepts
	// any arguments as strings.
	Args *args.CommandSchema `toml:"args" json:"args,omitempty"`

	// Permissions are command-level grants, merged with the plugin-level
	// grant at resolution time.
	Permissions *Grant `toml:"permissions" json:"permissions,omitempty"`
}

// Manifest is the declarative description of a plugin.
type Manifest struct {
	Plugin   Meta               `toml:"plugin" json:"plugin"`
	Commands map[string]Command `toml:"commands" json:"commands"`

	// Permissions are plugin-level grants applying to every command.
	Permissions *Grant `toml:"permissions" json:"permissions,omitempty"`

	// DenoDependencies maps dependency names to module URLs, pre-cached
	// before execution.
	DenoDependencies map[string]string `toml:"deno_dependencies" json:"deno_dependencies,omitempty"`
}

// Validate checks the manifest for structural problems.
func (m *Manifest) Validate() error {
	if m.Plugin.Name == "" {
		return fmt.Errorf("manifest is missing plugin name")
	}
	if m.Plugin.Version == "" {
		return fmt.Errorf("plugin '%s': manifest is missing version", m.Plugin.Name)
	}
	if len(m.Commands) == 0 {
		return fmt.Errorf("plugin '%s': manifest declares no commands", m.Plugin.Name)
	}
	for name, cmd := range m.Commands {
		if cmd.Script == "" {
			return fmt.Errorf("plugin '%s': command '%s' has no script", m.Plugin.Name, name)
		}
		if cmd.Args != nil {
			cmd.Args.Command = m.Plugin.Name + ":" + name
			if err := cmd.Args.Validate(); err != nil {
				return fmt.Errorf("plugin '%s': command '%s': %w", m.Plugin.Name, name, err)
			}
		}
	}
	return nil
}

// refPattern constrains plugin and command identifiers so a ref can never
// smuggle path segments into a filesystem lookup.
var refPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Ref identifies one command of one plugin, written "plugin:command".
type Ref struct {
	Plugin  string
	Command string
}

// ParseRef parses and validates a "plugin:command" reference.
func ParseRef(s string) (Ref, error) {
	plugin, command, found := strings.Cut(s, ":")
	if !found || plugin == "" || command == "" {
		return Ref{}, fmt.Errorf("invalid plugin reference %q: expected 'plugin:command'", s)
	}
	if !refPattern.MatchString(plugin) {
		return Ref{}, fmt.Errorf("invalid plugin name %q", plugin)
	}
	if !refPattern.MatchString(command) {
		return Ref{}, fmt.Errorf("invalid command name %q", command)
	}
	return Ref{Plugin: plugin, Command: command}, nil
}

// String returns the "plugin:command" form.
func (r Ref) String() string {
	return r.Plugin + ":" + r.Command
}

// Error is a plugin execution error carrying the plugin it belongs to.
type Error struct {
	Plugin  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plugin '%s': %s: %v", e.Plugin, e.Message, e.Cause)
	}
	return fmt.Sprintf("plugin '%s': %s", e.Plugin, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a plugin error.
func NewError(plugin, message string, cause error) *Error {
	return &Error{Plugin: plugin, Message: message, Cause: cause}
}
