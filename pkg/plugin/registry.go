package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PluginsDir is the project-relative directory holding installed plugins.
const PluginsDir = ".skipper/plugins"

// Registry discovers and resolves installed plugins under a project root.
type Registry struct {
	projectRoot string

	// manifests caches loaded manifests by plugin name.
	manifests map[string]*Manifest
	dirs      map[string]string
}

// NewRegistry scans projectRoot's plugin directory and loads every
// manifest it finds. Directories without a manifest are skipped; a
// directory with a broken manifest fails the scan so problems surface at
// startup rather than mid-pipeline.
func NewRegistry(projectRoot string) (*Registry, error) {
	r := &Registry{
		projectRoot: projectRoot,
		manifests:   make(map[string]*Manifest),
		dirs:        make(map[string]string),
	}

	root := filepath.Join(projectRoot, filepath.FromSlash(PluginsDir))
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("scanning plugins directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
			continue
		}
		manifest, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		r.manifests[manifest.Plugin.Name] = manifest
		r.dirs[manifest.Plugin.Name] = dir
	}
	return r, nil
}

// Plugins returns the discovered plugin names, sorted.
func (r *Registry) Plugins() []string {
	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manifest returns the manifest for a discovered plugin.
func (r *Registry) Manifest(name string) (*Manifest, bool) {
	m, ok := r.manifests[name]
	return m, ok
}

// Invocation is everything needed to execute one resolved command.
type Invocation struct {
	Manifest    *Manifest
	Command     Command
	CommandName string

	// ScriptPath is the absolute path of the command's script.
	ScriptPath string

	// Dir is the plugin's installation directory.
	Dir string
}

// NotFoundError reports a failed lookup, listing what is available.
type NotFoundError struct {
	Ref       Ref
	Available []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("plugin command '%s' not found", e.Ref)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (installed plugins: %s)", strings.Join(e.Available, ", "))
	} else {
		msg += " (no plugins installed)"
	}
	return msg
}

// Lookup resolves a plugin:command reference to an invocation.
func (r *Registry) Lookup(ref Ref) (*Invocation, error) {
	manifest, ok := r.manifests[ref.Plugin]
	if !ok {
		return nil, &NotFoundError{Ref: ref, Available: r.Plugins()}
	}
	cmd, ok := manifest.Commands[ref.Command]
	if !ok {
		return nil, &NotFoundError{Ref: ref, Available: r.Plugins()}
	}

	dir := r.dirs[ref.Plugin]
	return &Invocation{
		Manifest:    manifest,
		Command:     cmd,
		CommandName: ref.Command,
		ScriptPath:  filepath.Join(dir, filepath.FromSlash(cmd.Script)),
		Dir:         dir,
	}, nil
}
