package plugin

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Grant is a declared permission request, at plugin or command level.
// Each category is a whitelist; absent categories grant nothing.
type Grant struct {
	FileRead    []string `toml:"file_read" json:"file_read,omitempty"`
	FileWrite   []string `toml:"file_write" json:"file_write,omitempty"`
	EnvAccess   bool     `toml:"env_access" json:"env_access,omitempty"`
	Network     []string `toml:"network" json:"network,omitempty"`
	RunCommands []string `toml:"run_commands" json:"run_commands,omitempty"`
}

// Resolved is the effective permission set a subprocess runs under: the
// merged, validated union of plugin-level and command-level grants. Slices
// are sorted and deduplicated, so resolution is deterministic regardless of
// declaration order.
type Resolved struct {
	FileRead    []string `json:"file_read"`
	FileWrite   []string `json:"file_write"`
	EnvAccess   bool     `json:"env_access"`
	Network     []string `json:"network"`
	RunCommands []string `json:"run_commands"`
}

// hostBinary is always permitted in run_commands so plugins can re-invoke
// the CLI itself.
const hostBinary = "skipper"

// shellInterpreters may never appear in run_commands: granting a shell
// grants everything.
var shellInterpreters = map[string]bool{
	"sh":         true,
	"bash":       true,
	"zsh":        true,
	"dash":       true,
	"fish":       true,
	"ksh":        true,
	"csh":        true,
	"tcsh":       true,
	"cmd":        true,
	"powershell": true,
	"pwsh":       true,
	"sudo":       true,
	"su":         true,
}

// Resolve merges the plugin-level and command-level grants into the
// effective permission set and validates every entry against the deny
// list. Either grant may be nil. Any denied entry fails the whole
// resolution; nothing launches on error.
//
// Resolution is a pure function of its inputs: category-wise set union,
// env_access ORed, the host binary implicitly present in run_commands,
// output sorted and deduplicated.
func Resolve(projectRoot string, pluginGrant, commandGrant *Grant) (*Resolved, error) {
	merged := &Resolved{
		FileRead:    unionSorted(grantField(pluginGrant, commandGrant, func(g *Grant) []string { return g.FileRead })),
		FileWrite:   unionSorted(grantField(pluginGrant, commandGrant, func(g *Grant) []string { return g.FileWrite })),
		Network:     unionSorted(grantField(pluginGrant, commandGrant, func(g *Grant) []string { return g.Network })),
		RunCommands: unionSorted(append(grantField(pluginGrant, commandGrant, func(g *Grant) []string { return g.RunCommands }), hostBinary)),
	}
	if pluginGrant != nil && pluginGrant.EnvAccess {
		merged.EnvAccess = true
	}
	if commandGrant != nil && commandGrant.EnvAccess {
		merged.EnvAccess = true
	}

	var problems []string

	for _, p := range merged.FileRead {
		if reason := denyPath(projectRoot, p); reason != "" {
			problems = append(problems, fmt.Sprintf("file_read %q: %s", p, reason))
		}
	}
	for _, p := range merged.FileWrite {
		if reason := denyPath(projectRoot, p); reason != "" {
			problems = append(problems, fmt.Sprintf("file_write %q: %s", p, reason))
		}
	}
	for _, h := range merged.Network {
		if reason := denyHost(h); reason != "" {
			problems = append(problems, fmt.Sprintf("network %q: %s", h, reason))
		}
	}
	for _, c := range merged.RunCommands {
		if reason := denyCommand(c); reason != "" {
			problems = append(problems, fmt.Sprintf("run_commands %q: %s", c, reason))
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("permission grant rejected:\n  %s", strings.Join(problems, "\n  "))
	}
	return merged, nil
}

// denyPath rejects filesystem entries that would escape the project root.
func denyPath(projectRoot, entry string) string {
	if entry == "" {
		return "empty path"
	}
	if strings.HasPrefix(entry, "-") {
		return "path may not start with '-'"
	}
	if filepath.IsAbs(entry) {
		rel, err := filepath.Rel(projectRoot, entry)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "absolute path outside the project root"
		}
		return ""
	}
	clean := filepath.Clean(entry)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "relative path escapes the project root"
	}
	return ""
}

// denyHost rejects network entries that widen access beyond a named host.
func denyHost(entry string) string {
	if entry == "" {
		return "empty host"
	}
	if strings.HasPrefix(entry, "-") {
		return "host may not start with '-'"
	}
	if strings.Contains(entry, "*") {
		return "wildcard hosts are not permitted"
	}
	return ""
}

// denyCommand rejects run_commands entries that would subvert the sandbox.
func denyCommand(entry string) string {
	if entry == "" {
		return "empty command"
	}
	if strings.HasPrefix(entry, "-") {
		return "command may not start with '-'"
	}
	if strings.ContainsAny(entry, " ;&|") {
		return "command must be a bare binary name"
	}
	base := strings.TrimSuffix(filepath.Base(entry), ".exe")
	if shellInterpreters[strings.ToLower(base)] {
		return "shell interpreters are not permitted"
	}
	return ""
}

// denoFlags translates the resolved permissions into Deno CLI flags, one
// flag per non-empty category. An empty category emits nothing, so the
// subprocess holds no capability that was not granted.
func (r *Resolved) denoFlags() []string {
	var flags []string
	if len(r.FileRead) > 0 {
		flags = append(flags, "--allow-read="+strings.Join(r.FileRead, ","))
	}
	if len(r.FileWrite) > 0 {
		flags = append(flags, "--allow-write="+strings.Join(r.FileWrite, ","))
	}
	if r.EnvAccess {
		flags = append(flags, "--allow-env")
	}
	if len(r.Network) > 0 {
		flags = append(flags, "--allow-net="+strings.Join(r.Network, ","))
	}
	if len(r.RunCommands) > 0 {
		flags = append(flags, "--allow-run="+strings.Join(r.RunCommands, ","))
	}
	return flags
}

// grantField collects one category from both grants, either of which may be
// nil.
func grantField(a, b *Grant, field func(*Grant) []string) []string {
	var out []string
	if a != nil {
		out = append(out, field(a)...)
	}
	if b != nil {
		out = append(out, field(b)...)
	}
	return out
}

// unionSorted deduplicates and sorts entries. The result is never nil so
// resolved permissions serialize as [] rather than null.
func unionSorted(entries []string) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
