package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "deep", "deeper")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	// The temp dir may be behind a symlink; resolve both before comparing.
	wantResolved, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != wantResolved {
		t.Errorf("FindRoot = %q, want %q", got, root)
	}
}

func TestFindRootMissing(t *testing.T) {
	if _, err := FindRoot(t.TempDir()); err == nil {
		t.Error("FindRoot found a root in a bare directory")
	}
}

func TestLoadProject(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatal(err)
	}

	content := "name = \"demo\"\n\n[project_variables]\nregion = \"eu-west-1\"\nreplicas = 3\n"
	if err := os.WriteFile(filepath.Join(root, MarkerDir, ProjectFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProject(root)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "demo" {
		t.Errorf("Name = %q, want demo", p.Name)
	}
	if p.ProjectVariables["region"] != "eu-west-1" {
		t.Errorf("region = %v, want eu-west-1", p.ProjectVariables["region"])
	}
	if p.ProjectVariables["replicas"] != int64(3) {
		t.Errorf("replicas = %v (%T), want int64(3)", p.ProjectVariables["replicas"], p.ProjectVariables["replicas"])
	}
}

func TestLoadProjectNoConfigFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProject(root)
	if err != nil {
		t.Fatal(err)
	}
	if p.Root == "" {
		t.Error("Root not set")
	}
	if p.ProjectVariables == nil {
		t.Error("ProjectVariables is nil, want empty map")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("SKIPPER_DEBUG", "")

	s, err := LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if s.PluginTimeout <= 0 {
		t.Errorf("PluginTimeout = %v, want a positive default", s.PluginTimeout)
	}
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("SKIPPER_DEBUG", "true")

	s, err := LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if !s.Debug {
		t.Error("Debug = false with SKIPPER_DEBUG=true")
	}
}
