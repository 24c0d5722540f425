// Package config loads skipper's project and user configuration.
//
// Project configuration lives in `.skipper/skipper.toml` at the project
// root, discovered by walking upward from the working directory. User
// preferences live in the XDG config directory and may be overridden with
// SKIPPER_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// MarkerDir is the directory whose presence marks a project root.
const MarkerDir = ".skipper"

// ProjectFile is the project configuration file inside MarkerDir.
const ProjectFile = "skipper.toml"

// Project is the per-project configuration.
type Project struct {
	// Root is the discovered project root (not read from the file).
	Root string `toml:"-"`

	Name        string `toml:"name"`
	Description string `toml:"description,omitempty"`

	// ProjectVariables are free-form values exposed to every plugin via
	// the execution context.
	ProjectVariables map[string]interface{} `toml:"project_variables"`
}

// FindRoot walks upward from start looking for the project marker
// directory.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, MarkerDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found in %s or any parent", MarkerDir, start)
		}
		dir = parent
	}
}

// LoadProject discovers the project root from start and loads its
// configuration. A missing skipper.toml yields an empty configuration
// rooted at the discovered directory.
func LoadProject(start string) (*Project, error) {
	root, err := FindRoot(start)
	if err != nil {
		return nil, err
	}

	p := &Project{Root: root, ProjectVariables: map[string]interface{}{}}

	path := filepath.Join(root, MarkerDir, ProjectFile)
	if _, err := toml.DecodeFile(path, p); err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if p.ProjectVariables == nil {
		p.ProjectVariables = map[string]interface{}{}
	}
	p.Root = root
	return p, nil
}

// Settings are user-level preferences.
type Settings struct {
	// Debug enables debug logging. Also set by SKIPPER_DEBUG.
	Debug bool `mapstructure:"debug"`

	// PluginTimeout bounds each plugin execution.
	PluginTimeout time.Duration `mapstructure:"plugin_timeout"`

	// DenoBin overrides the Deno binary used to run plugins.
	DenoBin string `mapstructure:"deno_bin"`
}

// LoadSettings reads user settings from the XDG config directory and the
// environment. Missing files are fine; defaults apply.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, "skipper"))

	v.SetEnvPrefix("SKIPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("plugin_timeout", 5*time.Minute)
	v.SetDefault("deno_bin", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding user settings: %w", err)
	}
	return &s, nil
}
