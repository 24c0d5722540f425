package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LoadManifest reads and validates the plugin manifest in dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)

	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s in %s", ManifestFile, dir)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// LoadUserConfig reads the plugin's optional user configuration from dir.
// A missing file is not an error; it yields an empty configuration.
func LoadUserConfig(dir string) (map[string]interface{}, error) {
	path := filepath.Join(dir, UserConfigFile)

	var config map[string]interface{}
	if _, err := toml.DecodeFile(path, &config); err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	return config, nil
}
