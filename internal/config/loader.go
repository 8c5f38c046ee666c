package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// defaultConfigPaths are searched in order when no explicit path is given.
var defaultConfigPaths = []string{"webmirror.yaml", "webmirror.yml", "webmirror.json"}

// LoadGlobalConfig loads the configuration from a file or default locations.
// YAML is preferred if the file extension is .yaml or .yml; a missing file
// with no explicit path yields the defaults.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := resolveConfigPath(providedPath)
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to read config file '"+filePath+"'")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse config content")
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath returns the explicit path, or the first default
// location that exists, or empty.
func resolveConfigPath(providedPath string) string {
	if providedPath != "" {
		return providedPath
	}
	for _, candidate := range defaultConfigPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if isYAMLFile(ext) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errorwrapper.WrapError(err, "invalid YAML in '"+filePath+"'")
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errorwrapper.WrapError(err, "invalid JSON in '"+filePath+"'")
	}
	return nil
}

func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}
