package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# authkeep configuration file
#
# Every key can be overridden with an environment variable, for example
#   AUTHKEEP_SECURITY_STOP_SERVER_ON_PROBLEM=false
#
# Durations accept Go syntax (1s, 5m, 5h). Sizes accept 64Mi, 1GB, ...

`

// InitConfig writes a sample configuration to the default location.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration to path. An existing file
// is kept unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}
	return writeSampleConfig(path)
}

// writeSampleConfig renders GetDefaultConfig with a commented header.
func writeSampleConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(sampleHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(GetDefaultConfig()); err != nil {
		return fmt.Errorf("failed to render sample config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to render sample config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
