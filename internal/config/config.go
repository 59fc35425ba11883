package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the workspace root
const ConfigFileName = ".bzltest.yaml"

// Config is the run configuration surface consumed by the
// orchestrator. Values arrive already resolved; this package only
// loads and merges them.
type Config struct {
	// Env is passed to test actions as individual --test_env pairs
	Env map[string]string `yaml:"env"`
	// EnvFile is an optional KEY=VALUE file merged into Env at run time
	EnvFile string `yaml:"env_file"`
	// Flags are user-supplied passthrough flags
	Flags []string `yaml:"flags"`
	// Coverage toggles coverage collection
	Coverage bool `yaml:"coverage"`
	// WorkspaceWide toggles workspace-wide vs package-scoped indexing
	WorkspaceWide bool `yaml:"workspace_wide"`
	// DebugPort is the delve listen port for debug runs
	DebugPort int `yaml:"debug_port"`
}

// Default returns the zero configuration with usable defaults
func Default() Config {
	return Config{
		Env:       map[string]string{},
		DebugPort: 2345,
	}
}

// Load reads .bzltest.yaml from dir if present. A missing file is not
// an error; a malformed one is.
func Load(dir string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
	if cfg.DebugPort == 0 {
		cfg.DebugPort = 2345
	}

	return cfg, nil
}

// LoadEnvFile parses a KEY=VALUE env file. Blank lines and # comments
// are skipped; lines without = are rejected.
func LoadEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer func() { _ = file.Close() }()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env file line %d: %q", lineNo, line)
		}
		env[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	return env, nil
}
