// Package config loads and validates the wf configuration file. wf is a
// global tool, so there is one config per user rather than per project:
// an explicit --config path wins, then ~/.config/wf/config.yaml, then
// built-in defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/wfkit/wf/internal/errors"
)

const (
	// GlobalConfigDir is the directory for the config file, under home.
	GlobalConfigDir = ".config/wf"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'wf config init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file: the explicit path (from --config) wins,
// then ~/.config/wf/config.yaml. Returns empty string if none exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	path := DefaultPath()
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", nil
}

// DefaultPath returns where 'wf config init' writes and where Find
// looks: ~/.config/wf/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault loads config from the found path, or returns defaults
// when no config file exists. Commands work out of the box this way.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// parseConfig converts viper config to our Config struct with defaults
// merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	cfg.StoreDir = ExpandTilde(Expand(cfg.StoreDir))
	for name, host := range cfg.Hosts {
		host.Dir = ExpandRemote(host.Dir)
		cfg.Hosts[name] = host
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_dir", "~/.wf")
	v.SetDefault("max_loop_iterations", 1000)
	v.SetDefault("sync.auto_pull", true)
	v.SetDefault("assist.model", "claude-3-opus-20240229")
	v.SetDefault("assist.max_tokens", 4000)
	v.SetDefault("assist.temperature", 0.7)
	v.SetDefault("assist.timeout", "60s")
	v.SetDefault("output.color", "auto")
	v.SetDefault("output.timing", true)
	v.SetDefault("output.verbosity", "normal")
}

// Template is the commented starter config written by 'wf config init'.
const Template = `# wf configuration
version: 1

# Where commands, workflows, history, and synced repositories live.
store_dir: ~/.wf

# Shell for command steps, as "shell -flag". Default: bash -c.
# shell: zsh -c

# Safety cap for loop steps.
max_loop_iterations: 1000

# Extra regular expressions whose matching commands need approval.
# approval_patterns:
#   - "terraform\\s+destroy"

# Remote machines for 'wf run --host'.
# hosts:
#   build:
#     ssh: [you@build.example.com]
#     dir: ~/work

sync:
  auto_pull: true
  overwrite: false

assist:
  model: claude-3-opus-20240229
  max_tokens: 4000
  temperature: 0.7
  # api_key: set here or via ANTHROPIC_API_KEY

output:
  color: auto
  timing: true
  verbosity: normal
`

// WriteDefault writes the starter config to path, refusing to clobber
// an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Edit it directly, or remove it first to start over")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to create config directory",
			"Check directory permissions")
	}
	if err := os.WriteFile(path, []byte(Template), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file",
			"Check directory permissions")
	}
	return nil
}
