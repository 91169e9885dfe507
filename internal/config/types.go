package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config is the complete wf configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// StoreDir is where commands.json, history.json, and synced
	// repositories live. Supports ~ expansion.
	StoreDir string `yaml:"store_dir" mapstructure:"store_dir"`

	// Shell runs command steps, as "shell -flag" (the command string is
	// appended). Empty means bash -c, or powershell on Windows.
	Shell string `yaml:"shell" mapstructure:"shell"`

	// MaxLoopIterations caps loop steps so a workflow cannot spin forever.
	MaxLoopIterations int `yaml:"max_loop_iterations" mapstructure:"max_loop_iterations"`

	// ApprovalPatterns are extra regular expressions (beyond the built-in
	// set) whose matching commands need explicit approval before running.
	ApprovalPatterns []string `yaml:"approval_patterns" mapstructure:"approval_patterns"`

	// Hosts are remote machines for 'wf run --host'.
	Hosts map[string]Host `yaml:"hosts" mapstructure:"hosts"`

	// DefaultHost is used when --host is given without a name.
	DefaultHost string `yaml:"default_host" mapstructure:"default_host"`

	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Assist AssistConfig `yaml:"assist" mapstructure:"assist"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// Host defines a remote machine and its connection settings.
type Host struct {
	// SSH connection strings, tried in order until one succeeds.
	// Can be: hostname, user@hostname, or SSH config alias.
	SSH []string `yaml:"ssh" mapstructure:"ssh"`

	// Dir is the working directory on the remote. Supports variable
	// expansion: ${PROJECT}, ${USER}, ${HOME}.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Shell overrides the remote shell, as "shell -flag".
	Shell string `yaml:"shell" mapstructure:"shell"`

	// Env contains environment variables specific to this host.
	Env map[string]string `yaml:"env" mapstructure:"env"`
}

// SyncConfig controls git-based sharing of commands and workflows.
type SyncConfig struct {
	// AutoPull pulls registered repositories before 'wf sync import'.
	AutoPull bool `yaml:"auto_pull" mapstructure:"auto_pull"`

	// Overwrite lets synced entries replace local ones with the same name.
	Overwrite bool `yaml:"overwrite" mapstructure:"overwrite"`
}

// AssistConfig configures the 'wf ask' assistant.
type AssistConfig struct {
	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`

	// Timeout bounds a single API request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`

	// Timing shows per-step durations after a workflow run.
	Timing bool `yaml:"timing" mapstructure:"timing"`

	// Verbosity level: "quiet", "normal", or "verbose".
	Verbosity string `yaml:"verbosity" mapstructure:"verbosity"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:           CurrentConfigVersion,
		StoreDir:          "~/.wf",
		MaxLoopIterations: 1000,
		Hosts:             make(map[string]Host),
		Sync: SyncConfig{
			AutoPull: true,
		},
		Assist: AssistConfig{
			Model:       "claude-3-opus-20240229",
			MaxTokens:   4000,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Output: OutputConfig{
			Color:     "auto",
			Timing:    true,
			Verbosity: "normal",
		},
	}
}
