package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wfkit/wf/internal/errors"
)

// Validate checks the config for errors and returns structured error
// messages pointing at the offending section.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but wf only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Update wf to its latest release")
	}

	if cfg.MaxLoopIterations <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("max_loop_iterations must be positive (got %d)", cfg.MaxLoopIterations),
			"Remove the setting to use the default of 1000")
	}

	if cfg.Shell != "" {
		if err := validateShellFormat("config", cfg.Shell); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				"Check the 'shell' setting in your config")
		}
	}

	for i, pattern := range cfg.ApprovalPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("approval_patterns[%d] is not a valid regular expression: %v", i, err),
				"Check the 'approval_patterns' section in your config")
		}
	}

	for name, host := range cfg.Hosts {
		if err := validateHost(name, host); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				"Check the 'hosts' section in your config")
		}
	}

	if cfg.DefaultHost != "" {
		if _, ok := cfg.Hosts[cfg.DefaultHost]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("default_host '%s' doesn't exist", cfg.DefaultHost),
				fmt.Sprintf("Available hosts: %s", strings.Join(hostNames(cfg.Hosts), ", ")))
		}
	}

	if err := validateAssist(cfg.Assist); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
			"Check the 'assist' section in your config")
	}

	if err := validateOutput(cfg.Output); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
			"Check the 'output' section in your config")
	}

	return nil
}

// validateHost checks a single host configuration.
func validateHost(name string, host Host) error {
	if len(host.SSH) == 0 {
		return fmt.Errorf("host '%s' needs at least one SSH connection (like 'user@hostname')", name)
	}
	for i, ssh := range host.SSH {
		if strings.TrimSpace(ssh) == "" {
			return fmt.Errorf("host '%s' has an empty SSH entry at position %d", name, i)
		}
	}
	// Unexpanded ${VAR} means expansion failed or a typo'd variable name.
	if strings.Contains(host.Dir, "${") {
		return fmt.Errorf("host '%s' has an unexpanded variable in dir: %s", name, host.Dir)
	}
	if host.Shell != "" {
		if err := validateShellFormat(name, host.Shell); err != nil {
			return err
		}
	}
	return nil
}

// validateShellFormat checks that the shell setting looks runnable.
func validateShellFormat(where, shell string) error {
	parts := strings.Fields(shell)
	if len(parts) == 0 {
		return fmt.Errorf("'%s' has an empty shell setting", where)
	}
	lastPart := parts[len(parts)-1]
	if !strings.HasPrefix(lastPart, "-") {
		return fmt.Errorf("'%s' shell should end with a flag like '-c'. Got '%s' - try 'bash -l -c' or 'zsh -c'", where, shell)
	}
	return nil
}

// validateAssist checks the assistant configuration.
func validateAssist(a AssistConfig) error {
	if a.MaxTokens < 0 {
		return fmt.Errorf("assist.max_tokens can't be negative")
	}
	if a.Temperature < 0 || a.Temperature > 1 {
		return fmt.Errorf("assist.temperature needs to be between 0 and 1 (got %v)", a.Temperature)
	}
	if a.Timeout < 0 {
		return fmt.Errorf("assist.timeout can't be negative")
	}
	return nil
}

// validateOutput checks output configuration.
func validateOutput(out OutputConfig) error {
	validColors := map[string]bool{"auto": true, "always": true, "never": true, "": true}
	if !validColors[out.Color] {
		return fmt.Errorf("output.color '%s' isn't valid - use 'auto', 'always', or 'never'", out.Color)
	}

	validVerbosity := map[string]bool{"quiet": true, "normal": true, "verbose": true, "": true}
	if !validVerbosity[out.Verbosity] {
		return fmt.Errorf("output.verbosity '%s' isn't valid - use 'quiet', 'normal', or 'verbose'", out.Verbosity)
	}

	return nil
}

func hostNames(hosts map[string]Host) []string {
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	return names
}
