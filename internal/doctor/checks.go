package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/store"
	"github.com/wfkit/wf/internal/util"
	"github.com/wfkit/wf/pkg/sshutil"
)

// DefaultChecks builds the standard check set for the given config.
func DefaultChecks(cfg *config.Config) []Check {
	checks := []Check{
		&configCheck{cfg: cfg},
		&storeCheck{cfg: cfg},
		&shellCheck{shell: cfg.Shell},
		&gitCheck{},
		&assistCheck{cfg: cfg},
	}
	if len(cfg.Hosts) > 0 {
		checks = append(checks, &sshConfigCheck{})
	}
	for name, host := range cfg.Hosts {
		checks = append(checks, &hostCheck{name: name, host: host})
	}
	return checks
}

// configCheck verifies the active config validates.
type configCheck struct {
	cfg *config.Config
}

func (c *configCheck) Name() string     { return "config" }
func (c *configCheck) Category() string { return "CONFIG" }

func (c *configCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	if err := config.Validate(c.cfg); err != nil {
		result.Status = StatusFail
		result.Message = "Config is invalid"
		result.Suggestion = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = "Config is valid"
	return result
}

// storeCheck verifies the store directory opens and loads.
type storeCheck struct {
	cfg *config.Config
}

func (c *storeCheck) Name() string     { return "store" }
func (c *storeCheck) Category() string { return "STORE" }

func (c *storeCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	s, err := store.Open(c.cfg.StoreDir, logger.Noop())
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Store at %s won't open", c.cfg.StoreDir)
		result.Suggestion = err.Error()
		return result
	}
	commands, _ := s.ListCommands()
	workflows, _ := s.ListWorkflows()
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Store holds %d %s and %d %s",
		len(commands), util.Pluralize(len(commands), "command", "commands"),
		len(workflows), util.Pluralize(len(workflows), "workflow", "workflows"))
	return result
}

// shellCheck verifies the configured shell binary exists.
type shellCheck struct {
	shell string
}

func (c *shellCheck) Name() string     { return "shell" }
func (c *shellCheck) Category() string { return "TOOLS" }

func (c *shellCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	shell := c.shell
	if shell == "" {
		shell = "bash -c"
	}
	binary := strings.Fields(shell)[0]
	path, err := exec.LookPath(binary)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Shell '%s' not found on PATH", binary)
		result.Suggestion = "Set 'shell' in your config to an installed shell, like 'zsh -c'"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Shell %s found at %s", binary, path)
	return result
}

// gitCheck verifies git is available for 'wf sync'.
type gitCheck struct{}

func (c *gitCheck) Name() string     { return "git" }
func (c *gitCheck) Category() string { return "TOOLS" }

func (c *gitCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	path, err := exec.LookPath("git")
	if err != nil {
		result.Status = StatusWarn
		result.Message = "git not found on PATH"
		result.Suggestion = "'wf sync' needs git; install it to use repository syncing"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("git found at %s", path)
	return result
}

// assistCheck reports whether the assistant has an API key.
type assistCheck struct {
	cfg *config.Config
}

func (c *assistCheck) Name() string     { return "assist" }
func (c *assistCheck) Category() string { return "ASSIST" }

func (c *assistCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	if c.cfg.Assist.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		result.Status = StatusWarn
		result.Message = "No Anthropic API key configured"
		result.Suggestion = "Set assist.api_key or ANTHROPIC_API_KEY to use 'wf ask'"
		return result
	}
	result.Status = StatusPass
	result.Message = "Anthropic API key is configured"
	return result
}

// sshConfigCheck reports whether ~/.ssh/config has usable host aliases
// for remote runs. Entries in hosts.*.ssh may name these aliases instead
// of spelling out user@hostname.
type sshConfigCheck struct{}

func (c *sshConfigCheck) Name() string     { return "ssh-config" }
func (c *sshConfigCheck) Category() string { return "HOSTS" }

func (c *sshConfigCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		result.Status = StatusWarn
		result.Message = "Couldn't parse ~/.ssh/config"
		result.Suggestion = err.Error()
		return result
	}
	if len(entries) == 0 {
		result.Status = StatusPass
		result.Message = "No host aliases in ~/.ssh/config; SSH entries must spell out user@hostname"
		return result
	}
	withKeys := sshutil.FilterHostsWithKeys(entries)
	if len(withKeys) == 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d SSH config %s but no identity files found", len(entries),
			util.Pluralize(len(entries), "alias", "aliases"))
		result.Suggestion = "Generate a key with ssh-keygen and copy it with ssh-copy-id"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d SSH config %s, %d with usable keys", len(entries),
		util.Pluralize(len(entries), "alias", "aliases"), len(withKeys))
	return result
}

// hostCheck verifies a configured host's entries look usable without
// dialing: entries present and an SSH client config that can resolve
// them.
type hostCheck struct {
	name string
	host config.Host
}

func (c *hostCheck) Name() string     { return "host:" + c.name }
func (c *hostCheck) Category() string { return "HOSTS" }

func (c *hostCheck) Run() CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	if len(c.host.SSH) == 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Host '%s' has no SSH entries", c.name)
		result.Suggestion = "Add at least one entry like 'user@hostname' under hosts." + c.name + ".ssh"
		return result
	}
	if _, err := os.Stat(filepath.Join(homeDir(), ".ssh")); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Host '%s': no ~/.ssh directory for keys", c.name)
		result.Suggestion = "Generate a key with ssh-keygen and copy it with ssh-copy-id"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Host '%s' has %d SSH %s", c.name,
		len(c.host.SSH), util.Pluralize(len(c.host.SSH), "entry", "entries"))
	return result
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
