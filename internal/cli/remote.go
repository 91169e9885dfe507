package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/ui"
	"github.com/wfkit/wf/internal/util"
	"github.com/wfkit/wf/pkg/sshutil"
)

// dialTimeout bounds each SSH connection attempt. Hosts often list a
// LAN alias before a fallback, so a slow first entry must not stall
// the whole run.
const dialTimeout = 10 * time.Second

// execOnHost runs the command on a configured host, trying its SSH
// entries in order. Output streams to the local terminal.
func execOnHost(cfg *config.Config, alias, command string) (int, error) {
	name, host, err := resolveHost(cfg, alias)
	if err != nil {
		return 0, err
	}

	display := ui.NewConnectionDisplay(os.Stderr)
	display.SetQuiet(cfg.Output.Verbosity == "quiet")
	display.Start()

	var client *sshutil.Client
	for _, entry := range host.SSH {
		started := time.Now()
		c, err := sshutil.Dial(entry, dialTimeout)
		if err != nil {
			display.AddAttempt(entry, dialStatus(err), time.Since(started), err.Error())
			continue
		}
		display.AddAttempt(entry, ui.StatusSuccess, time.Since(started), "")
		display.Success(name, entry)
		client = c
		break
	}
	if client == nil {
		display.Fail(fmt.Sprintf("no SSH entry for '%s' accepted a connection", name))
		return 0, errors.New(errors.ErrSSH,
			fmt.Sprintf("Couldn't reach host '%s'", name),
			"Check the host's ssh entries in your config, or try 'ssh <entry>' by hand")
	}
	defer client.Close()

	exitCode, err := client.ExecStream(buildRemoteCommand(host, command), os.Stdout, os.Stderr)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Command failed on host '%s'", name), "")
	}
	return exitCode, nil
}

// resolveHost picks the host for --host (or --remote, which selects
// the configured default).
func resolveHost(cfg *config.Config, alias string) (string, config.Host, error) {
	if alias == "" {
		alias = cfg.DefaultHost
	}
	if alias == "" {
		return "", config.Host{}, errors.New(errors.ErrConfig,
			"No host to run on",
			"Pass --host <name>, or set default_host in your config")
	}
	host, ok := cfg.Hosts[alias]
	if !ok {
		names := make([]string, 0, len(cfg.Hosts))
		for name := range cfg.Hosts {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", config.Host{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' isn't in the config", alias),
			fmt.Sprintf("Configured hosts: %s", util.JoinOrNone(names)))
	}
	return alias, host, nil
}

// buildRemoteCommand wraps the command with the host's environment,
// working directory, and shell. The directory keeps ~ unquoted so the
// remote shell expands it.
func buildRemoteCommand(host config.Host, command string) string {
	remote := command
	if host.Shell != "" {
		remote = host.Shell + " " + util.ShellQuote(command)
	}
	if host.Dir != "" {
		remote = "cd " + util.ShellQuotePreserveTilde(host.Dir) + " && " + remote
	}
	if len(host.Env) > 0 {
		keys := make([]string, 0, len(host.Env))
		for k := range host.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		exports := make([]string, 0, len(keys))
		for _, k := range keys {
			exports = append(exports, fmt.Sprintf("export %s=%s", k, util.ShellQuote(host.Env[k])))
		}
		remote = strings.Join(exports, "; ") + "; " + remote
	}
	return remote
}

// dialStatus maps a dial error onto the connection display's status.
func dialStatus(err error) ui.ConnectionStatus {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return ui.StatusTimeout
	case strings.Contains(msg, "refused"):
		return ui.StatusRefused
	case strings.Contains(msg, "unreachable") || strings.Contains(msg, "no route"):
		return ui.StatusUnreachable
	case strings.Contains(msg, "auth") || strings.Contains(msg, "permission denied"):
		return ui.StatusAuthFailed
	default:
		return ui.StatusFailed
	}
}
