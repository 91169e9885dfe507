package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfkit/wf/internal/config"
	wferrors "github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/ui"
	sshtest "github.com/wfkit/wf/pkg/sshutil/testing"
)

func TestResolveHostUsesDefault(t *testing.T) {
	cfg := &config.Config{
		DefaultHost: "build",
		Hosts: map[string]config.Host{
			"build": {SSH: []string{"build.local"}},
		},
	}

	name, host, err := resolveHost(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "build", name)
	assert.Equal(t, []string{"build.local"}, host.SSH)
}

func TestResolveHostNoHosts(t *testing.T) {
	cfg := &config.Config{}

	_, _, err := resolveHost(cfg, "")
	require.Error(t, err)
	assert.True(t, wferrors.IsCode(err, wferrors.ErrConfig))
	assert.Contains(t, err.Error(), "No host to run on")
}

func TestResolveHostUnknownListsConfigured(t *testing.T) {
	cfg := &config.Config{
		Hosts: map[string]config.Host{
			"beta":  {SSH: []string{"beta.local"}},
			"alpha": {SSH: []string{"alpha.local"}},
		},
	}

	_, _, err := resolveHost(cfg, "gamma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'gamma'")
	// Suggestion lists the configured hosts in sorted order.
	assert.Contains(t, err.Error(), "alpha, beta")
}

func TestBuildRemoteCommandBare(t *testing.T) {
	cmd := buildRemoteCommand(config.Host{}, "echo hi")
	assert.Equal(t, "echo hi", cmd)
}

func TestBuildRemoteCommandShellWrap(t *testing.T) {
	host := config.Host{Shell: "zsh -c"}
	cmd := buildRemoteCommand(host, "echo hi")
	assert.Equal(t, "zsh -c 'echo hi'", cmd)
}

func TestBuildRemoteCommandDirKeepsTilde(t *testing.T) {
	host := config.Host{Dir: "~/projects/app"}
	cmd := buildRemoteCommand(host, "make test")
	assert.Equal(t, "cd ~/'projects/app' && make test", cmd)
}

func TestBuildRemoteCommandEnvSorted(t *testing.T) {
	host := config.Host{
		Env: map[string]string{
			"ZONE": "us-east",
			"APP":  "wf",
		},
	}
	cmd := buildRemoteCommand(host, "deploy")
	assert.Equal(t, "export APP='wf'; export ZONE='us-east'; deploy", cmd)
}

func TestBuildRemoteCommandCombined(t *testing.T) {
	host := config.Host{
		Shell: "bash -c",
		Dir:   "/srv/app",
		Env:   map[string]string{"ENV": "prod"},
	}
	cmd := buildRemoteCommand(host, "bin/migrate up")
	assert.Equal(t, "export ENV='prod'; cd '/srv/app' && bash -c 'bin/migrate up'", cmd)
}

func TestDialStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ui.ConnectionStatus
	}{
		{"timeout", errors.New("dial tcp: i/o timeout"), ui.StatusTimeout},
		{"timed out", errors.New("connection timed out"), ui.StatusTimeout},
		{"refused", errors.New("connect: connection refused"), ui.StatusRefused},
		{"unreachable", errors.New("network is unreachable"), ui.StatusUnreachable},
		{"no route", errors.New("no route to host"), ui.StatusUnreachable},
		{"auth", errors.New("ssh: unable to authenticate"), ui.StatusAuthFailed},
		{"permission", errors.New("permission denied (publickey)"), ui.StatusAuthFailed},
		{"other", errors.New("something odd"), ui.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dialStatus(tt.err))
		})
	}
}

func TestRemoteCommandStreamsOutput(t *testing.T) {
	host := config.Host{Shell: "bash -c", Dir: "/srv/app"}
	remote := buildRemoteCommand(host, "bin/status")

	client := sshtest.NewMockClient("build.local")
	client.SetCommandResponse(remote, sshtest.CommandResponse{
		Stdout:   []byte("all good\n"),
		ExitCode: 0,
	})

	var stdout, stderr bytes.Buffer
	code, err := client.ExecStream(remote, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "all good\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRemoteCommandPropagatesExitCode(t *testing.T) {
	remote := buildRemoteCommand(config.Host{}, "bin/flaky")

	client := sshtest.NewMockClient("build.local")
	client.SetCommandResponse(remote, sshtest.CommandResponse{
		Stderr:   []byte("boom\n"),
		ExitCode: 3,
	})

	var stdout, stderr bytes.Buffer
	code, err := client.ExecStream(remote, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr.String(), "boom")
}
