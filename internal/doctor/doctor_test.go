package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfkit/wf/internal/config"
)

type fakeCheck struct {
	name   string
	status CheckStatus
}

func (f *fakeCheck) Name() string     { return f.name }
func (f *fakeCheck) Category() string { return "TEST" }
func (f *fakeCheck) Run() CheckResult {
	return CheckResult{Name: f.name, Category: "TEST", Status: f.status}
}

func TestRunAll_PreservesOrder(t *testing.T) {
	checks := []Check{
		&fakeCheck{name: "a", status: StatusPass},
		&fakeCheck{name: "b", status: StatusFail},
		&fakeCheck{name: "c", status: StatusWarn},
	}

	results := RunAll(checks)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "b", results[1].Name)
	assert.Equal(t, "c", results[2].Name)
}

func TestRunAllParallel_KeepsIndexes(t *testing.T) {
	checks := make([]Check, 8)
	for i := range checks {
		checks[i] = &fakeCheck{name: string(rune('a' + i)), status: StatusPass}
	}

	results := RunAllParallel(checks)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, string(rune('a'+i)), r.Name)
	}
}

func TestCountByStatus(t *testing.T) {
	results := []CheckResult{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusWarn},
		{Status: StatusFail},
	}

	counts := CountByStatus(results)
	assert.Equal(t, 2, counts[StatusPass])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 1, counts[StatusFail])
	assert.True(t, HasFailures(results))
	assert.False(t, HasFailures(results[:3]))
}

func TestSummary(t *testing.T) {
	allPass := []CheckResult{{Status: StatusPass}, {Status: StatusPass}}
	assert.Equal(t, "All 2 checks passed", Summary(allPass))

	mixed := []CheckResult{{Status: StatusPass}, {Status: StatusWarn}, {Status: StatusFail}}
	assert.Equal(t, "1 passed, 1 warning, 1 failed", Summary(mixed))
}

func TestDefaultChecks_CoverConfiguredHosts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreDir = t.TempDir()
	cfg.Hosts["build"] = config.Host{SSH: []string{"dev@build"}}

	checks := DefaultChecks(cfg)

	var names []string
	for _, c := range checks {
		if c.Category() == "HOSTS" {
			names = append(names, c.Name())
		}
	}
	assert.Equal(t, []string{"ssh-config", "host:build"}, names)
}

func TestSSHConfigCheck_NoConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	result := (&sshConfigCheck{}).Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "No host aliases")
}

func TestSSHConfigCheck_AliasesWithoutKeys(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0700))
	sshConfig := "Host build\n    HostName build.example.com\n    User dev\n"
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "config"), []byte(sshConfig), 0600))

	result := (&sshConfigCheck{}).Run()
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "1 SSH config alias")
	assert.Contains(t, result.Suggestion, "ssh-keygen")
}

func TestSSHConfigCheck_AliasesWithKeys(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0700))
	sshConfig := "Host build deploy\n    User dev\n"
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "config"), []byte(sshConfig), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "id_ed25519"), []byte("key"), 0600))

	result := (&sshConfigCheck{}).Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "2 SSH config aliases, 2 with usable keys")
}

func TestConfigCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	result := (&configCheck{cfg: cfg}).Run()
	assert.Equal(t, StatusPass, result.Status)

	cfg.MaxLoopIterations = -1
	result = (&configCheck{cfg: cfg}).Run()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Suggestion, "max_loop_iterations")
}

func TestStoreCheck_CountsEntries(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreDir = t.TempDir()

	result := (&storeCheck{cfg: cfg}).Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "0 commands")
}

func TestHostCheck_NoEntries(t *testing.T) {
	result := (&hostCheck{name: "bad", host: config.Host{}}).Run()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "no SSH entries")
}
