// Package gitsync keeps a registry of git repositories that share
// commands and workflows across machines. Repositories are cloned under
// the store directory, pulled fast-forward only, and their workflows/
// directory is merged into the local store through the import path so
// synced files get the same schema validation as manual imports.
package gitsync

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/share"
	"github.com/wfkit/wf/internal/store"
)

// RegistryFile is the repository registry inside the sync directory.
const RegistryFile = "repos.json"

// RepoConfig is one registered repository.
type RepoConfig struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Runner executes git with the given arguments, in dir when dir is not
// empty, and returns combined output. Injectable for tests.
type Runner func(dir string, args ...string) (string, error)

// gitRunner is the default Runner, shelling out to the git binary.
func gitRunner(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return string(out), errors.New(errors.ErrSync,
				fmt.Sprintf("git %s failed: %s", args[0], strings.TrimSpace(string(out))),
				"Check the repository URL and your network connection")
		}
		return string(out), errors.WrapWithCode(err, errors.ErrSync,
			"Failed to run git",
			"Make sure git is installed and on your PATH")
	}
	return string(out), nil
}

// Manager owns the repository registry and the clones beneath dir.
type Manager struct {
	dir   string
	log   logger.Logger
	run   Runner
	repos []RepoConfig
}

// Open loads the registry from dir, creating the directory if needed.
func Open(dir string, log logger.Logger) (*Manager, error) {
	return OpenWithRunner(dir, log, gitRunner)
}

// OpenWithRunner is Open with an injected git runner.
func OpenWithRunner(dir string, log logger.Logger, run Runner) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSync,
			fmt.Sprintf("Failed to create sync directory %s", dir),
			"Check directory permissions")
	}
	m := &Manager{dir: dir, log: log, run: run}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Add registers and clones a repository.
func (m *Manager) Add(name, url string) error {
	if m.find(name) >= 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Repository '%s' is already registered", name),
			"Run 'wf sync list' to see registered repositories")
	}
	target := filepath.Join(m.dir, name)
	if _, err := os.Stat(target); err == nil {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Directory %s already exists", target),
			"Remove it or pick a different repository name")
	}

	m.log.Debug("cloning %s into %s", url, target)
	if _, err := m.run("", "clone", url, target); err != nil {
		return err
	}

	m.repos = append(m.repos, RepoConfig{Name: name, URL: url, Enabled: true})
	return m.save()
}

// Remove unregisters a repository and deletes its clone.
func (m *Manager) Remove(name string) error {
	i := m.find(name)
	if i < 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Repository '%s' is not registered", name),
			"Run 'wf sync list' to see registered repositories")
	}
	if err := os.RemoveAll(filepath.Join(m.dir, name)); err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			fmt.Sprintf("Failed to remove clone of '%s'", name), "")
	}
	m.repos = append(m.repos[:i], m.repos[i+1:]...)
	return m.save()
}

// List returns the registered repositories, sorted by name.
func (m *Manager) List() []RepoConfig {
	out := make([]RepoConfig, len(m.repos))
	copy(out, m.repos)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetEnabled toggles whether a repository participates in pulls and
// imports.
func (m *Manager) SetEnabled(name string, enabled bool) error {
	i := m.find(name)
	if i < 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Repository '%s' is not registered", name),
			"Run 'wf sync list' to see registered repositories")
	}
	m.repos[i].Enabled = enabled
	return m.save()
}

// Pull fast-forwards one repository. Diverged histories are an error
// rather than an automatic merge.
func (m *Manager) Pull(name string) error {
	i := m.find(name)
	if i < 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Repository '%s' is not registered", name),
			"Run 'wf sync list' to see registered repositories")
	}
	_, err := m.run(filepath.Join(m.dir, name), "pull", "--ff-only")
	return err
}

// PullResult is the outcome of pulling one repository.
type PullResult struct {
	Name string
	Err  error
}

// PullAll pulls every enabled repository, collecting per-repository
// outcomes instead of stopping at the first failure.
func (m *Manager) PullAll() []PullResult {
	var results []PullResult
	for _, r := range m.List() {
		if !r.Enabled {
			continue
		}
		results = append(results, PullResult{Name: r.Name, Err: m.Pull(r.Name)})
	}
	return results
}

// Status returns "git status --short --branch" output for one clone.
func (m *Manager) Status(name string) (string, error) {
	if m.find(name) < 0 {
		return "", errors.New(errors.ErrSync,
			fmt.Sprintf("Repository '%s' is not registered", name),
			"Run 'wf sync list' to see registered repositories")
	}
	return m.run(filepath.Join(m.dir, name), "status", "--short", "--branch")
}

// ImportReport aggregates import summaries across repositories.
type ImportReport struct {
	Files     int
	Added     int
	Updated   int
	Skipped   int
	PerRepo   map[string]int
	FileIssue []string
}

// ImportWorkflows merges every export file under each enabled clone's
// workflows/ directory into the store. Files that fail validation are
// recorded and skipped; one bad file does not abort the sync.
func (m *Manager) ImportWorkflows(s *store.Store, overwrite bool) (*ImportReport, error) {
	report := &ImportReport{PerRepo: make(map[string]int)}
	for _, r := range m.List() {
		if !r.Enabled {
			continue
		}
		dir := filepath.Join(m.dir, r.Name, "workflows")
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSync,
				fmt.Sprintf("Failed to read %s", dir), "")
		}
		for _, e := range entries {
			if e.IsDir() || !isExportFile(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			summary, err := share.Import(s, path, overwrite)
			if err != nil {
				m.log.Warn("skipping %s: %v", path, err)
				report.FileIssue = append(report.FileIssue,
					fmt.Sprintf("%s: %v", path, err))
				continue
			}
			report.Files++
			report.PerRepo[r.Name]++
			report.Added += summary.CommandsAdded + summary.WorkflowsAdded
			report.Updated += summary.CommandsUpdated + summary.WorkflowsUpdated
			report.Skipped += summary.CommandsSkipped + summary.WorkflowsSkipped
		}
	}
	return report, nil
}

func isExportFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func (m *Manager) find(name string) int {
	for i, r := range m.repos {
		if r.Name == name {
			return i
		}
	}
	return -1
}

func (m *Manager) load() error {
	data, err := os.ReadFile(filepath.Join(m.dir, RegistryFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			"Failed to read repository registry",
			"Check file permissions")
	}
	if err := json.Unmarshal(data, &m.repos); err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			fmt.Sprintf("Registry file %s is not valid JSON", RegistryFile),
			"Remove the file to start a fresh registry")
	}
	return nil
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.repos, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			"Failed to encode repository registry", "")
	}
	path := filepath.Join(m.dir, RegistryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			fmt.Sprintf("Failed to write %s", path),
			"Check directory permissions")
	}
	return nil
}
