package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), logger.Noop())
	require.NoError(t, err)
	return s
}

func sampleWorkflow(name string) *model.Workflow {
	return model.NewWorkflow(name, "A sample flow", []model.Step{
		model.NewCommandStep("build", "make build", "Build it"),
	})
}

func TestStore_CommandRoundTrip(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.AddCommand(model.NewCommand("deploy", "make deploy", "Ship it")))

	got, err := s.GetCommand("deploy")
	require.NoError(t, err)
	assert.Equal(t, "make deploy", got.Command)

	list, err := s.ListCommands()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.RemoveCommand("deploy"))
	_, err = s.GetCommand("deploy")
	assert.Error(t, err)
}

func TestStore_DuplicateCommandRejected(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.AddCommand(model.NewCommand("deploy", "make deploy", "")))
	err := s.AddCommand(model.NewCommand("deploy", "other", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStore_IncompleteCommandRejected(t *testing.T) {
	s := testStore(t)

	err := s.AddCommand(&model.Command{Name: "nameonly"})
	assert.Error(t, err)

	err = s.AddCommand(&model.Command{Command: "ls"})
	assert.Error(t, err)
}

func TestStore_GetMissingCommandSuggestsListing(t *testing.T) {
	s := testStore(t)

	_, err := s.GetCommand("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wf list")
}

func TestStore_GetMissingCommandSuggestsSimilarName(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.AddCommand(model.NewCommand("deploy", "make deploy", "")))

	_, err := s.GetCommand("deplyo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean 'deploy'?")
}

func TestStore_GetMissingWorkflowSuggestsSimilarName(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.AddWorkflow(sampleWorkflow("release")))

	_, err := s.GetWorkflow("releese")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean 'release'?")
}

func TestStore_WorkflowRoundTrip(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.AddWorkflow(sampleWorkflow("release")))

	got, err := s.GetWorkflow("release")
	require.NoError(t, err)
	assert.Equal(t, "release", got.Name)

	wf, ok := s.FindWorkflow("release")
	assert.True(t, ok)
	assert.Equal(t, got.Name, wf.Name)

	_, ok = s.FindWorkflow("missing")
	assert.False(t, ok)

	list, err := s.ListWorkflows()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.RemoveWorkflow("release"))
	_, err = s.GetWorkflow("release")
	assert.Error(t, err)
}

func TestStore_WorkflowWithoutStepsRejected(t *testing.T) {
	s := testStore(t)

	err := s.AddWorkflow(model.NewWorkflow("empty", "", nil))
	assert.Error(t, err)
}

func TestStore_InvalidStepTreeRejected(t *testing.T) {
	s := testStore(t)

	wf := model.NewWorkflow("broken", "", []model.Step{
		{Name: "bad", Type: model.StepConditional},
	})
	err := s.AddWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid step tree")
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, first.AddCommand(model.NewCommand("deploy", "make deploy", "")))
	require.NoError(t, first.AddWorkflow(sampleWorkflow("release")))

	second, err := Open(dir, logger.Noop())
	require.NoError(t, err)
	cmds, err := second.ListCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	flows, err := second.ListWorkflows()
	require.NoError(t, err)
	require.Len(t, flows, 1)
}

func TestStore_ReloadsWhenFileChanges(t *testing.T) {
	dir := t.TempDir()

	writer, err := Open(dir, logger.Noop())
	require.NoError(t, err)
	reader, err := Open(dir, logger.Noop())
	require.NoError(t, err)

	require.NoError(t, writer.AddCommand(model.NewCommand("one", "echo 1", "")))
	cmds, err := reader.ListCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)

	// mtime granularity can swallow rapid consecutive writes.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, writer.AddCommand(model.NewCommand("two", "echo 2", "")))

	cmds, err = reader.ListCommands()
	require.NoError(t, err)
	assert.Len(t, cmds, 2)
}

func TestStore_CorruptFileReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	s, err := Open(dir, logger.Noop())
	require.NoError(t, err)
	_, err = s.ListCommands()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestStore_MarkUsedPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, logger.Noop())
	require.NoError(t, err)

	require.NoError(t, s.AddWorkflow(sampleWorkflow("release")))
	require.NoError(t, s.MarkWorkflowUsed("release"))

	fresh, err := Open(dir, logger.Noop())
	require.NoError(t, err)
	wf, err := fresh.GetWorkflow("release")
	require.NoError(t, err)
	assert.Equal(t, 1, wf.UseCount)
	assert.NotNil(t, wf.LastUsed)
}

func TestStore_VariableAndProfileMutation(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.AddWorkflow(sampleWorkflow("release")))

	require.NoError(t, s.AddWorkflowVariable("release", model.Variable{
		Name: "region", Description: "Target region", Required: true,
	}))
	require.NoError(t, s.AddWorkflowProfile("release", model.Profile{
		Name:      "eu",
		Variables: map[string]string{"region": "eu-west-1"},
	}))

	wf, err := s.GetWorkflow("release")
	require.NoError(t, err)
	_, ok := wf.FindVariable("region")
	assert.True(t, ok)
	_, ok = wf.Profile("eu")
	assert.True(t, ok)

	err = s.AddWorkflowVariable("missing", model.Variable{Name: "x"})
	assert.Error(t, err)
}

func TestStore_ListsAreSorted(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.AddCommand(model.NewCommand("zeta", "echo z", "")))
	require.NoError(t, s.AddCommand(model.NewCommand("alpha", "echo a", "")))

	cmds, err := s.ListCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "alpha", cmds[0].Name)
	assert.Equal(t, "zeta", cmds[1].Name)
}
