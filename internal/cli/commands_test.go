package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wfkit/wf/internal/model"
)

func TestFilterCommandsByTag(t *testing.T) {
	deploy := model.NewCommand("deploy", "make deploy", "")
	deploy.Tags = []string{"ops", "release"}
	build := model.NewCommand("build", "make build", "")
	build.Tags = []string{"ci"}
	lint := model.NewCommand("lint", "make lint", "")

	out := filterCommandsByTag([]*model.Command{deploy, build, lint}, "ops")
	if assert.Len(t, out, 1) {
		assert.Equal(t, "deploy", out[0].Name)
	}
}

func TestFilterCommandsByTagNoMatch(t *testing.T) {
	build := model.NewCommand("build", "make build", "")
	out := filterCommandsByTag([]*model.Command{build}, "release")
	assert.Empty(t, out)
}

func TestFilterWorkflowsByTag(t *testing.T) {
	release := model.NewWorkflow("release", "", []model.Step{
		model.NewCommandStep("build", "make build", ""),
	})
	release.Tags = []string{"ops"}
	checks := model.NewWorkflow("checks", "", []model.Step{
		model.NewCommandStep("lint", "make lint", ""),
	})

	out := filterWorkflowsByTag([]*model.Workflow{release, checks}, "ops")
	if assert.Len(t, out, 1) {
		assert.Equal(t, "release", out[0].Name)
	}
}

func TestFormatLastUsed(t *testing.T) {
	assert.Equal(t, "never", formatLastUsed(nil, 0))

	used := time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-01 (4)", formatLastUsed(&used, 4))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "exactly-10", truncateText("exactly-10", 10))
	assert.Equal(t, "long co...", truncateText("long command text", 10))
}

func TestStepFlags(t *testing.T) {
	plain := model.NewCommandStep("build", "make build", "")
	assert.Empty(t, stepFlags(plain))

	tolerant := model.NewCommandStep("clean", "make clean", "").WithContinueOnError()
	assert.Contains(t, stepFlags(tolerant), "continue-on-error")

	gated := model.NewCommandStep("deploy", "make deploy", "").WithApproval()
	assert.Contains(t, stepFlags(gated), "needs-approval")

	both := model.NewCommandStep("wipe", "rm -rf build", "").WithContinueOnError().WithApproval()
	flags := stepFlags(both)
	assert.Contains(t, flags, "continue-on-error")
	assert.Contains(t, flags, "needs-approval")
}
