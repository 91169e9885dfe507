package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow(t *testing.T) {
	wf := NewWorkflow("deploy", "Deploy the service", []Step{
		NewCommandStep("build", "make build", ""),
		NewCommandStep("push", "make push", ""),
	})

	assert.Equal(t, "deploy", wf.Name)
	assert.Len(t, wf.Steps, 2)
	assert.False(t, wf.CreatedAt.IsZero())
	assert.Nil(t, wf.LastUsed)
	assert.Zero(t, wf.UseCount)
	require.NoError(t, wf.Validate())
}

func TestWorkflowValidate(t *testing.T) {
	wf := NewWorkflow("", "", nil)
	assert.Error(t, wf.Validate())

	wf = NewWorkflow("bad-steps", "", []Step{{Name: "x", Type: "bogus"}})
	assert.Error(t, wf.Validate())
}

func TestWorkflowVariables(t *testing.T) {
	wf := NewWorkflow("deploy", "", nil)
	wf.AddVariable(Variable{Name: "ENV", Description: "Target environment", Required: true})
	wf.AddVariable(Variable{Name: "REGION", Default: "us-east-1"})

	v, ok := wf.FindVariable("ENV")
	require.True(t, ok)
	assert.True(t, v.Required)

	_, ok = wf.FindVariable("MISSING")
	assert.False(t, ok)

	// Redeclaring replaces instead of duplicating.
	wf.AddVariable(Variable{Name: "ENV", Default: "staging"})
	assert.Len(t, wf.Variables, 2)
	v, _ = wf.FindVariable("ENV")
	assert.Equal(t, "staging", v.Default)
}

func TestWorkflowProfiles(t *testing.T) {
	wf := NewWorkflow("deploy", "", nil)
	wf.AddProfile(Profile{
		Name:      "prod",
		Variables: map[string]string{"ENV": "production", "REGION": "us-east-1"},
	})

	p, ok := wf.Profile("prod")
	require.True(t, ok)
	assert.Equal(t, "production", p.Variables["ENV"])

	_, ok = wf.Profile("staging")
	assert.False(t, ok)
}

func TestWorkflowMarkUsed(t *testing.T) {
	wf := NewWorkflow("deploy", "", nil)
	wf.MarkUsed()
	wf.MarkUsed()

	assert.Equal(t, 2, wf.UseCount)
	require.NotNil(t, wf.LastUsed)
}

func TestWorkflowTags(t *testing.T) {
	wf := NewWorkflow("deploy", "", nil)
	wf.Tags = []string{"ops", "release"}

	assert.True(t, wf.HasTag("ops"))
	assert.False(t, wf.HasTag("dev"))
}

func TestCommand(t *testing.T) {
	cmd := NewCommand("disk", "df -h", "Show disk usage")
	cmd.Tags = []string{"system"}

	assert.Equal(t, "df -h", cmd.Command)
	assert.True(t, cmd.HasTag("system"))

	cmd.MarkUsed()
	assert.Equal(t, 1, cmd.UseCount)
	require.NotNil(t, cmd.LastUsed)
}

func TestWorkflowJSONRoundTrip(t *testing.T) {
	wf := NewWorkflow("release", "Cut a release", []Step{
		NewCommandStep("test", "make test", "Run the suite"),
		NewBranchStep("target", "", BranchStep{
			Variable: "ENV",
			Cases: []BranchCase{
				{Value: "prod", Steps: []Step{NewCommandStep("deploy-prod", "make deploy-prod", "")}},
				{Value: "staging", Steps: []Step{NewCommandStep("deploy-staging", "make deploy-staging", "")}},
			},
			Default: []Step{NewCommandStep("noop", "echo unknown env", "")},
		}),
	})
	wf.AddVariable(Variable{Name: "ENV", Required: true})
	wf.AddProfile(Profile{Name: "prod", Variables: map[string]string{"ENV": "prod"}})
	wf.Tags = []string{"release"}

	data, err := json.Marshal(wf)
	require.NoError(t, err)

	var decoded Workflow
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, wf.Name, decoded.Name)
	assert.Equal(t, wf.Steps, decoded.Steps)
	assert.Equal(t, wf.Variables, decoded.Variables)
	assert.Equal(t, wf.Profiles, decoded.Profiles)
}
