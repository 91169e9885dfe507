package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Action
		wantErr bool
	}{
		{name: "run_then", input: "run_then", want: ActionRunThen},
		{name: "run_else", input: "run_else", want: ActionRunElse},
		{name: "continue", input: "continue", want: ActionContinue},
		{name: "break", input: "break", want: ActionBreak},
		{name: "empty means no action", input: "", want: Action("")},
		{name: "return with code", input: "return:0", want: ReturnAction(0)},
		{name: "return with nonzero code", input: "return:42", want: ReturnAction(42)},
		{name: "return without code", input: "return:", wantErr: true},
		{name: "return with garbage", input: "return:abc", wantErr: true},
		{name: "unknown action", input: "skip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionReturnCode(t *testing.T) {
	code, ok := ReturnAction(7).ReturnCode()
	assert.True(t, ok)
	assert.Equal(t, 7, code)

	_, ok = ActionBreak.ReturnCode()
	assert.False(t, ok)

	assert.True(t, ReturnAction(0).IsReturn())
	assert.False(t, ActionContinue.IsReturn())
}

func TestStepConstructors(t *testing.T) {
	cmd := NewCommandStep("build", "make all", "Build the project")
	assert.Equal(t, StepCommand, cmd.Type)
	assert.Equal(t, "make all", cmd.Command)
	require.NoError(t, cmd.Validate())

	auth := NewAuthStep("login", "aws sso login", "Sign in")
	assert.Equal(t, StepAuth, auth.Type)
	require.NoError(t, auth.Validate())

	cond := NewConditionalStep("check", "Verify build", ConditionalStep{
		Condition: Condition{Expression: "$? -eq 0"},
		Then:      []Step{NewCommandStep("ok", "echo ok", "")},
	})
	assert.Equal(t, StepConditional, cond.Type)
	require.NotNil(t, cond.Conditional)
	require.NoError(t, cond.Validate())

	branch := NewBranchStep("env", "Pick environment", BranchStep{
		Variable: "ENV",
		Cases: []BranchCase{
			{Value: "prod", Steps: []Step{NewCommandStep("deploy", "make deploy", "")}},
		},
	})
	require.NoError(t, branch.Validate())

	loop := NewLoopStep("wait", "Poll until ready", LoopStep{
		Condition: Condition{Expression: "[ -f /tmp/ready ]"},
		Body:      []Step{NewCommandStep("sleep", "sleep 1", "")},
	})
	require.NoError(t, loop.Validate())
}

func TestStepValidate_InvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{
			name: "command step with conditional payload",
			step: Step{
				Name:        "bad",
				Type:        StepCommand,
				Command:     "echo hi",
				Conditional: &ConditionalStep{Condition: Condition{Expression: "true"}},
			},
		},
		{
			name: "conditional step with command text",
			step: Step{
				Name:        "bad",
				Type:        StepConditional,
				Command:     "echo hi",
				Conditional: &ConditionalStep{Condition: Condition{Expression: "true"}},
			},
		},
		{
			name: "conditional step missing payload",
			step: Step{Name: "bad", Type: StepConditional},
		},
		{
			name: "branch step with loop payload",
			step: Step{
				Name:   "bad",
				Type:   StepBranch,
				Branch: &BranchStep{Variable: "X"},
				Loop:   &LoopStep{},
			},
		},
		{
			name: "loop step missing payload",
			step: Step{Name: "bad", Type: StepLoop},
		},
		{
			name: "unknown type",
			step: Step{Name: "bad", Type: "parallel"},
		},
		{
			name: "conditional with bad action",
			step: Step{
				Name: "bad",
				Type: StepConditional,
				Conditional: &ConditionalStep{
					Condition: Condition{Expression: "true"},
					Action:    Action("return:x"),
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.step.Validate())
		})
	}
}

func TestStepValidate_NestedViolation(t *testing.T) {
	// An invalid step buried inside a branch case must fail validation.
	step := NewBranchStep("outer", "", BranchStep{
		Variable: "X",
		Cases: []BranchCase{
			{Value: "a", Steps: []Step{{Name: "inner", Type: "bogus"}}},
		},
	})
	err := step.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inner")
}

func TestStepUnmarshalJSON_EnforcesInvariant(t *testing.T) {
	// Type says conditional but the payload is missing.
	raw := `{"name":"check","type":"conditional","command":"echo hi"}`

	var s Step
	err := json.Unmarshal([]byte(raw), &s)
	assert.Error(t, err)
}

func TestStepJSONRoundTrip(t *testing.T) {
	step := NewConditionalStep("gate", "Gate on status", ConditionalStep{
		Condition: Condition{Expression: "$? -eq 0", Variable: "STATUS"},
		Then: []Step{
			NewCommandStep("report", "echo passed", ""),
			NewLoopStep("drain", "", LoopStep{
				Condition: Condition{Expression: "[ -s queue.txt ]"},
				Body:      []Step{NewCommandStep("pop", "head -1 queue.txt", "")},
			}),
		},
		Else:   []Step{NewCommandStep("fail", "echo failed", "")},
		Action: ReturnAction(3),
	})

	data, err := json.Marshal(step)
	require.NoError(t, err)

	var decoded Step
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, step, decoded)
	assert.Equal(t, "return:3", string(decoded.Conditional.Action))
}

func TestStepClone_Independence(t *testing.T) {
	orig := NewConditionalStep("gate", "", ConditionalStep{
		Condition: Condition{Expression: "{{cond}}"},
		Then:      []Step{NewCommandStep("a", "echo {{x}}", "")},
		Else:      []Step{NewCommandStep("b", "echo {{y}}", "")},
	})

	clone := orig.Clone()
	clone.Conditional.Condition.Expression = "changed"
	clone.Conditional.Then[0].Command = "changed"

	assert.Equal(t, "{{cond}}", orig.Conditional.Condition.Expression)
	assert.Equal(t, "echo {{x}}", orig.Conditional.Then[0].Command)
}

func TestCloneSteps_NilStaysNil(t *testing.T) {
	assert.Nil(t, CloneSteps(nil))

	cloned := CloneSteps([]Step{})
	require.NotNil(t, cloned)
	assert.Len(t, cloned, 0)
}

func TestStepModifiers(t *testing.T) {
	s := NewCommandStep("risky", "rm -rf build", "").WithContinueOnError().WithApproval()
	assert.True(t, s.ContinueOnError)
	assert.True(t, s.RequireApproval)
}
