package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfkit/wf/internal/model"
)

const sampleScript = `#!/bin/bash

# Deploys the current branch.
deploy() {
    echo "Starting deploy"
    local env=$1
    if [ "$env" = "prod" ]; then
        make release
    else
        make stage
    fi
    echo "Deploy complete"
}

cleanup() {
    rm -f /tmp/deploy.lock
}
`

func TestConvert_SimpleFunction(t *testing.T) {
	wf, err := Convert(sampleScript, "deploy", "deploy-flow", "Deploy workflow", []string{"ops"})
	require.NoError(t, err)

	assert.Equal(t, "deploy-flow", wf.Name)
	assert.Equal(t, "Deploy workflow", wf.Description)
	assert.Equal(t, []string{"ops"}, wf.Tags)

	// echo, local assignment, conditional, echo.
	require.Len(t, wf.Steps, 4)
	assert.Equal(t, `Execute: echo "Starting deploy"`, wf.Steps[0].Name)
	assert.Equal(t, model.StepCommand, wf.Steps[0].Type)
	assert.Equal(t, "Set local variable: env", wf.Steps[1].Name)
	assert.Equal(t, `local env="$1"`, wf.Steps[1].Command)

	cond := wf.Steps[2]
	assert.Equal(t, model.StepConditional, cond.Type)
	require.NotNil(t, cond.Conditional)
	assert.Equal(t, `[ "$env" = "prod" ]`, cond.Conditional.Condition.Expression)
	require.Len(t, cond.Conditional.Then, 1)
	assert.Equal(t, "make release", cond.Conditional.Then[0].Command)
	require.Len(t, cond.Conditional.Else, 1)
	assert.Equal(t, "make stage", cond.Conditional.Else[0].Command)

	assert.Equal(t, `Execute: echo "Deploy complete"`, wf.Steps[3].Name)
}

func TestConvert_ExtractsVariables(t *testing.T) {
	wf, err := Convert(sampleScript, "deploy", "deploy-flow", "", nil)
	require.NoError(t, err)

	byName := make(map[string]model.Variable)
	for _, v := range wf.Variables {
		byName[v.Name] = v
	}

	// $1 becomes a required positional parameter.
	p1, ok := byName["param1"]
	require.True(t, ok)
	assert.True(t, p1.Required)

	// $env becomes an optional named variable.
	env, ok := byName["env"]
	require.True(t, ok)
	assert.False(t, env.Required)
}

func TestConvert_CaseBecomesBranch(t *testing.T) {
	script := `
dispatch() {
    case $1 in
        start)
            systemctl start app
            ;;
        stop)
            systemctl stop app
            ;;
        *)
            echo "usage: dispatch start|stop"
            ;;
    esac
}
`
	wf, err := Convert(script, "dispatch", "dispatch", "", nil)
	require.NoError(t, err)

	require.Len(t, wf.Steps, 1)
	step := wf.Steps[0]
	assert.Equal(t, model.StepBranch, step.Type)
	require.NotNil(t, step.Branch)
	assert.Equal(t, "1", step.Branch.Variable)

	require.Len(t, step.Branch.Cases, 2)
	assert.Equal(t, "start", step.Branch.Cases[0].Value)
	require.Len(t, step.Branch.Cases[0].Steps, 1)
	assert.Equal(t, "systemctl start app", step.Branch.Cases[0].Steps[0].Command)
	assert.Equal(t, "stop", step.Branch.Cases[1].Value)

	require.Len(t, step.Branch.Default, 1)
	assert.Contains(t, step.Branch.Default[0].Command, "usage")
}

func TestConvert_WhileBecomesLoop(t *testing.T) {
	script := `
wait_ready() {
    while [ ! -f /tmp/ready ]; do
        sleep 1
    done
}
`
	wf, err := Convert(script, "wait_ready", "wait-ready", "", nil)
	require.NoError(t, err)

	require.Len(t, wf.Steps, 1)
	step := wf.Steps[0]
	assert.Equal(t, model.StepLoop, step.Type)
	require.NotNil(t, step.Loop)
	assert.Equal(t, "[ ! -f /tmp/ready ]", step.Loop.Condition.Expression)
	require.Len(t, step.Loop.Body, 1)
	assert.Equal(t, "sleep 1", step.Loop.Body[0].Command)
}

func TestConvert_ForBecomesLoopWithIterationVariable(t *testing.T) {
	script := `
restart_all() {
    for svc in api worker scheduler; do
        systemctl restart $svc
    done
}
`
	wf, err := Convert(script, "restart_all", "restart-all", "", nil)
	require.NoError(t, err)

	require.Len(t, wf.Steps, 1)
	step := wf.Steps[0]
	assert.Equal(t, model.StepLoop, step.Type)
	require.NotNil(t, step.Loop)
	assert.Equal(t, "svc", step.Loop.Condition.Variable)
	assert.Equal(t, "has_more_items(api worker scheduler)", step.Loop.Condition.Expression)
}

func TestConvert_NestedIfInsideLoop(t *testing.T) {
	script := `
drain() {
    while [ -s queue ]; do
        if [ -f /tmp/stop ]; then
            break
        fi
        process_one
    done
}
`
	wf, err := Convert(script, "drain", "drain", "", nil)
	require.NoError(t, err)

	require.Len(t, wf.Steps, 1)
	loop := wf.Steps[0]
	require.NotNil(t, loop.Loop)
	require.Len(t, loop.Loop.Body, 2)
	assert.Equal(t, model.StepConditional, loop.Loop.Body[0].Type)
	assert.Equal(t, "process_one", loop.Loop.Body[1].Command)
}

func TestConvert_FunctionNotFound(t *testing.T) {
	_, err := Convert(sampleScript, "missing", "x", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConvert_UnterminatedIf(t *testing.T) {
	script := `
broken() {
    if [ -f x ]; then
        echo yes
}
`
	_, err := Convert(script, "broken", "broken", "", nil)
	assert.Error(t, err)
}

func TestConvert_CommentsAndBlankLinesSkipped(t *testing.T) {
	script := `
noop() {
    # just a comment

    echo hi
}
`
	wf, err := Convert(script, "noop", "noop", "", nil)
	require.NoError(t, err)
	require.Len(t, wf.Steps, 1)
	assert.Equal(t, "echo hi", wf.Steps[0].Command)
}

func TestConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0o644))

	wf, err := ConvertFile(path, "cleanup", "cleanup", "Remove lock", nil)
	require.NoError(t, err)
	require.Len(t, wf.Steps, 1)
	assert.Equal(t, "rm -f /tmp/deploy.lock", wf.Steps[0].Command)

	_, err = ConvertFile(filepath.Join(t.TempDir(), "missing.sh"), "f", "x", "", nil)
	assert.Error(t, err)
}
