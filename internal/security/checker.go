// Package security classifies command text by risk: a Checker flags
// dangerous patterns and approval-requiring commands, and the sanitizer
// functions clean untrusted text before it is persisted. Checks produce
// reports for the caller to act on; nothing here blocks execution itself.
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wfkit/wf/internal/model"
)

// Check is the risk assessment of one command string. Safe is false when
// any issue was found; RequiresApproval is set independently by the
// approval pattern bank.
type Check struct {
	Command          string   `json:"command"`
	Safe             bool     `json:"safe"`
	RequiresApproval bool     `json:"requires_approval"`
	Issues           []string `json:"issues,omitempty"`
}

// StepCheck aggregates the checks of one step, including every command
// nested in its conditional/branch/loop blocks.
type StepCheck struct {
	StepName         string   `json:"step_name"`
	Safe             bool     `json:"safe"`
	RequiresApproval bool     `json:"requires_approval"`
	Issues           []string `json:"issues,omitempty"`
}

// WorkflowCheck is the whole-workflow security report.
type WorkflowCheck struct {
	WorkflowName     string      `json:"workflow_name"`
	Safe             bool        `json:"safe"`
	RequiresApproval bool        `json:"requires_approval"`
	Issues           []string    `json:"issues,omitempty"`
	Steps            []StepCheck `json:"steps"`
}

// dangerousCommands are flagged when they appear as the first
// whitespace-delimited token of a command.
var dangerousCommands = map[string]struct{}{
	"rm": {}, "rmdir": {}, "dd": {}, "mkfs": {}, "format": {},
	"fdisk": {}, "shutdown": {}, "reboot": {}, "halt": {},
	"poweroff": {}, "init": {},
}

var dangerousPatterns = []string{
	`rm\s+-[rf]+.*[\*/]`,              // destructive rm with wildcards or root
	`>\s*/dev/(sda|sdb|sdc|hda|hdb)`,  // writes to raw block devices
	`:\(\)\s*\{.*;\s*\}`,              // fork bomb
	`while\s+true.*do`,                // unconditional loop
	`curl.*\|\s*(sh|bash|zsh)`,        // piping a download into a shell
	`wget.*\|\s*(sh|bash|zsh)`,        // piping a download into a shell
	`echo.*>\s*/etc/`,                 // writes to system config
	`chmod\s+[0-7]*7[0-7]*\s+/`,       // world-executable bits on root paths
}

// DefaultApprovalPatterns is the built-in approval bank. The config can
// extend it but not remove from it.
var DefaultApprovalPatterns = []string{
	`rm\s+-rf`,
	`sudo\s+`,
	`chmod\s+777`,
	`>/dev/null`,
}

// flowCallPattern matches an embedded "wf flow run <name>" invocation.
// Matching is deliberately loose text matching, shared with the workflow
// validator's cycle detection.
var flowCallPattern = regexp.MustCompile(`wf\s+flow\s+run\s+([\w-]+)`)

// Checker owns its compiled pattern banks. Construct once and reuse; the
// zero value is not usable.
type Checker struct {
	danger   []*regexp.Regexp
	approval []*regexp.Regexp
}

// NewChecker compiles the built-in banks plus any extra approval patterns
// from configuration. Patterns that fail to compile are skipped.
func NewChecker(extraApproval ...string) *Checker {
	c := &Checker{}
	for _, p := range dangerousPatterns {
		c.danger = append(c.danger, regexp.MustCompile(p))
	}
	for _, p := range append(append([]string{}, DefaultApprovalPatterns...), extraApproval...) {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		c.approval = append(c.approval, re)
	}
	return c
}

// CheckCommand assesses one command string.
func (c *Checker) CheckCommand(command string) Check {
	var issues []string
	requiresApproval := false

	if len(command) > 1000 {
		issues = append(issues, "Command is too long (potential buffer overflow)")
	}
	if strings.ContainsRune(command, 0) {
		issues = append(issues, "Command contains null bytes (potential injection)")
	}

	for _, re := range c.danger {
		if re.MatchString(command) {
			issues = append(issues, fmt.Sprintf("Dangerous pattern detected: %s", re.String()))
		}
	}
	for _, re := range c.approval {
		if re.MatchString(command) {
			requiresApproval = true
			break
		}
	}

	if fields := strings.Fields(command); len(fields) > 0 {
		if _, ok := dangerousCommands[fields[0]]; ok {
			issues = append(issues, fmt.Sprintf("Potentially dangerous command: %s", fields[0]))
		}
	}

	if strings.Contains(command, ">/dev/") && !strings.Contains(command, ">/dev/null") {
		issues = append(issues, "Suspicious redirection to device file")
	}
	if strings.Count(command, ";") > 3 {
		issues = append(issues, "Excessive command chaining detected")
	}
	if strings.Contains(command, "$(") || strings.Contains(command, "`") {
		issues = append(issues, "Command substitution detected - review carefully")
	}

	return Check{
		Command:          command,
		Safe:             len(issues) == 0,
		RequiresApproval: requiresApproval,
		Issues:           issues,
	}
}

// CheckWorkflow applies CheckCommand to every step of the workflow,
// recursively through all nested blocks, and aggregates the results. It
// also flags suspicious workflow names and direct self-invocation.
func (c *Checker) CheckWorkflow(wf *model.Workflow) WorkflowCheck {
	report := WorkflowCheck{WorkflowName: wf.Name}

	if strings.Contains(wf.Name, "..") || strings.Contains(wf.Name, "/") {
		report.Issues = append(report.Issues, "Workflow name contains suspicious path elements")
	}

	for i := range wf.Steps {
		sc := c.checkStep(&wf.Steps[i])
		if !sc.Safe {
			report.Issues = append(report.Issues, sc.Issues...)
		}
		if sc.RequiresApproval {
			report.RequiresApproval = true
		}
		report.Steps = append(report.Steps, sc)
	}

	// Shallow self-call check over top-level commands only; the workflow
	// validator does the transitive version.
	for i := range wf.Steps {
		for _, target := range ExtractFlowCalls(wf.Steps[i].Command) {
			if target == wf.Name {
				report.Issues = append(report.Issues, "Potential circular dependency detected in workflow calls")
			}
		}
	}

	report.Safe = len(report.Issues) == 0
	return report
}

func (c *Checker) checkStep(step *model.Step) StepCheck {
	sc := StepCheck{
		StepName:         step.Name,
		RequiresApproval: step.RequireApproval,
	}

	if step.Command != "" {
		check := c.CheckCommand(step.Command)
		sc.Issues = append(sc.Issues, check.Issues...)
		if check.RequiresApproval {
			sc.RequiresApproval = true
		}
	}

	merge := func(steps []model.Step) {
		for i := range steps {
			sub := c.checkStep(&steps[i])
			sc.Issues = append(sc.Issues, sub.Issues...)
			if sub.RequiresApproval {
				sc.RequiresApproval = true
			}
		}
	}
	if step.Conditional != nil {
		merge(step.Conditional.Then)
		merge(step.Conditional.Else)
	}
	if step.Branch != nil {
		for _, bc := range step.Branch.Cases {
			merge(bc.Steps)
		}
		merge(step.Branch.Default)
	}
	if step.Loop != nil {
		merge(step.Loop.Body)
	}

	sc.Safe = len(sc.Issues) == 0
	return sc
}

// ExtractFlowCalls returns the workflow names invoked by embedded
// "wf flow run <name>" substrings in the command text.
func ExtractFlowCalls(command string) []string {
	var calls []string
	for _, m := range flowCallPattern.FindAllStringSubmatch(command, -1) {
		calls = append(calls, m[1])
	}
	return calls
}
