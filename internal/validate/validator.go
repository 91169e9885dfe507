// Package validate is the pre-execution static analyzer for workflows:
// cross-workflow cycle detection, step reachability, variable consistency,
// metadata and duplicate-name checks, infinite-loop heuristics, and quote
// matching. Issues are collected into a report, never raised as errors;
// the caller decides whether Warnings block anything.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/security"
)

// Severity ranks a validation issue. Only Error severity makes a
// workflow invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding of the validator.
type Issue struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	StepName   string   `json:"step_name,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Report is the outcome of validating one workflow. Valid is false iff
// any Error-severity issue exists.
type Report struct {
	WorkflowName string   `json:"workflow_name"`
	Valid        bool     `json:"valid"`
	Issues       []Issue  `json:"issues"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Count returns the number of issues at the given severity.
func (r *Report) Count(severity Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Resolver looks up workflows by name for cross-workflow cycle checks.
// The store satisfies this; a nil resolver limits cycle detection to
// direct self-calls.
type Resolver interface {
	FindWorkflow(name string) (*model.Workflow, bool)
}

// ResolverFunc adapts a lookup function to the Resolver interface.
type ResolverFunc func(name string) (*model.Workflow, bool)

// FindWorkflow calls f.
func (f ResolverFunc) FindWorkflow(name string) (*model.Workflow, bool) {
	return f(name)
}

// builtinVariables are shell-provided names exempt from the
// used-but-undeclared check.
var builtinVariables = map[string]struct{}{
	"HOME": {}, "USER": {}, "PATH": {}, "PWD": {}, "SHELL": {}, "TERM": {},
}

// Validator runs every check unconditionally and independently. It owns
// its compiled patterns; construct once and reuse.
type Validator struct {
	resolver   Resolver
	varPattern *regexp.Regexp
}

// New creates a validator backed by the given workflow resolver.
func New(resolver Resolver) *Validator {
	return &Validator{
		resolver:   resolver,
		varPattern: regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`),
	}
}

// Validate runs all checks against the workflow and collects the report.
func (v *Validator) Validate(wf *model.Workflow) *Report {
	report := &Report{WorkflowName: wf.Name}

	v.checkCircularDependencies(wf, report)
	v.checkUnreachableSteps(wf, report)
	v.checkVariables(wf, report)
	v.checkStepMetadata(wf, report)
	v.checkInfiniteLoops(wf, report)
	v.checkDuplicateStepNames(wf, report)
	v.checkCommandSyntax(wf, report)

	report.Valid = report.Count(SeverityError) == 0
	return report
}

// checkCircularDependencies scans for embedded "wf flow run <name>"
// invocations: a self-call is a direct Error, and for every distinct
// target a depth-first search through the resolver looks for a path back
// to the origin.
func (v *Validator) checkCircularDependencies(wf *model.Workflow, report *Report) {
	calls := v.extractCalls(wf)
	report.Dependencies = calls

	for _, call := range calls {
		if call == wf.Name {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityError,
				Message:    fmt.Sprintf("Workflow '%s' calls itself directly", wf.Name),
				Suggestion: "Remove the self-referencing call or add a condition to prevent infinite recursion",
			})
		}
	}
	if v.resolver == nil {
		return
	}

	for _, call := range calls {
		if call == wf.Name {
			continue
		}
		target, ok := v.resolver.FindWorkflow(call)
		if !ok {
			continue
		}
		if v.hasPathTo(target, wf.Name, map[string]bool{}) {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Message: fmt.Sprintf("Circular dependency detected: '%s' -> '%s' -> ... -> '%s'",
					wf.Name, call, wf.Name),
				Suggestion: "Restructure workflows to eliminate circular calls",
			})
		}
	}
}

// hasPathTo reports whether wf transitively calls target. The visited set
// is per-path: nodes are unmarked on backtrack so sibling paths are
// explored independently.
func (v *Validator) hasPathTo(wf *model.Workflow, target string, visited map[string]bool) bool {
	if visited[wf.Name] {
		return false
	}
	visited[wf.Name] = true
	defer delete(visited, wf.Name)

	calls := v.extractCalls(wf)
	for _, call := range calls {
		if call == target {
			return true
		}
	}
	for _, call := range calls {
		next, ok := v.resolver.FindWorkflow(call)
		if !ok {
			continue
		}
		if v.hasPathTo(next, target, visited) {
			return true
		}
	}
	return false
}

// extractCalls collects the distinct workflow names invoked anywhere in
// the step tree, sorted for deterministic reports. Matching is loose
// text matching against command text, by design.
func (v *Validator) extractCalls(wf *model.Workflow) []string {
	seen := make(map[string]struct{})
	var walk func(steps []model.Step)
	walk = func(steps []model.Step) {
		for i := range steps {
			step := &steps[i]
			for _, call := range security.ExtractFlowCalls(step.Command) {
				seen[call] = struct{}{}
			}
			if step.Conditional != nil {
				walk(step.Conditional.Then)
				walk(step.Conditional.Else)
			}
			if step.Branch != nil {
				for _, c := range step.Branch.Cases {
					walk(c.Steps)
				}
				walk(step.Branch.Default)
			}
			if step.Loop != nil {
				walk(step.Loop.Body)
			}
		}
	}
	walk(wf.Steps)

	calls := make([]string, 0, len(seen))
	for call := range seen {
		calls = append(calls, call)
	}
	sort.Strings(calls)
	return calls
}

// checkUnreachableSteps walks the top-level list breadth-first from step
// 0. Besides the next-sibling edge, conditional and branch steps
// contribute edges to top-level steps whose names appear in their blocks;
// the lookup is by step name within this workflow, which is as brittle as
// it sounds and preserved deliberately.
func (v *Validator) checkUnreachableSteps(wf *model.Workflow, report *Report) {
	reachable := v.findReachableSteps(wf)

	for index, step := range wf.Steps {
		if !reachable[index] {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Step '%s' may be unreachable", step.Name),
				StepName:   step.Name,
				Suggestion: "Check if this step can be reached through normal execution flow",
			})
		}
	}
}

func (v *Validator) findReachableSteps(wf *model.Workflow) map[int]bool {
	reachable := make(map[int]bool)
	if len(wf.Steps) == 0 {
		return reachable
	}

	queue := []int{0}
	enqueueNamed := func(steps []model.Step) {
		for i := range steps {
			if idx, ok := findStepIndex(wf, steps[i].Name); ok {
				queue = append(queue, idx)
			}
		}
	}

	for len(queue) > 0 {
		index := queue[0]
		queue = queue[1:]
		if reachable[index] {
			continue
		}
		reachable[index] = true

		step := &wf.Steps[index]
		if index+1 < len(wf.Steps) {
			queue = append(queue, index+1)
		}
		if step.Conditional != nil {
			enqueueNamed(step.Conditional.Then)
			enqueueNamed(step.Conditional.Else)
		}
		if step.Branch != nil {
			for _, c := range step.Branch.Cases {
				enqueueNamed(c.Steps)
			}
			enqueueNamed(step.Branch.Default)
		}
	}
	return reachable
}

func findStepIndex(wf *model.Workflow, name string) (int, bool) {
	for i := range wf.Steps {
		if wf.Steps[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// checkVariables compares declared variable names against every
// $name/${name} reference in command text, condition expressions, and
// branch selectors. Shell builtins are exempt.
func (v *Validator) checkVariables(wf *model.Workflow, report *Report) {
	var used []string
	seen := make(map[string]struct{})
	addRefs := func(text string) {
		for _, m := range v.varPattern.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				used = append(used, name)
			}
		}
	}
	addName := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			used = append(used, name)
		}
	}

	var walk func(steps []model.Step)
	walk = func(steps []model.Step) {
		for i := range steps {
			step := &steps[i]
			addRefs(step.Command)
			if step.Conditional != nil {
				addRefs(step.Conditional.Condition.Expression)
				walk(step.Conditional.Then)
				walk(step.Conditional.Else)
			}
			if step.Branch != nil {
				addName(step.Branch.Variable)
				for _, c := range step.Branch.Cases {
					walk(c.Steps)
				}
				walk(step.Branch.Default)
			}
			if step.Loop != nil {
				addRefs(step.Loop.Condition.Expression)
				walk(step.Loop.Body)
			}
		}
	}
	walk(wf.Steps)

	declared := make(map[string]struct{}, len(wf.Variables))
	for _, decl := range wf.Variables {
		declared[decl.Name] = struct{}{}
	}

	for _, name := range used {
		if _, ok := declared[name]; ok {
			continue
		}
		if _, builtin := builtinVariables[name]; builtin {
			continue
		}
		report.Issues = append(report.Issues, Issue{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Variable '%s' is used but not defined", name),
			Suggestion: fmt.Sprintf("Add variable '%s' to workflow variables", name),
		})
	}
	for _, decl := range wf.Variables {
		if _, ok := seen[decl.Name]; !ok {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityInfo,
				Message:    fmt.Sprintf("Variable '%s' is defined but never used", decl.Name),
				Suggestion: "Consider removing unused variables",
			})
		}
	}
}

func (v *Validator) checkStepMetadata(wf *model.Workflow, report *Report) {
	for _, step := range wf.Steps {
		if strings.TrimSpace(step.Name) == "" {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityError,
				Message:    "Step has empty name",
				Suggestion: "Provide a meaningful name for the step",
			})
		}
		if strings.TrimSpace(step.Description) == "" {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Step '%s' has empty description", step.Name),
				StepName:   step.Name,
				Suggestion: "Add a description to explain what this step does",
			})
		}
		if len(step.Name) > 100 {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Step '%s' has very long name", step.Name),
				StepName:   step.Name,
				Suggestion: "Consider using a shorter, more concise name",
			})
		}
	}
}

// checkInfiniteLoops applies two heuristics to top-level loop steps: a
// literal always-true condition is an Error, and a captured condition
// variable that no body command ever assigns is a Warning.
func (v *Validator) checkInfiniteLoops(wf *model.Workflow, report *Report) {
	for _, step := range wf.Steps {
		if step.Loop == nil {
			continue
		}
		expr := step.Loop.Condition.Expression
		if expr == "true" || expr == "1" {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityError,
				Message:    fmt.Sprintf("Step '%s' contains an infinite loop condition", step.Name),
				StepName:   step.Name,
				Suggestion: "Add a proper exit condition to the loop",
			})
		}

		variable := step.Loop.Condition.Variable
		if variable == "" {
			continue
		}
		modified := false
		for i := range step.Loop.Body {
			if stepModifiesVariable(&step.Loop.Body[i], variable) {
				modified = true
				break
			}
		}
		if !modified {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityWarning,
				Message: fmt.Sprintf("Loop in step '%s' may not modify its condition variable '%s'",
					step.Name, variable),
				StepName:   step.Name,
				Suggestion: "Ensure the loop modifies the condition variable to eventually exit",
			})
		}
	}
}

// stepModifiesVariable looks for an assignment-shaped substring targeting
// the variable in the step's command text.
func stepModifiesVariable(step *model.Step, variable string) bool {
	patterns := []string{
		variable + "=",
		"export " + variable + "=",
		"local " + variable + "=",
		"declare " + variable + "=",
	}
	for _, p := range patterns {
		if strings.Contains(step.Command, p) {
			return true
		}
	}
	return false
}

func (v *Validator) checkDuplicateStepNames(wf *model.Workflow, report *Report) {
	firstSeen := make(map[string]int)
	for index, step := range wf.Steps {
		if first, ok := firstSeen[step.Name]; ok {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Message: fmt.Sprintf("Duplicate step name '%s' found at positions %d and %d",
					step.Name, first+1, index+1),
				StepName:   step.Name,
				Suggestion: "Use unique names for all steps",
			})
			continue
		}
		firstSeen[step.Name] = index
	}
}

// checkCommandSyntax flags unmatched quotes (Error) and the literal
// "rm -rf /" substring (Warning) in top-level command steps.
func (v *Validator) checkCommandSyntax(wf *model.Workflow, report *Report) {
	for _, step := range wf.Steps {
		if step.Type != model.StepCommand || strings.TrimSpace(step.Command) == "" {
			continue
		}
		if hasUnmatchedQuotes(step.Command) {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityError,
				Message:    fmt.Sprintf("Step '%s' has unmatched quotes", step.Name),
				StepName:   step.Name,
				Suggestion: "Check that all quotes are properly matched",
			})
		}
		if strings.Contains(step.Command, "rm -rf /") {
			report.Issues = append(report.Issues, Issue{
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Step '%s' contains potentially dangerous command", step.Name),
				StepName:   step.Name,
				Suggestion: "Review this command carefully for safety",
			})
		}
	}
}

// hasUnmatchedQuotes counts quote parity, skipping backslash-escaped
// characters.
func hasUnmatchedQuotes(command string) bool {
	single, double := 0, 0
	escaped := false
	for _, ch := range command {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '\'':
			single++
		case '"':
			double++
		}
	}
	return single%2 != 0 || double%2 != 0
}
