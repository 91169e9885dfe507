// Package vars implements the {{name}} templating layer: placeholder
// extraction, workflow scanning, step resolution, and interactive
// prompting for missing values.
package vars

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/model"
)

// placeholderPattern matches {{name}} with optional whitespace around the
// name. Names are word characters only.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Resolve replaces every {{name}} placeholder whose name exists in the
// context. Unmatched placeholders are left verbatim so a partially
// resolved command stays recognizable instead of silently losing text.
func Resolve(text string, context map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := context[name]; ok {
			return value
		}
		return match
	})
}

// ExtractNames returns the distinct placeholder names in text, in
// first-appearance order.
func ExtractNames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// ScanWorkflow collects every placeholder name referenced anywhere in the
// workflow's step tree (command text, condition expressions, branch case
// values, and all nested blocks), in first-appearance order.
func ScanWorkflow(wf *model.Workflow) []string {
	var names []string
	seen := make(map[string]bool)

	add := func(text string) {
		for _, n := range ExtractNames(text) {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	var walk func(steps []model.Step)
	walk = func(steps []model.Step) {
		for i := range steps {
			step := &steps[i]
			add(step.Command)
			if step.Conditional != nil {
				add(step.Conditional.Condition.Expression)
				walk(step.Conditional.Then)
				walk(step.Conditional.Else)
			}
			if step.Branch != nil {
				for _, c := range step.Branch.Cases {
					add(c.Value)
					walk(c.Steps)
				}
				walk(step.Branch.Default)
			}
			if step.Loop != nil {
				add(step.Loop.Condition.Expression)
				walk(step.Loop.Body)
			}
		}
	}
	walk(wf.Steps)
	return names
}

// ResolveStep returns a deep copy of the step with every textual field
// substituted: command text, condition expressions, branch case values,
// and all recursively nested steps. The input step is not modified.
func ResolveStep(step model.Step, context map[string]string) model.Step {
	out := step.Clone()
	resolveInPlace(&out, context)
	return out
}

// ResolveSteps resolves a whole step list, preserving order.
func ResolveSteps(steps []model.Step, context map[string]string) []model.Step {
	out := model.CloneSteps(steps)
	for i := range out {
		resolveInPlace(&out[i], context)
	}
	return out
}

func resolveInPlace(step *model.Step, context map[string]string) {
	step.Command = Resolve(step.Command, context)
	if step.Conditional != nil {
		step.Conditional.Condition.Expression = Resolve(step.Conditional.Condition.Expression, context)
		for i := range step.Conditional.Then {
			resolveInPlace(&step.Conditional.Then[i], context)
		}
		for i := range step.Conditional.Else {
			resolveInPlace(&step.Conditional.Else[i], context)
		}
	}
	if step.Branch != nil {
		for i := range step.Branch.Cases {
			step.Branch.Cases[i].Value = Resolve(step.Branch.Cases[i].Value, context)
			for j := range step.Branch.Cases[i].Steps {
				resolveInPlace(&step.Branch.Cases[i].Steps[j], context)
			}
		}
		for i := range step.Branch.Default {
			resolveInPlace(&step.Branch.Default[i], context)
		}
	}
	if step.Loop != nil {
		step.Loop.Condition.Expression = Resolve(step.Loop.Condition.Expression, context)
		for i := range step.Loop.Body {
			resolveInPlace(&step.Loop.Body[i], context)
		}
	}
}

// CaptureNames collects every condition capture-variable name declared
// anywhere in the workflow's step tree. These names are assigned by the
// engine when their condition evaluates, never supplied up front.
func CaptureNames(wf *model.Workflow) map[string]bool {
	captured := make(map[string]bool)

	var walk func(steps []model.Step)
	walk = func(steps []model.Step) {
		for i := range steps {
			step := &steps[i]
			if step.Conditional != nil {
				if step.Conditional.Condition.Variable != "" {
					captured[step.Conditional.Condition.Variable] = true
				}
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
				if step.Loop.Condition.Variable != "" {
					captured[step.Loop.Condition.Variable] = true
				}
				walk(step.Loop.Body)
			}
		}
	}
	walk(wf.Steps)
	return captured
}

// PromptMissing fills the context with values for every placeholder the
// workflow references that is not yet set, reading one line per missing
// variable in first-appearance order. Capture variables are skipped:
// their values only exist once the engine evaluates the owning
// condition, and pre-filling them would shadow the captured outcome.
// Declared variables contribute their description and default; a blank
// answer takes the default when one exists, errors when the variable is
// required, and stores an empty string otherwise.
func PromptMissing(wf *model.Workflow, context map[string]string, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	captured := CaptureNames(wf)

	for _, name := range ScanWorkflow(wf) {
		if _, ok := context[name]; ok {
			continue
		}
		if captured[name] {
			continue
		}

		decl, declared := wf.FindVariable(name)

		prompt := fmt.Sprintf("Enter value for '%s'", name)
		if declared && decl.Description != "" {
			prompt += fmt.Sprintf(" (%s)", decl.Description)
		}
		if declared && decl.Default != "" {
			prompt += fmt.Sprintf(" [default: %s]", decl.Default)
		}
		fmt.Fprintf(out, "%s: ", prompt)

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.WrapWithCode(err, errors.ErrFlow,
				fmt.Sprintf("Failed to read value for variable '%s'", name),
				"")
		}
		value := strings.TrimRight(line, "\r\n")

		if value == "" {
			switch {
			case declared && decl.Default != "":
				value = decl.Default
			case declared && decl.Required:
				return errors.New(errors.ErrFlow,
					fmt.Sprintf("Variable '%s' is required", name),
					"Provide it with --var or declare a default")
			}
		}
		context[name] = value
	}
	return nil
}
