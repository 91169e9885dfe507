// Package model defines the workflow data model: step trees, variables,
// profiles, and stored commands. Values are constructed once (by the CLI
// builders, import, or the converter) and treated as immutable afterwards;
// the engine and validators never mutate a workflow in place.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StepType discriminates the five step variants.
type StepType string

const (
	StepCommand     StepType = "command"
	StepAuth        StepType = "auth"
	StepConditional StepType = "conditional"
	StepBranch      StepType = "branch"
	StepLoop        StepType = "loop"
)

// Action is the optional post-evaluation action of a conditional step.
// Encoded as a plain string: "run_then", "run_else", "continue", "break",
// or "return:<code>".
type Action string

const (
	ActionRunThen  Action = "run_then"
	ActionRunElse  Action = "run_else"
	ActionContinue Action = "continue"
	ActionBreak    Action = "break"
)

const returnPrefix = "return:"

// ReturnAction builds a "return:<code>" action that aborts the whole run
// with the given exit code.
func ReturnAction(code int) Action {
	return Action(returnPrefix + strconv.Itoa(code))
}

// IsReturn reports whether the action is a return action.
func (a Action) IsReturn() bool {
	return strings.HasPrefix(string(a), returnPrefix)
}

// ReturnCode extracts the exit code from a return action.
func (a Action) ReturnCode() (int, bool) {
	if !a.IsReturn() {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimPrefix(string(a), returnPrefix))
	if err != nil {
		return 0, false
	}
	return code, true
}

// ParseAction validates an action string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionRunThen, ActionRunElse, ActionContinue, ActionBreak, "":
		return a, nil
	}
	if a.IsReturn() {
		if _, ok := a.ReturnCode(); ok {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q (expected run_then, run_else, continue, break, or return:<code>)", s)
}

// Condition is a textual boolean expression, optionally capturing its
// outcome into a named variable.
type Condition struct {
	Expression string `json:"expression"`
	Variable   string `json:"variable,omitempty"`
}

// ConditionalStep holds the payload of a conditional step: a condition,
// the block to run when it is true, an optional else block, and an
// optional post-evaluation action.
type ConditionalStep struct {
	Condition Condition `json:"condition"`
	Then      []Step    `json:"then"`
	Else      []Step    `json:"else,omitempty"`
	Action    Action    `json:"action,omitempty"`
}

// BranchCase pairs a match value with the steps to run when the branch
// variable equals it. Cases are ordered; the first match wins.
type BranchCase struct {
	Value string `json:"value"`
	Steps []Step `json:"steps"`
}

// BranchStep holds the payload of a branch step: the variable to switch
// on, the ordered cases, and an optional default block.
type BranchStep struct {
	Variable string       `json:"variable"`
	Cases    []BranchCase `json:"cases"`
	Default  []Step       `json:"default,omitempty"`
}

// LoopStep holds the payload of a loop step. The condition is re-evaluated
// before every iteration of the body.
type LoopStep struct {
	Condition Condition `json:"condition"`
	Body      []Step    `json:"body"`
}

// Step is one node of a workflow tree: a tagged variant over command,
// auth, conditional, branch, and loop. Exactly one payload matches the
// type tag: command/auth steps carry command text and no nested payload;
// conditional/branch/loop steps carry their payload and no command text.
type Step struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description"`
	Type            StepType `json:"type"`
	Command         string   `json:"command,omitempty"`
	ContinueOnError bool     `json:"continue_on_error,omitempty"`
	RequireApproval bool     `json:"require_approval,omitempty"`

	Conditional *ConditionalStep `json:"conditional,omitempty"`
	Branch      *BranchStep      `json:"branch,omitempty"`
	Loop        *LoopStep        `json:"loop,omitempty"`
}

// NewCommandStep creates a command step.
func NewCommandStep(name, command, description string) Step {
	return Step{
		Name:        name,
		Description: description,
		Type:        StepCommand,
		Command:     command,
	}
}

// NewAuthStep creates an interactive authentication step. Auth steps spawn
// like command steps but always halt the run on failure.
func NewAuthStep(name, command, description string) Step {
	return Step{
		Name:        name,
		Description: description,
		Type:        StepAuth,
		Command:     command,
	}
}

// NewConditionalStep creates a conditional step.
func NewConditionalStep(name, description string, payload ConditionalStep) Step {
	return Step{
		Name:        name,
		Description: description,
		Type:        StepConditional,
		Conditional: &payload,
	}
}

// NewBranchStep creates a branch step.
func NewBranchStep(name, description string, payload BranchStep) Step {
	return Step{
		Name:        name,
		Description: description,
		Type:        StepBranch,
		Branch:      &payload,
	}
}

// NewLoopStep creates a loop step.
func NewLoopStep(name, description string, payload LoopStep) Step {
	return Step{
		Name:        name,
		Description: description,
		Type:        StepLoop,
		Loop:        &payload,
	}
}

// WithContinueOnError returns a copy of the step with the flag set.
// Meaningful only for command steps.
func (s Step) WithContinueOnError() Step {
	s.ContinueOnError = true
	return s
}

// WithApproval returns a copy of the step that requires explicit approval
// before executing.
func (s Step) WithApproval() Step {
	s.RequireApproval = true
	return s
}

// Validate checks the tagged-variant invariant: the type tag is known,
// command/auth steps carry command text and no nested payload, and
// conditional/branch/loop steps carry exactly the matching payload and no
// command text.
func (s *Step) Validate() error {
	switch s.Type {
	case StepCommand, StepAuth:
		if s.Conditional != nil || s.Branch != nil || s.Loop != nil {
			return fmt.Errorf("step %q: %s steps cannot carry a nested payload", s.Name, s.Type)
		}
	case StepConditional:
		if s.Command != "" {
			return fmt.Errorf("step %q: conditional steps cannot carry command text", s.Name)
		}
		if s.Conditional == nil || s.Branch != nil || s.Loop != nil {
			return fmt.Errorf("step %q: conditional steps need exactly the conditional payload", s.Name)
		}
		if _, err := ParseAction(string(s.Conditional.Action)); err != nil {
			return fmt.Errorf("step %q: %w", s.Name, err)
		}
		for i := range s.Conditional.Then {
			if err := s.Conditional.Then[i].Validate(); err != nil {
				return err
			}
		}
		for i := range s.Conditional.Else {
			if err := s.Conditional.Else[i].Validate(); err != nil {
				return err
			}
		}
	case StepBranch:
		if s.Command != "" {
			return fmt.Errorf("step %q: branch steps cannot carry command text", s.Name)
		}
		if s.Branch == nil || s.Conditional != nil || s.Loop != nil {
			return fmt.Errorf("step %q: branch steps need exactly the branch payload", s.Name)
		}
		for _, c := range s.Branch.Cases {
			for i := range c.Steps {
				if err := c.Steps[i].Validate(); err != nil {
					return err
				}
			}
		}
		for i := range s.Branch.Default {
			if err := s.Branch.Default[i].Validate(); err != nil {
				return err
			}
		}
	case StepLoop:
		if s.Command != "" {
			return fmt.Errorf("step %q: loop steps cannot carry command text", s.Name)
		}
		if s.Loop == nil || s.Conditional != nil || s.Branch != nil {
			return fmt.Errorf("step %q: loop steps need exactly the loop payload", s.Name)
		}
		for i := range s.Loop.Body {
			if err := s.Loop.Body[i].Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("step %q: unknown step type %q", s.Name, s.Type)
	}
	return nil
}

// UnmarshalJSON decodes a step and enforces the tagged-variant invariant,
// so malformed step trees are rejected at the decoding boundary.
func (s *Step) UnmarshalJSON(data []byte) error {
	type alias Step
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Step(a)
	return s.Validate()
}

// Clone returns a deep copy of the step, including all nested blocks.
func (s Step) Clone() Step {
	out := s
	if s.Conditional != nil {
		c := ConditionalStep{
			Condition: s.Conditional.Condition,
			Then:      CloneSteps(s.Conditional.Then),
			Else:      CloneSteps(s.Conditional.Else),
			Action:    s.Conditional.Action,
		}
		out.Conditional = &c
	}
	if s.Branch != nil {
		b := BranchStep{
			Variable: s.Branch.Variable,
			Default:  CloneSteps(s.Branch.Default),
		}
		if s.Branch.Cases != nil {
			b.Cases = make([]BranchCase, len(s.Branch.Cases))
			for i, c := range s.Branch.Cases {
				b.Cases[i] = BranchCase{Value: c.Value, Steps: CloneSteps(c.Steps)}
			}
		}
		out.Branch = &b
	}
	if s.Loop != nil {
		l := LoopStep{
			Condition: s.Loop.Condition,
			Body:      CloneSteps(s.Loop.Body),
		}
		out.Loop = &l
	}
	return out
}

// CloneSteps deep-copies a step list. Returns nil for nil input so
// optional blocks stay optional across copies.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i := range steps {
		out[i] = steps[i].Clone()
	}
	return out
}
