package model

import (
	"fmt"
	"time"
)

// Variable declares a named input a workflow consumes. Required variables
// with no default must be supplied (flag, profile, or prompt) before a run.
type Variable struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Profile is a named, reusable set of variable values overlaid onto a
// run's context before explicit overrides.
type Profile struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	Variables   map[string]string `json:"variables"`
}

// Workflow is a named, ordered tree of steps plus its declared variables
// and profiles. Name is the store key.
type Workflow struct {
	Name        string             `json:"name" validate:"required"`
	Description string             `json:"description"`
	Steps       []Step             `json:"steps" validate:"min=1"`
	Variables   []Variable         `json:"variables,omitempty"`
	Profiles    map[string]Profile `json:"profiles,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	LastUsed    *time.Time         `json:"last_used,omitempty"`
	UseCount    int                `json:"use_count"`
}

// NewWorkflow creates a workflow with the given steps.
func NewWorkflow(name, description string, steps []Step) *Workflow {
	return &Workflow{
		Name:        name,
		Description: description,
		Steps:       steps,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks every step's tagged-variant invariant.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow name cannot be empty")
	}
	for i := range w.Steps {
		if err := w.Steps[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AddVariable declares a variable on the workflow. Redeclaring a name
// replaces the previous declaration.
func (w *Workflow) AddVariable(v Variable) {
	for i := range w.Variables {
		if w.Variables[i].Name == v.Name {
			w.Variables[i] = v
			return
		}
	}
	w.Variables = append(w.Variables, v)
}

// FindVariable looks up a declared variable by name.
func (w *Workflow) FindVariable(name string) (Variable, bool) {
	for _, v := range w.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// AddProfile attaches a profile to the workflow, replacing any existing
// profile with the same name.
func (w *Workflow) AddProfile(p Profile) {
	if w.Profiles == nil {
		w.Profiles = make(map[string]Profile)
	}
	w.Profiles[p.Name] = p
}

// Profile looks up a profile by name.
func (w *Workflow) Profile(name string) (Profile, bool) {
	p, ok := w.Profiles[name]
	return p, ok
}

// MarkUsed bumps the usage counter and timestamps the run.
func (w *Workflow) MarkUsed() {
	now := time.Now().UTC()
	w.LastUsed = &now
	w.UseCount++
}

// HasTag reports whether the workflow carries the given tag.
func (w *Workflow) HasTag(tag string) bool {
	return hasTag(w.Tags, tag)
}

// Command is a stored single shell command, sharing the store namespace
// with workflows.
type Command struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Command     string     `json:"command" validate:"required"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	UseCount    int        `json:"use_count"`
}

// NewCommand creates a stored command.
func NewCommand(name, command, description string) *Command {
	return &Command{
		Name:        name,
		Description: description,
		Command:     command,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkUsed bumps the usage counter and timestamps the run.
func (c *Command) MarkUsed() {
	now := time.Now().UTC()
	c.LastUsed = &now
	c.UseCount++
}

// HasTag reports whether the command carries the given tag.
func (c *Command) HasTag(tag string) bool {
	return hasTag(c.Tags, tag)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
