package engine

import "time"

// StepResult records one executed command or auth step: the captured
// process outcome, or the spawn failure that prevented it. Steps executed
// inside a loop surface with a "loop[N]." name prefix; steps inside a
// conditional block are consumed internally and never surface.
type StepResult struct {
	Name     string        `json:"name"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failed reports whether the step failed: a spawn error or a nonzero exit.
func (r *StepResult) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// RunResult is the outcome of one workflow run: the ordered caller-visible
// step results plus the overall exit status.
type RunResult struct {
	WorkflowName string        `json:"workflow"`
	Steps        []StepResult  `json:"steps"`
	FailedStep   string        `json:"failed_step,omitempty"`
	ExitCode     int           `json:"exit_code"`
	Returned     bool          `json:"returned,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Failed reports whether the run stopped on a failing step.
func (r *RunResult) Failed() bool {
	return r.FailedStep != ""
}
