// Package engine is the workflow interpreter: it walks a step tree
// strictly in order, spawns command text through the platform shell,
// consults the expression evaluator at every conditional and loop
// boundary, and assembles the ordered result list a run reports.
package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/expr"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/security"
	"github.com/wfkit/wf/internal/vars"
)

// Approver decides whether a step flagged for approval may run. The
// reasons list what triggered the request (step flag, security patterns).
// Returning false cancels the run.
type Approver func(step model.Step, reasons []string) (bool, error)

// Options configures an Engine. Zero values select working defaults:
// the platform shell spawner, a shell-delegating evaluator, no security
// checks, pre-approved steps, and the process's standard streams.
type Options struct {
	Evaluator *expr.Evaluator
	Spawner   Spawner
	Checker   *security.Checker
	Approver  Approver
	Observer  Observer
	Logger    logger.Logger
	Stdin     io.Reader
	Stdout    io.Writer

	// MaxLoopIterations caps loop passes when positive. The default 0
	// leaves loops unbounded, matching the documented contract; the cap
	// is an opt-in safety net.
	MaxLoopIterations int
}

// Engine executes workflows. One engine may run many workflows, but each
// run owns its context exclusively: concurrent runs need separate
// contexts, which Run builds per call.
type Engine struct {
	eval     *expr.Evaluator
	spawn    Spawner
	checker  *security.Checker
	approver Approver
	observer Observer
	logger   logger.Logger
	stdin    *bufio.Reader
	stdout   io.Writer
	maxLoop  int
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	e := &Engine{
		eval:     opts.Evaluator,
		spawn:    opts.Spawner,
		checker:  opts.Checker,
		approver: opts.Approver,
		observer: opts.Observer,
		logger:   opts.Logger,
		stdout:   opts.Stdout,
		maxLoop:  opts.MaxLoopIterations,
	}
	if e.eval == nil {
		e.eval = expr.New()
	}
	if e.spawn == nil {
		e.spawn = NewShellSpawner("")
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	if e.logger == nil {
		e.logger = logger.Default()
	}
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	e.stdin = bufio.NewReader(stdin)
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	return e
}

// RunOptions selects the variable context for one run: profile values
// are applied first, explicit Vars override them, and anything still
// missing is prompted for.
type RunOptions struct {
	Profile string
	Vars    map[string]string
}

// control signals raised by conditional actions and failing steps.
type signal int

const (
	sigNone signal = iota
	sigBreak
	sigReturn
	sigHalt
)

// scope carries traversal state: whether results surface in the
// caller-visible list, and the loop name prefix.
type scope struct {
	record bool
	prefix string
}

type runState struct {
	results    []StepResult
	context    map[string]string
	lastExit   *int
	failedStep string
	failedCode int
}

// Run executes a workflow and returns its ordered result list. Step
// failures are recorded in the result and stop the run per the
// continue_on_error contract; the error return is reserved for the run
// not being executable at all (bad profile, evaluation failure, declined
// approval, prompt failure).
func (e *Engine) Run(wf *model.Workflow, opts RunOptions) (*RunResult, error) {
	if wf == nil {
		return nil, errors.New(errors.ErrFlow,
			"Workflow is nil",
			"This is an internal error - load the workflow before running it")
	}
	if err := wf.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFlow,
			fmt.Sprintf("Workflow '%s' has an invalid step tree", wf.Name),
			"Fix the stored definition before running it")
	}

	context, err := e.buildContext(wf, opts)
	if err != nil {
		return nil, err
	}

	e.observer.RunStarted(wf.Name, context)
	e.logger.Debug("running workflow %s with %d steps", wf.Name, len(wf.Steps))

	st := &runState{context: context}
	start := time.Now()

	sig, code, err := e.runSteps(wf.Steps, st, scope{record: true})
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		WorkflowName: wf.Name,
		Steps:        st.results,
		FailedStep:   st.failedStep,
		Duration:     time.Since(start),
	}
	switch sig {
	case sigReturn:
		result.ExitCode = code
		result.Returned = true
	case sigHalt:
		result.ExitCode = st.failedCode
	default:
		if st.failedStep != "" {
			// A continue_on_error step failed along the way.
			result.ExitCode = st.failedCode
		}
	}
	return result, nil
}

func (e *Engine) buildContext(wf *model.Workflow, opts RunOptions) (map[string]string, error) {
	context := make(map[string]string)

	if opts.Profile != "" {
		profile, ok := wf.Profile(opts.Profile)
		if !ok {
			return nil, errors.New(errors.ErrFlow,
				fmt.Sprintf("Profile '%s' not found in workflow '%s'", opts.Profile, wf.Name),
				"Run 'wf flow profile list' to see available profiles")
		}
		for k, v := range profile.Variables {
			context[k] = v
		}
	}
	for k, v := range opts.Vars {
		context[k] = v
	}

	if err := vars.PromptMissing(wf, context, e.stdin, e.stdout); err != nil {
		return nil, err
	}
	return context, nil
}

// runSteps executes a step list in order, dispatching on the step kind.
// The returned signal unwinds break/return/halt through nested blocks.
func (e *Engine) runSteps(steps []model.Step, st *runState, sc scope) (signal, int, error) {
	for i := range steps {
		step := vars.ResolveStep(steps[i], st.context)

		var (
			sig  signal
			code int
			err  error
		)
		switch step.Type {
		case model.StepCommand:
			sig, err = e.runSpawnStep(step, st, sc, false)
		case model.StepAuth:
			sig, err = e.runSpawnStep(step, st, sc, true)
		case model.StepConditional:
			sig, code, err = e.runConditional(step, st, sc)
		case model.StepBranch:
			sig, code, err = e.runBranch(step, st, sc)
		case model.StepLoop:
			sig, code, err = e.runLoop(step, st, sc)
		default:
			err = errors.New(errors.ErrFlow,
				fmt.Sprintf("Step '%s' has unknown type '%s'", step.Name, step.Type),
				"")
		}

		if err != nil {
			return sigNone, 0, err
		}
		if sig != sigNone {
			return sig, code, nil
		}
	}
	return sigNone, 0, nil
}

// runSpawnStep executes a command or auth step: approval gate, spawn,
// result recording, and halt gating. Auth failures always halt; command
// failures halt unless continue_on_error is set.
func (e *Engine) runSpawnStep(step model.Step, st *runState, sc scope, isAuth bool) (signal, error) {
	if err := e.checkApproval(step); err != nil {
		return sigNone, err
	}

	name := sc.prefix + step.Name
	e.observer.StepStarted(name, step.Type, step.Command)
	e.logger.Debug("spawning step %s: %s", name, step.Command)

	start := time.Now()
	stdout, stderr, exitCode, err := e.spawn(step.Command)
	result := StepResult{
		Name:     name,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Err:      err,
	}

	if err == nil {
		// Only captured results feed later $? checks.
		code := exitCode
		st.lastExit = &code
	}
	if sc.record {
		st.results = append(st.results, result)
	}
	e.observer.StepFinished(result)

	failed := result.Failed()
	if failed {
		if st.failedStep == "" {
			st.failedStep = name
		}
		if result.Err != nil {
			st.failedCode = -1
		} else {
			st.failedCode = exitCode
		}
	}

	if isAuth {
		if failed {
			return sigHalt, nil
		}
		if err := e.waitForAuth(step); err != nil {
			return sigNone, err
		}
		return sigNone, nil
	}

	if failed && !step.ContinueOnError {
		return sigHalt, nil
	}
	return sigNone, nil
}

// waitForAuth blocks until the user confirms the interactive
// authentication started by the step has completed.
func (e *Engine) waitForAuth(step model.Step) error {
	fmt.Fprintf(e.stdout, "This step requires authentication. Please follow the instructions above.\n")
	fmt.Fprintf(e.stdout, "Press Enter when you have completed the authentication process... ")

	if _, err := e.stdin.ReadString('\n'); err != nil && err != io.EOF {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to read auth confirmation for step '%s'", step.Name),
			"")
	}
	fmt.Fprintln(e.stdout, "Authentication confirmed, continuing workflow.")
	return nil
}

// checkApproval gates a step behind the approver when the step requests
// approval or the security checker demands it.
func (e *Engine) checkApproval(step model.Step) error {
	var reasons []string
	if step.RequireApproval {
		reasons = append(reasons, "step is flagged to require approval")
	}
	if e.checker != nil && step.Command != "" {
		check := e.checker.CheckCommand(step.Command)
		if check.RequiresApproval {
			if len(check.Issues) > 0 {
				reasons = append(reasons, check.Issues...)
			} else {
				reasons = append(reasons, "command matches an approval-required pattern")
			}
		}
	}
	if len(reasons) == 0 || e.approver == nil {
		return nil
	}

	approved, err := e.approver(step, reasons)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to get approval for step '%s'", step.Name),
			"")
	}
	if !approved {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Step '%s' was not approved", step.Name),
			"Re-run and approve the step, or pass --yes to pre-approve all steps")
	}
	return nil
}

// runConditional evaluates the condition, runs the selected block with
// its results consumed internally, and applies the post-evaluation
// action.
func (e *Engine) runConditional(step model.Step, st *runState, sc scope) (signal, int, error) {
	c := step.Conditional

	outcome, err := e.eval.Evaluate(c.Condition.Expression, st.context, st.lastExit)
	if err != nil {
		return sigNone, 0, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to evaluate condition for step '%s'", step.Name),
			"")
	}
	e.observer.ConditionEvaluated(step.Name, c.Condition.Expression, outcome)
	if c.Condition.Variable != "" {
		st.context[c.Condition.Variable] = strconv.FormatBool(outcome)
	}

	// Explicit run_then/run_else force block selection; otherwise the
	// outcome picks the block.
	var block []model.Step
	switch c.Action {
	case model.ActionRunThen:
		block = c.Then
	case model.ActionRunElse:
		block = c.Else
	default:
		if outcome {
			block = c.Then
		} else if c.Else != nil {
			block = c.Else
		}
	}

	// Control structures are invisible scaffolding: inner results update
	// the run state but never surface in the caller-visible list.
	inner := scope{record: false, prefix: sc.prefix}
	sig, code, err := e.runSteps(block, st, inner)
	if err != nil || sig != sigNone {
		return sig, code, err
	}

	switch {
	case c.Action == model.ActionBreak:
		return sigBreak, 0, nil
	case c.Action.IsReturn():
		code, _ := c.Action.ReturnCode()
		return sigReturn, code, nil
	}
	return sigNone, 0, nil
}

// runBranch resolves the branch variable and runs the first exactly
// matching case, the default block when nothing matches, or nothing.
// Unlike conditionals, branch results surface to the caller.
func (e *Engine) runBranch(step model.Step, st *runState, sc scope) (signal, int, error) {
	b := step.Branch
	value := st.context[b.Variable]

	var chosen []model.Step
	matched := false
	for _, c := range b.Cases {
		if c.Value == value {
			chosen = c.Steps
			matched = true
			break
		}
	}
	if !matched {
		if b.Default == nil {
			e.logger.Debug("branch %s: no case matches %q and no default", step.Name, value)
			return sigNone, 0, nil
		}
		chosen = b.Default
	}

	return e.runSteps(chosen, st, sc)
}

// runLoop re-evaluates the condition before every pass and runs the body
// while it holds. A break raised by a nested conditional stops this loop;
// return and halt keep unwinding.
func (e *Engine) runLoop(step model.Step, st *runState, sc scope) (signal, int, error) {
	l := step.Loop

	for iteration := 1; ; iteration++ {
		if e.maxLoop > 0 && iteration > e.maxLoop {
			return sigNone, 0, errors.New(errors.ErrExec,
				fmt.Sprintf("Loop '%s' exceeded the configured maximum of %d iterations", step.Name, e.maxLoop),
				"Fix the loop condition or raise max_loop_iterations in your config")
		}

		// The condition may reference variables captured by conditionals in
		// the body, so substitute against the live context each pass.
		expression := vars.Resolve(l.Condition.Expression, st.context)
		outcome, err := e.eval.Evaluate(expression, st.context, st.lastExit)
		if err != nil {
			return sigNone, 0, errors.WrapWithCode(err, errors.ErrExec,
				fmt.Sprintf("Failed to evaluate loop condition for step '%s'", step.Name),
				"")
		}
		e.observer.ConditionEvaluated(step.Name, expression, outcome)
		if l.Condition.Variable != "" {
			st.context[l.Condition.Variable] = strconv.FormatBool(outcome)
		}
		if !outcome {
			return sigNone, 0, nil
		}

		e.observer.LoopIteration(step.Name, iteration)
		inner := scope{
			record: sc.record,
			prefix: fmt.Sprintf("%sloop[%d].", sc.prefix, iteration),
		}
		sig, code, err := e.runSteps(l.Body, st, inner)
		if err != nil {
			return sigNone, 0, err
		}
		switch sig {
		case sigBreak:
			return sigNone, 0, nil
		case sigReturn, sigHalt:
			return sig, code, nil
		}
	}
}
