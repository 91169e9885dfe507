package engine

import "github.com/wfkit/wf/internal/model"

// Observer receives execution progress for rendering. Implementations
// must not block: the engine calls them inline between spawns.
type Observer interface {
	// RunStarted fires once after the context is assembled.
	RunStarted(workflow string, context map[string]string)
	// StepStarted fires before a command or auth step spawns. Name carries
	// any loop prefix the result will surface under.
	StepStarted(name string, stepType model.StepType, command string)
	// StepFinished fires with the step's recorded result.
	StepFinished(result StepResult)
	// LoopIteration fires before each loop pass, 1-based.
	LoopIteration(stepName string, iteration int)
	// ConditionEvaluated fires after a conditional or loop condition is
	// evaluated.
	ConditionEvaluated(stepName, expression string, outcome bool)
}

// NopObserver discards all progress events.
type NopObserver struct{}

func (NopObserver) RunStarted(string, map[string]string) {}

func (NopObserver) StepStarted(string, model.StepType, string) {}

func (NopObserver) StepFinished(StepResult) {}

func (NopObserver) LoopIteration(string, int) {}

func (NopObserver) ConditionEvaluated(string, string, bool) {}
