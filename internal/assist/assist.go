// Package assist asks an Anthropic model for help with stored commands
// and workflows. The model is prompted with the user's catalog and a
// strict response grammar; its reply is parsed back into a suggested
// action (run or create a command or workflow) that the CLI confirms
// with the user before doing anything.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/model"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-3-opus-20240229"
	defaultMaxTokens = 4000
	defaultTemp      = 0.7
	apiVersion       = "2023-06-01"
)

// ActionKind classifies what the model suggested.
type ActionKind string

const (
	ActionNone           ActionKind = "none"
	ActionRunCommand     ActionKind = "run_command"
	ActionRunWorkflow    ActionKind = "run_workflow"
	ActionCreateCommand  ActionKind = "create_command"
	ActionCreateWorkflow ActionKind = "create_workflow"
)

// Action is the parsed suggestion from a model reply. Name is the
// command or workflow to run or create; Command and Steps are only set
// for the create kinds.
type Action struct {
	Kind        ActionKind
	Name        string
	Description string
	Command     string
	Steps       []model.Step
}

// Options configures the assistant. Zero values fall back to defaults;
// the API key falls back to the ANTHROPIC_API_KEY environment variable.
type Options struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	BaseURL     string
	MaxRetries  int
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// Assistant is a minimal client for the Anthropic messages API.
type Assistant struct {
	opts Options
}

// New builds an assistant, failing fast when no API key is available.
func New(opts Options) (*Assistant, error) {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if opts.APIKey == "" {
		return nil, errors.New(errors.ErrConfig,
			"No API key configured for the assistant",
			"Set ANTHROPIC_API_KEY or add assist.api_key to your config")
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemp
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Assistant{opts: opts}, nil
}

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	System      string       `json:"system"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Ask sends the question with the catalog as context and returns the
// model's full reply plus the action parsed out of it.
func (a *Assistant) Ask(ctx context.Context, question string, commands []*model.Command, workflows []*model.Workflow) (string, Action, error) {
	body, err := json.Marshal(apiRequest{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
		System:      buildSystemPrompt(commands, workflows),
		Messages:    []apiMessage{{Role: "user", Content: question}},
	})
	if err != nil {
		return "", Action{}, errors.WrapWithCode(err, errors.ErrAssist,
			"Failed to encode assistant request", "")
	}

	text, err := a.send(ctx, body)
	if err != nil {
		return "", Action{}, err
	}
	return text, ParseAction(text), nil
}

// send posts the request, retrying with exponential backoff and jitter.
// Only rate limits, server errors, and transport failures are retried;
// auth and validation errors surface immediately.
func (a *Assistant) send(ctx context.Context, body []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < a.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			delay += time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			a.opts.Logger.Debug("assistant retry %d after %v: %v", attempt, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", errors.WrapWithCode(ctx.Err(), errors.ErrAssist,
					"Assistant request cancelled", "")
			}
		}

		text, retryable, err := a.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (a *Assistant) attempt(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", false, errors.WrapWithCode(err, errors.ErrAssist,
			"Failed to build assistant request", "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.opts.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return "", true, errors.WrapWithCode(err, errors.ErrAssist,
			"Failed to reach the assistant API",
			"Check your network connection")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, errors.WrapWithCode(err, errors.ErrAssist,
			"Failed to read assistant response", "")
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, errors.New(errors.ErrAssist,
			fmt.Sprintf("Assistant API returned %s", resp.Status),
			"The service is busy; the request will be retried")
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var parsed apiResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", false, errors.New(errors.ErrAssist,
			fmt.Sprintf("Assistant API rejected the request: %s", msg),
			"Check your API key and model name")
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, errors.WrapWithCode(err, errors.ErrAssist,
			"Failed to decode assistant response", "")
	}
	var parts []string
	for _, block := range parsed.Content {
		parts = append(parts, block.Text)
	}
	return strings.Join(parts, "\n"), false, nil
}

const systemPreamble = `You are the assistant built into the wf command-line tool.
wf stores shell commands and multi-step workflows and runs them on demand.

When the user asks a question, decide what they are trying to do and answer
in exactly one of these formats:

1. To run an existing command:
[RUN COMMAND: command_name]
Explanation...

2. To run an existing workflow:
[RUN WORKFLOW: workflow_name]
Explanation...

3. To create a new command:
[CREATE COMMAND]
Name: command_name
Description: what the command does
Command: the shell command to run
Explanation...

4. To create a new workflow:
[CREATE WORKFLOW]
Name: workflow_name
Description: what the workflow does
Steps:
- Step 1: name="Step 1", command="command1", description="step description", continue_on_error=false, step_type="command"
Explanation...

5. For information only:
[INFO]
Answer...

Format the action marker exactly as shown so it can be parsed. Be cautious
with destructive operations.`

func buildSystemPrompt(commands []*model.Command, workflows []*model.Workflow) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if len(commands) > 0 {
		b.WriteString("\n\nAvailable commands:\n")
		for _, c := range commands {
			fmt.Fprintf(&b, "- %s: %s\n  Command: %s\n", c.Name, c.Description, c.Command)
		}
	}
	if len(workflows) > 0 {
		b.WriteString("\nAvailable workflows:\n")
		for _, w := range workflows {
			fmt.Fprintf(&b, "- %s: %s (%d steps)\n", w.Name, w.Description, len(w.Steps))
			for i, s := range w.Steps {
				fmt.Fprintf(&b, "  - Step %d: %s\n", i+1, s.Name)
			}
		}
	}
	return b.String()
}

var (
	runCommandRe  = regexp.MustCompile(`\[RUN COMMAND: ([^\]]+)\]`)
	runWorkflowRe = regexp.MustCompile(`\[RUN WORKFLOW: ([^\]]+)\]`)
	nameRe        = regexp.MustCompile(`Name: ([^\n]+)`)
	descRe        = regexp.MustCompile(`Description: ([^\n]+)`)
	commandRe     = regexp.MustCompile(`Command: ([^\n]+)`)
	stepRe        = regexp.MustCompile(`- Step \d+: name="([^"]+)", command="([^"]+)", description="([^"]*)", continue_on_error=(\w+), step_type="([^"]+)"`)
)

// ParseAction extracts the suggested action from a model reply. Replies
// that match no marker, or create markers missing their fields, parse as
// ActionNone.
func ParseAction(text string) Action {
	if m := runCommandRe.FindStringSubmatch(text); m != nil {
		return Action{Kind: ActionRunCommand, Name: strings.TrimSpace(m[1])}
	}
	if m := runWorkflowRe.FindStringSubmatch(text); m != nil {
		return Action{Kind: ActionRunWorkflow, Name: strings.TrimSpace(m[1])}
	}

	if strings.Contains(text, "[CREATE COMMAND]") {
		name := nameRe.FindStringSubmatch(text)
		desc := descRe.FindStringSubmatch(text)
		cmd := commandRe.FindStringSubmatch(text)
		if name != nil && desc != nil && cmd != nil {
			return Action{
				Kind:        ActionCreateCommand,
				Name:        strings.TrimSpace(name[1]),
				Description: strings.TrimSpace(desc[1]),
				Command:     strings.TrimSpace(cmd[1]),
			}
		}
	}

	if strings.Contains(text, "[CREATE WORKFLOW]") {
		name := nameRe.FindStringSubmatch(text)
		desc := descRe.FindStringSubmatch(text)
		if name != nil && desc != nil {
			var steps []model.Step
			for _, m := range stepRe.FindAllStringSubmatch(text, -1) {
				step := model.NewCommandStep(m[1], m[2], m[3])
				if strings.EqualFold(m[5], string(model.StepAuth)) {
					step = model.NewAuthStep(m[1], m[2], m[3])
				}
				if m[4] == "true" {
					step = step.WithContinueOnError()
				}
				steps = append(steps, step)
			}
			if len(steps) > 0 {
				return Action{
					Kind:        ActionCreateWorkflow,
					Name:        strings.TrimSpace(name[1]),
					Description: strings.TrimSpace(desc[1]),
					Steps:       steps,
				}
			}
		}
	}

	return Action{Kind: ActionNone}
}
