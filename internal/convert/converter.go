// Package convert turns shell functions into workflows. A script is
// scanned for the named function, its body is parsed line by line into a
// small statement tree (if/case/for/while/assignment/command), and the
// tree is lowered onto the workflow step model: if becomes a conditional
// step, case a branch step, loops become loop steps, and everything else
// a command step. Positional parameters become required variables.
package convert

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/security"
)

// statement kinds produced by the shell parser.
type stmtKind int

const (
	stmtCommand stmtKind = iota
	stmtIf
	stmtCase
	stmtFor
	stmtWhile
	stmtAssign
)

type statement struct {
	kind stmtKind

	// stmtCommand
	command string

	// stmtIf
	condition string
	thenBlock []statement
	elseBlock []statement

	// stmtCase
	variable    string
	cases       []caseEntry
	defaultCase []statement

	// stmtFor
	items string

	// stmtFor / stmtWhile
	body []statement

	// stmtAssign
	name  string
	value string
	local bool
}

type caseEntry struct {
	pattern  string
	commands []statement
}

var (
	caseHeader  = regexp.MustCompile(`case\s+"?(\$?\w+)"?\s+in`)
	forHeader   = regexp.MustCompile(`for\s+(\w+)\s+in\s+(.+?)(?:;\s*do)?$`)
	paramRef    = regexp.MustCompile(`\$(\d+)`)
	variableRef = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ConvertFile reads a shell script, extracts the named function, and
// converts its body into a workflow.
func ConvertFile(path, function, workflowName, description string, tags []string) (*model.Workflow, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConvert,
			fmt.Sprintf("Failed to read script file %s", path),
			"Check the path is correct")
	}
	return Convert(string(content), function, workflowName, description, tags)
}

// Convert extracts the named function from script content and converts
// its body into a workflow.
func Convert(script, function, workflowName, description string, tags []string) (*model.Workflow, error) {
	body, err := extractFunction(script, function)
	if err != nil {
		return nil, err
	}

	steps, err := ConvertBody(body)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, errors.New(errors.ErrConvert,
			fmt.Sprintf("Function '%s' has no convertible statements", function),
			"The function body is empty or only comments")
	}

	wf := model.NewWorkflow(workflowName, description, steps)
	wf.Tags = tags
	wf.Variables = extractVariables(body)
	if err := wf.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConvert,
			"Converted workflow failed validation", "")
	}
	return wf, nil
}

// ConvertBody parses a function body and lowers it into workflow steps.
func ConvertBody(body string) ([]model.Step, error) {
	p := &parser{lines: strings.Split(body, "\n")}
	statements, err := p.parseBlock(nil)
	if err != nil {
		return nil, err
	}
	return buildSteps(statements), nil
}

// extractFunction finds "name() { ... }" in the script and returns the
// body between the braces. The closing brace must start its own line,
// which is how shell functions are conventionally written.
func extractFunction(script, name string) (string, error) {
	pattern := fmt.Sprintf(`(?sm)^%s\s*\(\)\s*\{(.*?)^\}`, regexp.QuoteMeta(name))
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConvert,
			fmt.Sprintf("Invalid function name '%s'", name), "")
	}
	m := re.FindStringSubmatch(script)
	if m == nil {
		return "", errors.New(errors.ErrConvert,
			fmt.Sprintf("Function '%s' not found in the script", name),
			"Check the function name with 'grep -n \"()\" <script>'")
	}
	return m[1], nil
}

// extractVariables derives workflow variables from the function body:
// positional parameters $1..$N become required param1..paramN, and named
// $VAR references become optional variables. Shell specials and names the
// sanitizer rejects are skipped.
func extractVariables(body string) []model.Variable {
	var vars []model.Variable

	maxParam := 0
	for _, m := range paramRef.FindAllStringSubmatch(body, -1) {
		n := 0
		fmt.Sscanf(m[1], "%d", &n)
		if n > maxParam {
			maxParam = n
		}
	}
	for i := 1; i <= maxParam; i++ {
		vars = append(vars, model.Variable{
			Name:        fmt.Sprintf("param%d", i),
			Description: fmt.Sprintf("Function parameter $%d", i),
			Required:    true,
		})
	}

	seen := make(map[string]bool)
	for _, m := range variableRef.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, err := security.SanitizeVariableName(name); err != nil {
			continue
		}
		vars = append(vars, model.Variable{
			Name:        name,
			Description: fmt.Sprintf("Shell variable: %s", name),
		})
	}
	return vars
}

// parser walks the function body line by line. Block parsers consume up
// to and including their terminator (fi, esac, done).
type parser struct {
	lines []string
	pos   int
}

// parseBlock parses statements until one of the stop keywords is the
// whole line, leaving the stop line unconsumed. A nil stop set parses to
// the end of input.
func (p *parser) parseBlock(stop map[string]bool) ([]statement, error) {
	var out []statement
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		if line == "" || strings.HasPrefix(line, "#") {
			p.pos++
			continue
		}
		if stop != nil && stop[line] {
			return out, nil
		}
		stmt, err := p.parseStatement(line)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	if stop != nil {
		return nil, errors.New(errors.ErrConvert,
			"Unterminated block in function body",
			"Check for a missing fi, esac, or done")
	}
	return out, nil
}

func (p *parser) parseStatement(line string) (statement, error) {
	switch {
	case strings.HasPrefix(line, "if "):
		return p.parseIf(line)
	case strings.HasPrefix(line, "case "):
		return p.parseCase(line)
	case strings.HasPrefix(line, "for "):
		return p.parseFor(line)
	case strings.HasPrefix(line, "while "):
		return p.parseWhile(line)
	case strings.HasPrefix(line, "local "):
		p.pos++
		return parseLocal(line), nil
	case strings.Contains(line, "=") && !strings.Contains(line, " "):
		p.pos++
		name, value, _ := strings.Cut(line, "=")
		return statement{
			kind:  stmtAssign,
			name:  strings.TrimSpace(name),
			value: strings.Trim(strings.TrimSpace(value), `"`),
		}, nil
	default:
		p.pos++
		return statement{kind: stmtCommand, command: line}, nil
	}
}

func (p *parser) parseIf(line string) (statement, error) {
	var condition string
	if cond, ok := strings.CutSuffix(line, "; then"); ok {
		condition = strings.TrimSpace(strings.TrimPrefix(cond, "if "))
		p.pos++
	} else {
		// "then" on its own line.
		condition = strings.TrimSpace(strings.TrimPrefix(line, "if "))
		p.pos++
		if p.pos >= len(p.lines) || strings.TrimSpace(p.lines[p.pos]) != "then" {
			return statement{}, errors.New(errors.ErrConvert,
				fmt.Sprintf("Malformed if statement: %s", line),
				"Expected 'then' after the condition")
		}
		p.pos++
	}

	thenBlock, err := p.parseBlock(map[string]bool{"else": true, "fi": true})
	if err != nil {
		return statement{}, err
	}

	var elseBlock []statement
	if strings.TrimSpace(p.lines[p.pos]) == "else" {
		p.pos++
		elseBlock, err = p.parseBlock(map[string]bool{"fi": true})
		if err != nil {
			return statement{}, err
		}
	}
	p.pos++ // fi

	return statement{
		kind:      stmtIf,
		condition: condition,
		thenBlock: thenBlock,
		elseBlock: elseBlock,
	}, nil
}

func (p *parser) parseCase(line string) (statement, error) {
	m := caseHeader.FindStringSubmatch(line)
	if m == nil {
		return statement{}, errors.New(errors.ErrConvert,
			fmt.Sprintf("Malformed case statement: %s", line),
			"Expected 'case $var in'")
	}
	stmt := statement{
		kind:     stmtCase,
		variable: strings.TrimPrefix(m[1], "$"),
	}
	p.pos++

	for p.pos < len(p.lines) {
		entry := strings.TrimSpace(p.lines[p.pos])
		if entry == "esac" {
			p.pos++
			return stmt, nil
		}
		pattern, ok := strings.CutSuffix(entry, ")")
		if !ok {
			p.pos++
			continue
		}
		pattern = strings.TrimSpace(pattern)
		p.pos++

		commands, err := p.parseBlock(map[string]bool{";;": true, "esac": true})
		if err != nil {
			return statement{}, err
		}
		if strings.TrimSpace(p.lines[p.pos]) == ";;" {
			p.pos++
		}

		if pattern == "*" {
			stmt.defaultCase = commands
		} else {
			stmt.cases = append(stmt.cases, caseEntry{pattern: pattern, commands: commands})
		}
	}
	return statement{}, errors.New(errors.ErrConvert,
		"Unterminated case statement", "Check for a missing esac")
}

func (p *parser) parseFor(line string) (statement, error) {
	m := forHeader.FindStringSubmatch(line)
	if m == nil {
		return statement{}, errors.New(errors.ErrConvert,
			fmt.Sprintf("Malformed for loop: %s", line),
			"Expected 'for var in items'")
	}
	body, err := p.parseLoopBody(line)
	if err != nil {
		return statement{}, err
	}
	return statement{
		kind:     stmtFor,
		variable: m[1],
		items:    strings.TrimSpace(m[2]),
		body:     body,
	}, nil
}

func (p *parser) parseWhile(line string) (statement, error) {
	condition := strings.TrimPrefix(line, "while ")
	condition = strings.TrimSpace(strings.TrimSuffix(condition, "; do"))
	body, err := p.parseLoopBody(line)
	if err != nil {
		return statement{}, err
	}
	return statement{kind: stmtWhile, condition: condition, body: body}, nil
}

// parseLoopBody consumes the optional standalone "do" line and the body
// through its "done".
func (p *parser) parseLoopBody(header string) ([]statement, error) {
	p.pos++
	if !strings.HasSuffix(strings.TrimSpace(header), "; do") {
		if p.pos >= len(p.lines) || strings.TrimSpace(p.lines[p.pos]) != "do" {
			return nil, errors.New(errors.ErrConvert,
				fmt.Sprintf("Missing 'do' in loop: %s", header), "")
		}
		p.pos++
	}
	body, err := p.parseBlock(map[string]bool{"done": true})
	if err != nil {
		return nil, err
	}
	p.pos++ // done
	return body, nil
}

func parseLocal(line string) statement {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "local "))
	name, value, found := strings.Cut(rest, "=")
	if !found {
		return statement{kind: stmtAssign, name: rest, local: true}
	}
	return statement{
		kind:  stmtAssign,
		name:  strings.TrimSpace(name),
		value: strings.Trim(strings.TrimSpace(value), `"`),
		local: true,
	}
}

// buildSteps lowers the statement tree onto the workflow step model.
// Command text is carried verbatim; escaping would corrupt pipes and
// substitutions the script legitimately uses.
func buildSteps(statements []statement) []model.Step {
	var steps []model.Step
	for _, st := range statements {
		switch st.kind {
		case stmtCommand:
			steps = append(steps, model.NewCommandStep(
				"Execute: "+truncate(st.command),
				st.command,
				"Execute shell command"))
		case stmtIf:
			steps = append(steps, model.NewConditionalStep(
				"Conditional Check",
				"Check condition: "+st.condition,
				model.ConditionalStep{
					Condition: model.Condition{Expression: st.condition},
					Then:      buildSteps(st.thenBlock),
					Else:      buildSteps(st.elseBlock),
				}))
		case stmtCase:
			branch := model.BranchStep{
				Variable: st.variable,
				Default:  buildSteps(st.defaultCase),
			}
			for _, c := range st.cases {
				branch.Cases = append(branch.Cases, model.BranchCase{
					Value: c.pattern,
					Steps: buildSteps(c.commands),
				})
			}
			steps = append(steps, model.NewBranchStep(
				"Branch by Value",
				"Branch based on variable: "+st.variable,
				branch))
		case stmtFor:
			steps = append(steps, model.NewLoopStep(
				"For Loop",
				fmt.Sprintf("Iterate %s over %s", st.variable, st.items),
				model.LoopStep{
					Condition: model.Condition{
						Expression: fmt.Sprintf("has_more_items(%s)", st.items),
						Variable:   st.variable,
					},
					Body: buildSteps(st.body),
				}))
		case stmtWhile:
			steps = append(steps, model.NewLoopStep(
				"While Loop",
				"Loop while: "+st.condition,
				model.LoopStep{
					Condition: model.Condition{Expression: st.condition},
					Body:      buildSteps(st.body),
				}))
		case stmtAssign:
			scope := "global"
			prefix := ""
			if st.local {
				scope = "local"
				prefix = "local "
			}
			command := fmt.Sprintf("%s%s=%q", prefix, st.name, st.value)
			if st.value == "" {
				command = fmt.Sprintf("# Declare %s variable %s", scope, st.name)
			}
			steps = append(steps, model.NewCommandStep(
				fmt.Sprintf("Set %s variable: %s", scope, st.name),
				command,
				fmt.Sprintf("Set %s variable %s", scope, st.name)))
		}
	}
	return steps
}

func truncate(cmd string) string {
	if len(cmd) > 50 {
		return cmd[:47] + "..."
	}
	return cmd
}
