// Package expr classifies and evaluates the textual boolean conditions
// used by conditional and loop steps. A small closed set of shapes is
// evaluated natively; everything else is delegated to the host shell,
// reusing its test semantics instead of reimplementing them.
package expr

import (
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"

	"github.com/wfkit/wf/internal/errors"
)

// Delegate evaluates an already-substituted expression out of process and
// reports its boolean outcome. Injectable so tests can avoid spawning.
type Delegate func(expression string) (bool, error)

// Evaluator owns its compiled patterns and the shell delegate.
type Evaluator struct {
	delegate Delegate

	braceVar   *regexp.Regexp
	simpleVar  *regexp.Regexp
	exitCheck  *regexp.Regexp
	fileTest   *regexp.Regexp
	stringTest *regexp.Regexp
}

// New creates an evaluator that delegates non-native shapes to the host
// shell (bash on POSIX, PowerShell on Windows).
func New() *Evaluator {
	return NewWithDelegate(ShellDelegate)
}

// NewWithDelegate creates an evaluator with a custom delegate.
func NewWithDelegate(delegate Delegate) *Evaluator {
	return &Evaluator{
		delegate:   delegate,
		braceVar:   regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`),
		simpleVar:  regexp.MustCompile(`\$([A-Za-z0-9_]+)`),
		exitCheck:  regexp.MustCompile(`^\s*\$\?\s*(-eq|-ne|-gt|-lt|-ge|-le|==|!=|>=|<=|>|<)\s*(\d+)\s*$`),
		fileTest:   regexp.MustCompile(`^\s*(\[|\[\[)\s*-[fderwxs]\s+.+\s*(\]|\]\])\s*$`),
		stringTest: regexp.MustCompile(`^\s*(\[|\[\[)\s*(-z|-n)\s+.+\s*(\]|\]\])\s*$`),
	}
}

// Evaluate substitutes $name/${name} tokens from the context, classifies
// the expression, and evaluates it. Exit-code checks compare natively
// against lastExitCode (nil means no command has run yet, which is an
// error); file tests, string tests, and anything unrecognized go through
// the delegate.
func (e *Evaluator) Evaluate(expression string, context map[string]string, lastExitCode *int) (bool, error) {
	substituted := e.Substitute(expression, context)

	if e.exitCheck.MatchString(substituted) {
		return e.evaluateExitCode(substituted, lastExitCode)
	}
	return e.delegate(substituted)
}

// Substitute replaces ${name} and bare $name tokens whose names exist in
// the context. Unknown names are left as-is for the shell to resolve.
// The token $? is never substituted: its name characters don't match, and
// it stays reserved for the last command's exit code.
func (e *Evaluator) Substitute(expression string, context map[string]string) string {
	result := e.braceVar.ReplaceAllStringFunc(expression, func(match string) string {
		name := e.braceVar.FindStringSubmatch(match)[1]
		if value, ok := context[name]; ok {
			return value
		}
		return match
	})
	return e.simpleVar.ReplaceAllStringFunc(result, func(match string) string {
		name := e.simpleVar.FindStringSubmatch(match)[1]
		if value, ok := context[name]; ok {
			return value
		}
		return match
	})
}

// IsExitCodeCheck reports whether the expression compares $? against a
// literal number.
func (e *Evaluator) IsExitCodeCheck(expression string) bool {
	return e.exitCheck.MatchString(expression)
}

// IsFileTest reports whether the expression is a bracketed file test
// ([ -f file ], [[ -d dir ]], and the other -e/-r/-w/-x/-s forms).
func (e *Evaluator) IsFileTest(expression string) bool {
	return e.fileTest.MatchString(expression)
}

// IsStringTest reports whether the expression is a bracketed emptiness
// test ([ -z "$v" ] or [[ -n "$v" ]]).
func (e *Evaluator) IsStringTest(expression string) bool {
	return e.stringTest.MatchString(expression)
}

func (e *Evaluator) evaluateExitCode(expression string, lastExitCode *int) (bool, error) {
	caps := e.exitCheck.FindStringSubmatch(expression)
	if caps == nil {
		return false, errors.New(errors.ErrExec,
			fmt.Sprintf("Invalid exit code expression: %s", expression),
			"Use a form like '$? -eq 0'")
	}

	operator := caps[1]
	expected, err := strconv.Atoi(caps[2])
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Invalid exit code number in expression: %s", expression),
			"")
	}

	if lastExitCode == nil {
		return false, errors.New(errors.ErrExec,
			"No previous command result available for $? evaluation",
			"Place a command step before this condition")
	}
	actual := *lastExitCode

	switch operator {
	case "-eq", "==":
		return actual == expected, nil
	case "-ne", "!=":
		return actual != expected, nil
	case "-gt", ">":
		return actual > expected, nil
	case "-lt", "<":
		return actual < expected, nil
	case "-ge", ">=":
		return actual >= expected, nil
	case "-le", "<=":
		return actual <= expected, nil
	}
	return false, errors.New(errors.ErrExec,
		fmt.Sprintf("Unsupported comparison operator: %s", operator),
		"")
}

// ShellDelegate evaluates an expression by wrapping it in a shell
// conditional and spawning the platform shell. The boolean outcome is the
// subprocess's success or failure; a failed spawn is an error.
func ShellDelegate(expression string) (bool, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("powershell", "-Command",
			fmt.Sprintf("if (%s) { exit 0 } else { exit 1 }", expression))
	} else {
		cmd = exec.Command("bash", "-c",
			fmt.Sprintf("if %s; then exit 0; else exit 1; fi", expression))
	}

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to evaluate expression '%s'", expression),
			"Check that the shell is available on PATH")
	}
	return true, nil
}
