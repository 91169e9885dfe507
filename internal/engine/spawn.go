package engine

import (
	"bytes"
	"os/exec"
	"runtime"

	"github.com/wfkit/wf/internal/errors"
)

// Spawner runs resolved command text through a shell and captures its
// output. The exit code is a value, not an error: a command that ran and
// returned nonzero is a captured result. The error return is reserved for
// spawn failures (shell missing, OS error).
type Spawner func(command string) (stdout, stderr string, exitCode int, err error)

// NewShellSpawner builds a spawner for the given shell. An empty shell
// selects the platform default: sh -c on POSIX, cmd /C on Windows.
func NewShellSpawner(shell string) Spawner {
	return func(command string) (string, string, int, error) {
		var cmd *exec.Cmd
		switch {
		case shell != "":
			cmd = exec.Command(shell, "-c", command)
		case runtime.GOOS == "windows":
			cmd = exec.Command("cmd", "/C", command)
		default:
			cmd = exec.Command("sh", "-c", command)
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		if runErr != nil {
			// Command ran but returned non-zero
			if exitErr, ok := runErr.(*exec.ExitError); ok {
				return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
			}
			// Actual execution failure
			return stdout.String(), stderr.String(), -1, errors.WrapWithCode(runErr, errors.ErrExec,
				"Couldn't run the command",
				"Make sure the shell and command exist and are executable.")
		}

		return stdout.String(), stderr.String(), 0, nil
	}
}
