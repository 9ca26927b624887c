package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"time"

	errs "callrate/pkg/errors"
)

// waitDelay bounds how long Run waits for output after the command has been
// killed.
const waitDelay = 500 * time.Millisecond

// CommandExecutor runs an external program once per attempt. Job arguments
// are appended to Args; the run index is exported as CALLRATE_RUN. On
// timeout or cancellation the whole process group is killed, so children
// the program started do not outlive it.
type CommandExecutor struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

func (e *CommandExecutor) Run(ctx context.Context, job Job) ([]byte, error) {
	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.Args...), job.Args...)
	cmd := exec.CommandContext(runCtx, e.Path, args...)
	cmd.Env = append(os.Environ(), "CALLRATE_RUN="+strconv.Itoa(job.Index))
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, nil
	}

	// parent context ended
	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return out, errs.NewConfigurationError("command", "%v", err)
	}

	if runCtx.Err() != nil {
		return out, errs.NewCommandError(fmt.Sprintf("%s timed out after %s", e.Path, e.Timeout), err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, errs.NewCommandError(fmt.Sprintf("%s exited with status %d", e.Path, exitErr.ExitCode()), err)
	}
	return out, errs.NewCommandError(fmt.Sprintf("%s failed", e.Path), err)
}
