// Package executor runs proposed commands on the host shell.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// LocalExecutor runs commands with `shell -c`.
type LocalExecutor struct {
	shell string
}

// NewLocalExecutor builds a new executor, shell defaults to $SHELL then /bin/sh.
func NewLocalExecutor(shell string) *LocalExecutor {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &LocalExecutor{shell: shell}
}

// Shell returns the shell binary commands run under.
func (e *LocalExecutor) Shell() string {
	return e.shell
}

// Execute implements ports.ExecutionService. A non-zero exit is a normal
// result; a timeout or a shell that cannot start is a transport error.
func (e *LocalExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultExecutionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, e.shell, "-c", req.Command)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start).Seconds()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ExecutionResult{}, fmt.Errorf("%w: %s after %s: %v", domain.ErrTransport, req.Command, timeout, ctxErr)
	}

	result := domain.ExecutionResult{
		Output:         strings.TrimSpace(stdout.String()),
		Error:          strings.TrimSpace(stderr.String()),
		ElapsedSeconds: elapsed,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if result.Error == "" {
			result.Error = exitErr.Error()
		}
		return result, nil
	}
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("%w: starting %s: %v", domain.ErrTransport, e.shell, err)
	}
	return result, nil
}

var _ ports.ExecutionService = (*LocalExecutor)(nil)
