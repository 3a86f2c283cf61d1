package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	outputTailBytes = 4096
	killWaitDelay   = 2 * time.Second
)

// CommandResult is what the executor observed of one process run.
type CommandResult struct {
	ExitCode int
	Output   string
}

// Runner spawns a capture binary and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, args []string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns the production Runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes args[0] with args[1:]. A spawn failure yields exit code -1.
// A ctx deadline kills the process.
func (r *ExecRunner) Run(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{ExitCode: -1}, fmt.Errorf("empty command")
	}

	output := &tailBuffer{limit: outputTailBytes}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = killWaitDelay

	err := cmd.Run()
	result := CommandResult{Output: output.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		slog.Debug("Capture output", "command", args[0], "output", result.Output)
		return result, err
	}

	slog.Debug("Capture output", "command", args[0], "output", result.Output)
	return result, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
