// Package worker starts the opaque worker process. The loop knows nothing
// about what the worker does: it starts it with a context prompt, blocks
// until it exits, and treats any exit — success, failure, killed — as
// "tick complete, evaluate again".
package worker

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/thruflo/pacer/internal/logging"
)

// Executor defines the interface for starting the worker. The abstraction
// allows testing with recorded executors.
type Executor interface {
	// Start launches the worker with the given context prompt and blocks
	// until it exits.
	Start(ctx context.Context, prompt string) error
}

// ExecExecutor runs the configured worker command as a subprocess.
type ExecExecutor struct {
	// Command is the argv to run; the context prompt is appended as the
	// final argument when non-empty.
	Command []string
	// Dir is the working directory for the worker (empty = inherit).
	Dir string

	log *logging.Logger
}

// NewExecExecutor creates an ExecExecutor for the given command.
func NewExecExecutor(command []string, dir string) *ExecExecutor {
	return &ExecExecutor{
		Command: command,
		Dir:     dir,
		log:     logging.With("component", "worker"),
	}
}

// Start runs the worker command, streaming its output lines to the log.
func (e *ExecExecutor) Start(ctx context.Context, prompt string) error {
	if len(e.Command) == 0 {
		return fmt.Errorf("no worker command configured")
	}

	args := append([]string(nil), e.Command[1:]...)
	if prompt != "" {
		args = append(args, prompt)
	}

	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	cmd.Dir = e.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	done := make(chan struct{}, 2)
	stream := func(name string, r interface{ Read([]byte) (int, error) }) {
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			e.log.Debug("worker output", "stream", name, "line", scanner.Text())
		}
		done <- struct{}{}
	}
	go stream("stdout", stdout)
	go stream("stderr", stderr)

	<-done
	<-done
	return cmd.Wait()
}
