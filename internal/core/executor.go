package core

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// Invocation is one simulator launch. Dir is handed to the child process
// and never applied to this process.
type Invocation struct {
	Dir  string
	Args []string
}

// Executor runs an invocation and feeds every line of its merged
// stdout/stderr to onLine. If onLine fails the process is stopped and that
// error is returned.
type Executor interface {
	Run(ctx context.Context, inv Invocation, onLine func(line string) error) error
}

// ProcessExecutor runs invocations as operating system processes.
type ProcessExecutor struct {
	// WaitDelay bounds how long Wait lingers on I/O after the process is
	// killed.
	WaitDelay time.Duration
}

func NewExecutor() *ProcessExecutor {
	return &ProcessExecutor{WaitDelay: 5 * time.Second}
}

// Run starts the command and streams its output line by line.
func (e *ProcessExecutor) Run(ctx context.Context, inv Invocation, onLine func(string) error) error {
	if len(inv.Args) == 0 {
		return &ProcessExecutionError{Dir: inv.Dir, Err: errors.New("empty command")}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = e.WaitDelay

	out, err := cmd.StdoutPipe()
	if err != nil {
		return &ProcessExecutionError{Command: inv.Args, Dir: inv.Dir, Err: err}
	}
	// same *os.File for both streams: the child writes interleaved output
	// into one pipe
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return &ProcessExecutionError{Command: inv.Args, Dir: inv.Dir, Err: err}
	}

	var lineErr, readErr error
	reader := bufio.NewReader(out)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if lineErr = onLine(line); lineErr != nil {
				cancel()
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := cmd.Wait()

	switch {
	case lineErr != nil:
		return lineErr
	case ctx.Err() != nil:
		return ctx.Err()
	case readErr != nil:
		return &IOError{Op: "read output of", Path: inv.Args[0], Err: readErr}
	case waitErr != nil:
		perr := &ProcessExecutionError{Command: inv.Args, Dir: inv.Dir, Err: waitErr}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		return perr
	}
	return nil
}
