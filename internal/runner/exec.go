package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// LineSink receives one line of process output at a time
type LineSink func(line string)

// Logger interface for debug logging
type Logger interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Spec describes a process to run
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
	Stdout  LineSink
	Stderr  LineSink
}

// Runner spawns the external tool and streams its output line by
// line. The real implementation is ExecRunner; tests inject fakes.
type Runner interface {
	Run(ctx context.Context, spec Spec) (int, error)
}

// ExecRunner runs commands as real processes in their own process
// group so cancellation can take descendants down with them.
type ExecRunner struct {
	logger Logger
}

// NewExecRunner creates a process-backed runner
func NewExecRunner(logger Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run starts the process and blocks until it exits or ctx is
// cancelled. Both output streams are fully drained before the exit
// code is computed. Returns the exit code and, for cancellation or
// spawn failures, an error.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	// Own process group so we can kill the whole tree
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start command: %w", err)
	}
	r.logger.Debug("Started %s %v (pid %d)", spec.Command, spec.Args, cmd.Process.Pid)

	// Kill the process group on cancellation. Process death closes the
	// pipes, so the line readers need no cooperative polling.
	killDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.logger.Debug("Cancellation requested, killing process group %d", cmd.Process.Pid)
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		case <-killDone:
		}
	}()

	// Both streams must signal completion before the exit code is
	// computed (join point). Each stream preserves its own line order.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, spec.Stdout)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, spec.Stderr)
	}()
	wg.Wait()

	err = cmd.Wait()
	close(killDone)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return exitCodeOf(err), ctxErr
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return exitCodeOf(err), nil
		}
		return -1, fmt.Errorf("command failed: %w", err)
	}
	return 0, nil
}

// scanLines forwards each line from r to the sink
func scanLines(r io.Reader, sink LineSink) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if sink != nil {
			sink(scanner.Text())
		}
	}
}

// exitCodeOf extracts the exit code from cmd.Wait's error
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
