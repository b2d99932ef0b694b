package toolexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes binary and forwards every stdout/stderr line to onOutput.
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
	// Output executes binary and returns its trimmed stdout.
	Output(ctx context.Context, binary string, args []string) (string, error)
}

// CommandExecutor runs binaries with os/exec.
type CommandExecutor struct {
	// Env entries are appended to the inherited environment.
	Env []string
	// Dir sets the working directory; empty keeps the current one.
	Dir string
}

// ExitError reports a non-zero exit with the tail of stderr.
type ExitError struct {
	Binary   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

const stderrTailLines = 8

func (c CommandExecutor) command(ctx context.Context, binary string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.Dir = c.Dir
	return cmd
}

// Run implements Executor.
func (c CommandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := c.command(ctx, binary, args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	tail := newLineTail(stderrTailLines)

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	var mu sync.Mutex
	forward := func(line string) {
		if onOutput == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onOutput(line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, func(line string) {
		tail.add(line)
		forward(line)
	})

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return wrapExit(binary, err, tail.String())
	}
	return nil
}

// Output implements Executor.
func (c CommandExecutor) Output(ctx context.Context, binary string, args []string) (string, error) {
	cmd := c.command(ctx, binary, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", wrapExit(binary, err, lastLines(stderr.String(), stderrTailLines))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func wrapExit(binary string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Binary: binary, ExitCode: exitErr.ExitCode(), Stderr: stderr, Err: err}
	}
	return fmt.Errorf("run %s: %w", binary, err)
}

type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
