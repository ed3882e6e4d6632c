package cmdrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the
// process group was killed.
const waitDelay = 2 * time.Second

// Exec runs inv to completion with combined stdout/stderr captured. Launch
// failures, timeouts and cancellation are errors; a non-zero exit is not.
func (r *CommandsRunner) Exec(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Name == "" {
		return nil, fmt.Errorf("command is required")
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	out := &limitedBuffer{max: r.outputLimit}
	c := exec.CommandContext(runCtx, inv.Name, inv.Args...)
	c.Dir = inv.Dir
	c.Stdout = out
	c.Stderr = out
	c.WaitDelay = waitDelay
	configureProcessGroup(c)

	start := time.Now()
	err := c.Run()
	res := &Result{
		ExitCode:  -1,
		Output:    out.Bytes(),
		Truncated: out.truncated,
		Duration:  time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warnf("command timed out after %v: %s %v", inv.Timeout, inv.Name, inv.Args)
		return res, fmt.Errorf("%w after %v", ErrTimeout, inv.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Debugf("command exited with %d: %s %v", res.ExitCode, inv.Name, inv.Args)
			return res, nil
		}
		r.logger.Errorf("command failed: %s %v: %v", inv.Name, inv.Args, err)
		return res, fmt.Errorf("command error: %w", err)
	}
	return res, nil
}

// Probe reports whether cmd can be launched and exits 0 within timeout.
// It never returns an error; every failure means "not available".
func (r *CommandsRunner) Probe(ctx context.Context, timeout time.Duration, cmd string, args ...string) bool {
	res, err := r.Exec(ctx, Invocation{Name: cmd, Args: args, Timeout: timeout})
	if err != nil {
		r.logger.Debugf("probe %s failed: %v", cmd, err)
		return false
	}
	return res.ExitCode == 0
}

// limitedBuffer keeps the first max bytes written to it and drops the rest.
// exec.Cmd writes to it from a single goroutine when Stdout == Stderr.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.max <= 0 {
		return b.buf.Write(p)
	}
	remaining := b.max - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}
