package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// stopGracePeriod is how long a background process gets to exit after an
// interrupt before it is killed.
const stopGracePeriod = 5 * time.Second

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}

// Process is a command running in the background.
type Process interface {
	Stop() error
}

// CommandRunner abstracts execution of the device tool.
type CommandRunner interface {
	// Run executes the command to completion. A non-zero exit is reported
	// as an *ExitError. Cancellation and death by signal are not.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches the command in the background.
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecRunner executes commands on the local host. Output is captured and,
// when Stdout or Stderr are set, also copied to them as it arrives.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements CommandRunner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, r.Stdout)
	cmd.Stderr = tee(&stderr, r.Stderr)
	interruptOnCancel(cmd)

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.Bytes(), fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 when the process was killed by a signal.
		if exitErr.ExitCode() < 0 {
			return stdout.Bytes(), fmt.Errorf("%s terminated: %w", name, err)
		}
		return stdout.Bytes(), &ExitError{Code: exitErr.ExitCode(), Stderr: string(bytes.TrimSpace(stderr.Bytes()))}
	}
	return stdout.Bytes(), err
}

// Start implements CommandRunner.
func (r ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	interruptOnCancel(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Str("cmd", name).Msg("background process exited")
		}
		close(p.done)
	}()
	return p, nil
}

// interruptOnCancel makes context cancellation send an interrupt, so the
// tool can clean up, and kill the process if it is still around after the
// grace period.
func interruptOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = stopGracePeriod
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

type execProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	once    sync.Once
	stopErr error
}

// Stop interrupts the process and kills it if it does not exit in time.
func (p *execProcess) Stop() error {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
			p.stopErr = p.cmd.Process.Kill()
			<-p.done
			return
		}

		select {
		case <-p.done:
		case <-time.After(stopGracePeriod):
			p.stopErr = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return p.stopErr
}
