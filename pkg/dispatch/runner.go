package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/charmbracelet/log"
)

// Status classifies how a child process ended.
type Status int

const (
	Succeeded   Status = iota
	Failed             // non-zero exit
	NotFound           // executable not on PATH
	Interrupted        // user pressed Ctrl+C, or the child died from a signal
	StartFailed        // any other error starting or waiting for the child
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case NotFound:
		return "not found"
	case Interrupted:
		return "interrupted"
	case StartFailed:
		return "start failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of running a Command.
type Outcome struct {
	Command  Command
	Status   Status
	ExitCode int
	Err      error
}

// Report returns the message shown to the user. label names the operation,
// e.g. "Calibration".
func (o Outcome) Report(label string) string {
	switch o.Status {
	case Succeeded:
		return fmt.Sprintf("%s process finished.", label)
	case Failed:
		return fmt.Sprintf("%s ended/failed with exit code %d", label, o.ExitCode)
	case NotFound:
		return fmt.Sprintf("Error: '%s' command not found in PATH.", o.Command.Name)
	case Interrupted:
		return fmt.Sprintf("%s stopped.", label)
	default:
		return fmt.Sprintf("Error: could not run '%s': %v", o.Command.Name, o.Err)
	}
}

// Runner runs a command in the foreground.
type Runner interface {
	Run(ctx context.Context, cmd Command) Outcome
}

// ExecRunner runs commands as child processes sharing the terminal, so the
// toolkit can prompt the user itself.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// NewExecRunner returns a runner attached to the process's standard streams.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

// Run starts the command and waits for it. While the child runs, interrupts
// delivered to this process are captured instead of terminating it; the
// terminal sends them to the child as well, so the child is left to stop on
// its own. Cancelling ctx while the child runs counts as an interrupt but does
// not kill it.
func (r *ExecRunner) Run(ctx context.Context, c Command) Outcome {
	if r.Logger != nil {
		r.Logger.Debug("running command", "cmd", c.String())
	}
	if ctx.Err() != nil {
		return Outcome{Command: c, Status: Interrupted, Err: ctx.Err()}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	cmd := exec.Command(c.Name, c.Args...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()

	interrupted := false
	select {
	case <-sigCh:
		interrupted = true
	default:
	}

	return classify(c, err, interrupted || ctx.Err() != nil)
}

func classify(c Command, err error, interrupted bool) Outcome {
	out := Outcome{Command: c, Err: err}

	if errors.Is(err, exec.ErrNotFound) {
		out.Status = NotFound
		return out
	}
	if interrupted {
		out.Status = Interrupted
		return out
	}
	if err == nil {
		out.Status = Succeeded
		return out
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		if out.ExitCode < 0 {
			// Killed by a signal.
			out.Status = Interrupted
			return out
		}
		out.Status = Failed
		return out
	}

	out.Status = StartFailed
	return out
}
