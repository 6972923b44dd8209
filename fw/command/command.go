// Package command runs the external tools a runner image ships with and
// reports their exit status.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

// flushTimeout bounds how long output is drained after the child exits.
// Daemons started by the child may hold the tty open indefinitely.
const flushTimeout = 250 * time.Millisecond

// Command is a single invocation of an external program.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
	// Arguments equal to one of Secrets are masked in String(); they are
	// still passed to the program.
	Secrets []string
	// NoTTY runs the command on plain pipes even under a PTYRunner.
	// Service managers need it: children they background would receive
	// SIGHUP when the pty session leader exits.
	NoTTY bool
}

func (c Command) String() string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Path)

	for _, arg := range c.Args {
		for _, secret := range c.Secrets {
			if secret != "" && arg == secret {
				arg = "***"
				break
			}
		}
		argv = append(argv, arg)
	}

	return strings.Join(argv, " ")
}

// ExitError is returned when the program ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

// Runner runs a command to completion.
type Runner interface {
	Run(context.Context, Command) error
}

// PTYRunner runs commands with their output piped to Log. Output goes
// through a pseudo-terminal unless NoTTY is set, so tools that colorize or
// prompt behave as they would interactively.
type PTYRunner struct {
	Log   io.Writer
	NoTTY bool
}

// Run runs a command, piping output to the log.
func (r *PTYRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...) // #nosec
	cmd.Env = c.Env
	cmd.Dir = c.Dir

	log := r.Log
	if log == nil {
		log = os.Stdout
	}

	if r.NoTTY || c.NoTTY {
		cmd.Stdout = log
		cmd.Stderr = log
		// daemons left holding the output pipes must not block Wait
		cmd.WaitDelay = flushTimeout
		return exitStatus(c, cmd.Run())
	}

	tty, err := pty.Start(cmd)
	if err != nil {
		return errors.Wrapf(err, "starting %s", c)
	}
	defer tty.Close()

	done := make(chan struct{})
	go func() {
		io.Copy(log, tty)
		close(done)
	}()

	err = cmd.Wait()

	select {
	case <-done:
	case <-time.After(flushTimeout):
	}

	return exitStatus(c, err)
}

func exitStatus(c Command, err error) error {
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() >= 0 {
		return &ExitError{Command: c.String(), ExitCode: ee.ExitCode()}
	}

	return errors.Wrapf(err, "running %s", c)
}
