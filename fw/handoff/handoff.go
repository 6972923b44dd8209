// Package handoff replaces the current process with another program.
//
// Once Exec succeeds nothing after it runs: no deferred functions, no
// signal handlers, no buffered output. Anything that must be cleaned up has
// to be done before calling it.
package handoff

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ExecFunc has the signature of unix.Exec.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Handoff execs into a program, preserving the process ID.
type Handoff struct {
	// Exec defaults to unix.Exec. Tests override it to capture the call
	// instead of replacing the test binary.
	Exec ExecFunc
}

// Into execs argv0 with argv and env. It only returns on failure.
func (h *Handoff) Into(argv0 string, argv []string, env []string) error {
	execFunc := h.Exec
	if execFunc == nil {
		execFunc = unix.Exec
	}

	if err := execFunc(argv0, argv, env); err != nil {
		return errors.Wrapf(err, "exec %s", argv0)
	}

	return nil
}
