package context

import (
	"context"

	"github.com/tinyci/gha-entrypoint/fw/signal"
	"github.com/urfave/cli"
)

// Context is the set of data generated from the runner framework controller
// code, but formatted to be sent to implementing hooks of the Runner
// interface.
//
// Ctx and Signals are only populated for Run(); Init() sees the CLI context
// alone.
type Context struct {
	// CLIContext is the urfave/cli.Context for managing CLI flags and other
	// functionality.
	CLIContext *cli.Context
	// Ctx is canceled when the bootstrap is asked to terminate.
	Ctx context.Context
	// Signals is the handler backing Ctx. Stop it before handing off.
	Signals *signal.Context
}
