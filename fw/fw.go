// Package fw is composed of a framework for bootstrapping CI runner
// containers.
//
// Inside this directory as subdirectories are several packages that cover
// configuration, the GitHub API, external commands, the docker daemon,
// signals and the final process handoff.
//
// To implement a bootstrap, a struct must satisfy the Runner interface.
// Then, an Entrypoint must be created with metadata about the program and
// the runner struct itself. Then, Run(Entrypoint) needs to be called. The
// rest of the system will automate the process of:
//
//		* Parsing flags and their environment fallbacks
//		* Configuring the log level
//		* Managing signals and cancellations until the handoff
//
package fw

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	fwcontext "github.com/tinyci/gha-entrypoint/fw/context"
	"github.com/tinyci/gha-entrypoint/fw/signal"
	"github.com/urfave/cli"
)

// Runner is the interface that a runner must implement to leverage this
// framework.
type Runner interface {
	// Init is the entrypoint of the runner application and will be run shortly
	// after command line arguments are processed. Configuration is validated
	// here, before anything touches the network or spawns a process.
	Init(*fwcontext.Context) error
	// Run performs the bootstrap. A successful run replaces the process and
	// never returns, so any return is a failure.
	Run(*fwcontext.Context) error
	// Logger is the runner's log entry; valid after Init.
	Logger() *logrus.Entry
}

// Entrypoint is composed of boot-time entities used to start up the
// application, such as the argument parser and Runner object to enter.
type Entrypoint struct {
	// Usage is the way to use the runner application.
	Usage string
	// Description is an extended description of what the runner does and how it works.
	Description string
	// Version is the version of the runner program.
	Version string
	// Flags are any extra flags you want to handle. We use urfave/cli for managing flags.
	Flags []cli.Flag
	// Launch is the Runner intended to be executed.
	Launch Runner
}

// App builds the cli application for the Entrypoint.
func (e *Entrypoint) App() *cli.App {
	app := cli.NewApp()
	app.Usage = e.Usage
	app.Description = e.Description
	app.Version = e.Version
	app.Flags = append(e.Flags, cli.StringFlag{
		Name:   "log-level",
		Value:  "info",
		Usage:  "Log level (debug, info, warn, error)",
		EnvVar: "LOG_LEVEL",
	})

	app.Action = e.action
	return app
}

// Run runs the given Entrypoint with os.Args. On error you can assume the
// only safe option is to exit.
func Run(e *Entrypoint) error {
	return e.App().Run(os.Args)
}

func (e *Entrypoint) action(ctx *cli.Context) error {
	level, err := logrus.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logrus.SetLevel(level)

	baseContext := &fwcontext.Context{CLIContext: ctx}
	if err := e.Launch.Init(baseContext); err != nil {
		return err
	}

	log := e.Launch.Logger()
	log.Debug("Initializing runner bootstrap")

	sigCtx := signal.NewContext(context.Background(), log)
	defer sigCtx.Cancel()

	baseContext.Ctx = sigCtx
	baseContext.Signals = sigCtx

	return e.Launch.Run(baseContext)
}
