package runner

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tinyci/gha-entrypoint/fw/command"
	"github.com/tinyci/gha-entrypoint/fw/config"
	fwcontext "github.com/tinyci/gha-entrypoint/fw/context"
	"github.com/tinyci/gha-entrypoint/fw/docker"
	"github.com/tinyci/gha-entrypoint/fw/github"
	"github.com/tinyci/gha-entrypoint/fw/handoff"
)

// ErrHandoffReturned is returned if the exec into the runner came back
// without an error, which only a substituted exec function can do.
var ErrHandoffReturned = errors.New("handoff to the runner returned")

// TokenRequester obtains runner registration tokens.
type TokenRequester interface {
	RegistrationToken(ctx context.Context, owner, repo string) (string, error)
}

// Runner bootstraps a GitHub Actions runner: it requests a registration
// token, starts docker, registers the runner and execs into it.
//
// Unset collaborators are constructed in Init from the configuration.
type Runner struct {
	Config       *config.Config
	RunnerConfig *config.RunnerConfig

	Tokens   TokenRequester
	Commands command.Runner
	Docker   docker.Pinger
	Handoff  *handoff.Handoff

	// Out receives the progress banners; defaults to stdout.
	Out io.Writer
	// Getenv, Environ and Hostname default to their os package equivalents.
	Getenv   func(string) string
	Environ  func() []string
	Hostname func() (string, error)

	log   *logrus.Entry
	state State
}

// State is the phase the runner is in.
func (r *Runner) State() State {
	return r.state
}

// Logger returns the runner's log entry. Must be called after Init.
func (r *Runner) Logger() *logrus.Entry {
	if r.log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return r.log
}

// Init is the bootstrap of the runner. It validates the environment before
// anything else happens.
func (r *Runner) Init(ctx *fwcontext.Context) error {
	r.state = Validating

	if r.Getenv == nil {
		r.Getenv = os.Getenv
	}
	if r.Environ == nil {
		r.Environ = os.Environ
	}
	if r.Hostname == nil {
		r.Hostname = os.Hostname
	}
	if r.Out == nil {
		r.Out = os.Stdout
	}

	c, err := config.Load(r.Getenv)
	if err != nil {
		r.state = Failed
		return err
	}
	r.Config = c

	if r.Config.Hostname == "" {
		hostname, err := r.Hostname()
		if err != nil {
			r.state = Failed
			return errors.Wrap(err, "could not retrieve hostname")
		}
		r.Config.Hostname = hostname
	}

	if ctx != nil && ctx.CLIContext != nil {
		r.RunnerConfig = runnerConfigFromFlags(ctx.CLIContext)
	}
	if r.RunnerConfig == nil {
		r.RunnerConfig = &config.RunnerConfig{}
	}

	if err := r.RunnerConfig.Validate(); err != nil {
		r.state = Failed
		return errors.Wrap(err, "invalid runner configuration")
	}

	r.log = logrus.WithFields(logrus.Fields{
		"repository": r.Config.RepoNWO(),
		"runner":     r.Config.RunnerName(),
	})

	return r.initClients(ctx)
}

func (r *Runner) initClients(ctx *fwcontext.Context) error {
	rc := r.RunnerConfig

	if r.Tokens == nil {
		client, err := github.NewClient(rc.APIURL, r.Config.AuthToken, rc.APIVersion, rc.HTTPTimeout, nil)
		if err != nil {
			r.state = Failed
			return err
		}
		r.Tokens = client
	}

	if r.Commands == nil {
		noTTY := ctx != nil && ctx.CLIContext != nil && ctx.CLIContext.Bool("no-tty")
		r.Commands = &command.PTYRunner{Log: r.Out, NoTTY: noTTY}
	}

	if r.Docker == nil && rc.DockerWait > 0 {
		client, err := docker.NewClient()
		if err != nil {
			r.state = Failed
			return err
		}
		r.Docker = client
	}

	if r.Handoff == nil {
		r.Handoff = &handoff.Handoff{}
	}

	return nil
}

func (r *Runner) transition(to State) error {
	if err := r.state.Next(to); err != nil {
		return err
	}

	r.Logger().WithField("state", to).Debugf("Entering state %v", to)
	r.state = to
	return nil
}

// Run runs the bootstrap to completion. On success the process has been
// replaced and Run never returns; every return is an error.
func (r *Runner) Run(ctx *fwcontext.Context) error {
	if err := r.run(ctx); err != nil {
		r.fail()
		return err
	}

	r.fail()
	return ErrHandoffReturned
}

func (r *Runner) fail() {
	if err := r.transition(Failed); err != nil {
		r.Logger().Debug(err)
	}
}

func (r *Runner) run(fwctx *fwcontext.Context) error {
	ctx := context.Background()
	if fwctx != nil && fwctx.Ctx != nil {
		ctx = fwctx.Ctx
	}

	if err := r.transition(RequestingToken); err != nil {
		return err
	}

	token, err := r.Tokens.RegistrationToken(ctx, r.Config.Organization, r.Config.Repository)
	if err != nil {
		return errors.Wrap(err, "could not create a registration token")
	}
	r.Logger().Info("Obtained registration token")

	if err := r.transition(StartingService); err != nil {
		return err
	}

	if err := r.startService(ctx); err != nil {
		return err
	}

	if err := r.transition(ConfiguringRunner); err != nil {
		return err
	}

	if err := r.configure(ctx, token); err != nil {
		return err
	}

	if err := r.transition(Handoff); err != nil {
		return err
	}

	if fwctx != nil && fwctx.Signals != nil {
		fwctx.Signals.Stop()
	}

	r.banner("Starting the runner...")
	rc := r.RunnerConfig
	return r.Handoff.Into(rc.Shell, []string{rc.Shell, rc.RunScript}, r.Config.Env(r.Environ()))
}

func (r *Runner) startService(ctx context.Context) error {
	rc := r.RunnerConfig

	r.banner("Starting docker...")
	svc := command.Command{
		Path:  "service",
		Args:  []string{rc.DockerService, "start"},
		Env:   r.Environ(),
		NoTTY: true,
	}

	if err := r.Commands.Run(ctx, svc); err != nil {
		r.Logger().Errorf("could not start %s: %v", rc.DockerService, err)
		return errors.Wrapf(err, "starting %s", rc.DockerService)
	}

	if rc.DockerWait == 0 || r.Docker == nil {
		return nil
	}

	if err := docker.WaitReady(ctx, r.Docker, docker.DefaultInterval, rc.DockerWait, r.Logger()); err != nil {
		r.Logger().Errorf("docker daemon is not answering: %v", err)
		return err
	}

	return nil
}

// ConfigureCommand is the invocation of the runner's configuration script.
func (r *Runner) ConfigureCommand(token string) command.Command {
	rc := r.RunnerConfig

	args := []string{
		"--url", r.Config.RepositoryURL(rc.ServerURL),
		"--token", token,
		"--name", r.Config.RunnerName(),
		"--labels", r.Config.Labels,
		"--unattended",
		"--replace",
	}
	if r.Config.Ephemeral {
		args = append(args, "--ephemeral")
	}

	return command.Command{
		Path:    rc.ConfigScript,
		Args:    args,
		Env:     r.Config.Env(r.Environ()),
		Dir:     rc.RunnerDir,
		Secrets: []string{token},
	}
}

func (r *Runner) configure(ctx context.Context, token string) error {
	r.banner("Configuring the runner...")

	cmd := r.ConfigureCommand(token)
	r.Logger().Debugf("Running %v", cmd)

	if err := r.Commands.Run(ctx, cmd); err != nil {
		r.Logger().Errorf("runner configuration failed: %v", err)
		return errors.Wrap(err, "configuring the runner")
	}

	return nil
}

func (r *Runner) banner(msg string) {
	color.New(color.FgHiMagenta, color.Bold).Fprintln(r.Out, msg)
}
