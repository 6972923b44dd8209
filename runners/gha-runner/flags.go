package runner

import (
	"time"

	"github.com/tinyci/gha-entrypoint/fw/config"
	"github.com/urfave/cli"
)

// Flags are the command line flags the runner reads in Init. Every flag has
// an environment fallback so the image can be configured without a command
// line.
var Flags = []cli.Flag{
	cli.StringFlag{
		Name:   "runner-dir",
		Value:  "/actions-runner",
		Usage:  "Directory the actions runner is unpacked in",
		EnvVar: "RUNNER_DIR",
	},
	cli.StringFlag{
		Name:   "config-script",
		Value:  "config.sh",
		Usage:  "Runner configuration script; relative to --runner-dir unless absolute",
		EnvVar: "RUNNER_CONFIG_SCRIPT",
	},
	cli.StringFlag{
		Name:   "run-script",
		Value:  "run.sh",
		Usage:  "Runner launch script; relative to --runner-dir unless absolute",
		EnvVar: "RUNNER_RUN_SCRIPT",
	},
	cli.StringFlag{
		Name:   "shell",
		Value:  "/bin/bash",
		Usage:  "Shell the launch script is exec'd with",
		EnvVar: "RUNNER_SHELL",
	},
	cli.StringFlag{
		Name:   "api-url",
		Value:  "https://api.github.com",
		Usage:  "GitHub REST API endpoint",
		EnvVar: "GITHUB_API_URL",
	},
	cli.StringFlag{
		Name:   "server-url",
		Value:  "https://github.com",
		Usage:  "GitHub web endpoint the runner registers against",
		EnvVar: "GITHUB_SERVER_URL",
	},
	cli.StringFlag{
		Name:   "api-version",
		Value:  "2022-11-28",
		Usage:  "Value of the X-GitHub-Api-Version header",
		EnvVar: "GITHUB_API_VERSION",
	},
	cli.DurationFlag{
		Name:   "http-timeout",
		Value:  30 * time.Second,
		Usage:  "Timeout for the registration token request",
		EnvVar: "RUNNER_HTTP_TIMEOUT",
	},
	cli.StringFlag{
		Name:   "docker-service",
		Value:  "docker",
		Usage:  "Service started with the service manager before registering",
		EnvVar: "RUNNER_DOCKER_SERVICE",
	},
	cli.DurationFlag{
		Name:   "docker-wait",
		Value:  60 * time.Second,
		Usage:  "How long to wait for the docker daemon to answer; 0 disables the wait",
		EnvVar: "RUNNER_DOCKER_WAIT",
	},
	cli.BoolFlag{
		Name:   "no-tty",
		Usage:  "Do not run child commands under a pseudo-terminal",
		EnvVar: "RUNNER_NO_TTY",
	},
}

func runnerConfigFromFlags(ctx *cli.Context) *config.RunnerConfig {
	return &config.RunnerConfig{
		RunnerDir:     ctx.String("runner-dir"),
		ConfigScript:  ctx.String("config-script"),
		RunScript:     ctx.String("run-script"),
		Shell:         ctx.String("shell"),
		APIURL:        ctx.String("api-url"),
		ServerURL:     ctx.String("server-url"),
		APIVersion:    ctx.String("api-version"),
		HTTPTimeout:   ctx.Duration("http-timeout"),
		DockerService: ctx.String("docker-service"),
		DockerWait:    ctx.Duration("docker-wait"),
	}
}
