package main

import (
	"github.com/tinyci/gha-entrypoint/fw"
	"github.com/tinyci/gha-entrypoint/fw/utils"
	runner "github.com/tinyci/gha-entrypoint/runners/gha-runner"
)

var version = "dev"

func main() {
	err := fw.Run(&fw.Entrypoint{
		Usage: "Register a self-hosted GitHub Actions runner and hand off to it",
		Description: `
This is the entrypoint of a self-hosted runner container. It requests a
registration token for ORGANIZATION_NAME/REPOSITORY_NAME using
GITHUB_RUNNER_TOKEN, starts docker, registers the runner as
RUNNER_HOSTNAME-RUNNER_NAME with RUNNER_LABELS and then execs into the
runner's run script.
`,
		Version: version,
		Flags:   runner.Flags,
		Launch:  &runner.Runner{},
	})
	if err != nil {
		utils.ErrOut(err)
	}
}
