package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultRunnerDir     = "/actions-runner"
	defaultConfigScript  = "config.sh"
	defaultRunScript     = "run.sh"
	defaultShell         = "/bin/bash"
	defaultAPIURL        = "https://api.github.com"
	defaultServerURL     = "https://github.com"
	defaultAPIVersion    = "2022-11-28"
	defaultDockerService = "docker"
	defaultHTTPTimeout   = 30 * time.Second
)

// RunnerConfig manages various one-off tidbits about the runner image's
// paths and the endpoints it talks to.
type RunnerConfig struct {
	RunnerDir    string
	ConfigScript string
	RunScript    string
	Shell        string

	APIURL      string
	ServerURL   string
	APIVersion  string
	HTTPTimeout time.Duration

	DockerService string
	// DockerWait bounds the wait for the docker daemon to answer; zero
	// skips the wait.
	DockerWait time.Duration
}

// Validate corrects or errors out when the configuration doesn't match
// expectations. Relative script names are resolved inside RunnerDir.
func (rc *RunnerConfig) Validate() error {
	if rc.RunnerDir == "" {
		rc.RunnerDir = defaultRunnerDir
	}

	if rc.ConfigScript == "" {
		rc.ConfigScript = defaultConfigScript
	}

	if !filepath.IsAbs(rc.ConfigScript) {
		rc.ConfigScript = filepath.Join(rc.RunnerDir, rc.ConfigScript)
	}

	if rc.RunScript == "" {
		rc.RunScript = defaultRunScript
	}

	if !filepath.IsAbs(rc.RunScript) {
		rc.RunScript = filepath.Join(rc.RunnerDir, rc.RunScript)
	}

	if rc.Shell == "" {
		rc.Shell = defaultShell
	}

	for name, p := range map[string]string{
		"runner_dir":    rc.RunnerDir,
		"config_script": rc.ConfigScript,
		"run_script":    rc.RunScript,
		"shell":         rc.Shell,
	} {
		if !filepath.IsAbs(p) {
			return errors.Errorf("%s must be absolute", name)
		}
		if strings.Contains(p, "..") {
			return errors.Errorf("%s %q contains invalid paths: '..'", name, p)
		}
	}

	if rc.APIURL == "" {
		rc.APIURL = defaultAPIURL
	}

	if rc.ServerURL == "" {
		rc.ServerURL = defaultServerURL
	}

	for name, u := range map[string]string{"api_url": rc.APIURL, "server_url": rc.ServerURL} {
		parsed, err := url.Parse(u)
		if err != nil {
			return errors.Wrapf(err, "%s is not a valid url", name)
		}
		if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return errors.Errorf("%s %q must be an http(s) url", name, u)
		}
	}

	if rc.APIVersion == "" {
		rc.APIVersion = defaultAPIVersion
	}

	if rc.HTTPTimeout < 0 {
		return errors.New("http_timeout must not be negative")
	}

	if rc.HTTPTimeout == 0 {
		rc.HTTPTimeout = defaultHTTPTimeout
	}

	if rc.DockerService == "" {
		rc.DockerService = defaultDockerService
	}

	if rc.DockerWait < 0 {
		return errors.New("docker_wait must not be negative")
	}

	return nil
}
