// Package config presents the runner bootstrap configuration.
//
// The identity of the runner (who it registers as, and where) is read
// exclusively from the environment with Load. Paths and endpoints that
// describe the runner image are carried in RunnerConfig, which is usually
// populated from command line flags and then validated:
//
//		c, err := config.Load(os.Getenv)
//		if err != nil {
//			return err
//		}
//
//		rc := &config.RunnerConfig{RunnerDir: "/actions-runner"}
//		if err := rc.Validate(); err != nil {
//			return err
//		}
//
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Environment variables read by Load.
const (
	EnvAuthToken    = "GITHUB_RUNNER_TOKEN"
	EnvRunnerName   = "RUNNER_NAME"
	EnvHostname     = "RUNNER_HOSTNAME"
	EnvOrganization = "ORGANIZATION_NAME"
	EnvRepository   = "REPOSITORY_NAME"
	EnvLabels       = "RUNNER_LABELS"
	EnvEphemeral    = "RUNNER_EPHEMERAL"

	// EnvAllowRunAsRoot permits the actions runner to run as uid 0.
	EnvAllowRunAsRoot = "RUNNER_ALLOW_RUNASROOT"
)

// ConfigurationError reports every required variable that was unset.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("variables %s must be set", strings.Join(e.Missing, ", "))
}

// Config is the identity the runner registers with. It is immutable after
// Load returns.
type Config struct {
	AuthToken    string
	Name         string
	Hostname     string
	Organization string
	Repository   string
	Labels       string
	Ephemeral    bool
}

// Load builds the configuration from getenv, which is normally os.Getenv.
// All missing variables are reported together, in the order they are
// checked.
func Load(getenv func(string) string) (*Config, error) {
	c := &Config{
		AuthToken:    getenv(EnvAuthToken),
		Name:         getenv(EnvRunnerName),
		Hostname:     getenv(EnvHostname),
		Organization: getenv(EnvOrganization),
		Repository:   getenv(EnvRepository),
		Labels:       getenv(EnvLabels),
	}

	required := []struct {
		name  string
		value string
	}{
		{EnvAuthToken, c.AuthToken},
		{EnvRunnerName, c.Name},
		{EnvOrganization, c.Organization},
		{EnvRepository, c.Repository},
		{EnvLabels, c.Labels},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}

	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	if eph := getenv(EnvEphemeral); eph != "" {
		b, err := strconv.ParseBool(eph)
		if err != nil {
			return nil, errors.Errorf("%s: %q is not a boolean", EnvEphemeral, eph)
		}
		c.Ephemeral = b
	}

	return c, nil
}

// RunnerName is the name the runner is registered under: <hostname>-<name>.
func (c *Config) RunnerName() string {
	return fmt.Sprintf("%s-%s", c.Hostname, c.Name)
}

// RepoNWO is the owner/repo pair.
func (c *Config) RepoNWO() string {
	return fmt.Sprintf("%s/%s", c.Organization, c.Repository)
}

// RepositoryURL is the web URL of the repository on serverURL.
func (c *Config) RepositoryURL(serverURL string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(serverURL, "/"), c.RepoNWO())
}

// Env returns base with the overrides the actions runner needs appended.
func (c *Config) Env(base []string) []string {
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, EnvAllowRunAsRoot+"=") {
			env = append(env, kv)
		}
	}
	return append(env, EnvAllowRunAsRoot+"=1")
}
