package runner

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/pkg/errors"
	"github.com/tinyci/gha-entrypoint/fw"
	"github.com/tinyci/gha-entrypoint/fw/command"
	"github.com/tinyci/gha-entrypoint/fw/config"
	fwcontext "github.com/tinyci/gha-entrypoint/fw/context"
	"github.com/tinyci/gha-entrypoint/fw/github"
	"github.com/tinyci/gha-entrypoint/fw/handoff"
)

type fakeCommands struct {
	ran  []command.Command
	fail map[string]error
}

func (f *fakeCommands) Run(ctx context.Context, c command.Command) error {
	f.ran = append(f.ran, c)
	return f.fail[c.Path]
}

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) RegistrationToken(ctx context.Context, owner, repo string) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakePinger struct{ calls int }

func (f *fakePinger) Ping(context.Context) (types.Ping, error) {
	f.calls++
	return types.Ping{APIVersion: "1.47"}, nil
}

type execCall struct {
	argv0 string
	argv  []string
	env   []string
}

func capture(calls *[]execCall, err error) *handoff.Handoff {
	return &handoff.Handoff{Exec: func(argv0 string, argv []string, envv []string) error {
		*calls = append(*calls, execCall{argv0, argv, envv})
		return err
	}}
}

func testEnv() map[string]string {
	return map[string]string{
		config.EnvAuthToken:    "ghp_secret",
		config.EnvRunnerName:   "ci",
		config.EnvHostname:     "host1",
		config.EnvOrganization: "octocat",
		config.EnvRepository:   "hello-world",
		config.EnvLabels:       "linux,x64",
	}
}

func newTestRunner(env map[string]string, cmds *fakeCommands, h *handoff.Handoff) *Runner {
	return &Runner{
		Commands: cmds,
		Handoff:  h,
		Out:      &bytes.Buffer{},
		Getenv:   func(k string) string { return env[k] },
		Environ:  func() []string { return []string{"PATH=/usr/bin:/bin"} },
		Hostname: func() (string, error) { return "buildbox", nil },
	}
}

func TestEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/hello-world/actions/runners/registration-token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"tok"}`))
	}))
	defer srv.Close()

	cmds := &fakeCommands{}
	var execs []execCall
	pinger := &fakePinger{}

	r := newTestRunner(testEnv(), cmds, capture(&execs, nil))
	r.Docker = pinger

	e := &fw.Entrypoint{Flags: Flags, Launch: r}
	err := e.App().Run([]string{"gha-entrypoint", "--api-url", srv.URL, "--docker-wait", "1s", "--no-tty"})
	if errors.Cause(err) != ErrHandoffReturned {
		t.Fatalf("Run() error = %v, want ErrHandoffReturned", err)
	}

	if len(cmds.ran) != 2 {
		t.Fatalf("ran %d commands, want 2: %v", len(cmds.ran), cmds.ran)
	}

	if got := cmds.ran[0].String(); got != "service docker start" {
		t.Errorf("service command = %q", got)
	}
	if !cmds.ran[0].NoTTY {
		t.Error("service command must not run under a pty")
	}

	if pinger.calls == 0 {
		t.Error("docker daemon was never pinged")
	}

	cfg := cmds.ran[1]
	if cfg.Path != "/actions-runner/config.sh" {
		t.Errorf("config script = %q", cfg.Path)
	}
	if cfg.Dir != "/actions-runner" {
		t.Errorf("config dir = %q", cfg.Dir)
	}
	if cfg.NoTTY {
		t.Error("config script should keep the pty")
	}

	args := strings.Join(cfg.Args, " ")
	if !strings.Contains(args, "--token tok --name host1-ci --labels linux,x64 --unattended --replace") {
		t.Errorf("config args = %q", args)
	}
	if !strings.HasPrefix(args, "--url https://github.com/octocat/hello-world ") {
		t.Errorf("config args = %q", args)
	}
	if !strings.Contains(cfg.String(), "--token *** --name") {
		t.Errorf("token not masked in %q", cfg.String())
	}
	if !contains(cfg.Env, "RUNNER_ALLOW_RUNASROOT=1") {
		t.Errorf("config env = %v", cfg.Env)
	}

	if len(execs) != 1 {
		t.Fatalf("exec called %d times", len(execs))
	}
	if execs[0].argv0 != "/bin/bash" || strings.Join(execs[0].argv, " ") != "/bin/bash /actions-runner/run.sh" {
		t.Errorf("exec = %q %q", execs[0].argv0, execs[0].argv)
	}
	if !contains(execs[0].env, "RUNNER_ALLOW_RUNASROOT=1") {
		t.Errorf("exec env = %v", execs[0].env)
	}

	if r.State() != Failed {
		t.Errorf("State() = %v after a returning handoff", r.State())
	}
}

func TestMissingVariablesStopEverything(t *testing.T) {
	env := testEnv()
	delete(env, config.EnvAuthToken)
	delete(env, config.EnvLabels)

	cmds := &fakeCommands{}
	tokens := &fakeTokens{token: "tok"}
	var execs []execCall

	r := newTestRunner(env, cmds, capture(&execs, nil))
	r.Tokens = tokens

	e := &fw.Entrypoint{Flags: Flags, Launch: r}
	err := e.App().Run([]string{"gha-entrypoint"})

	ce, ok := errors.Cause(err).(*config.ConfigurationError)
	if !ok {
		t.Fatalf("error = %v (%T), want *config.ConfigurationError", err, err)
	}
	if ce.Error() != "variables GITHUB_RUNNER_TOKEN, RUNNER_LABELS must be set" {
		t.Errorf("Error() = %q", ce.Error())
	}

	if tokens.calls != 0 || len(cmds.ran) != 0 || len(execs) != 0 {
		t.Errorf("actions taken before validation passed: tokens=%d cmds=%d execs=%d", tokens.calls, len(cmds.ran), len(execs))
	}
	if r.State() != Failed {
		t.Errorf("State() = %v", r.State())
	}
}

func TestTokenHTTPErrorStopsPipeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	cmds := &fakeCommands{}
	var execs []execCall

	r := newTestRunner(testEnv(), cmds, capture(&execs, nil))
	r.RunnerConfig = &config.RunnerConfig{APIURL: srv.URL}

	if err := r.Init(&fwcontext.Context{}); err != nil {
		t.Fatal(err)
	}

	err := r.Run(&fwcontext.Context{})
	he, ok := errors.Cause(err).(*github.HTTPError)
	if !ok {
		t.Fatalf("error = %v (%T), want *github.HTTPError", err, err)
	}
	if he.StatusCode != http.StatusNotFound || he.Body != `{"message":"Not Found"}` {
		t.Errorf("HTTPError = %+v", he)
	}

	if len(cmds.ran) != 0 || len(execs) != 0 {
		t.Errorf("pipeline continued after token failure: cmds=%d execs=%d", len(cmds.ran), len(execs))
	}
}

func TestCommandFailuresStopPipeline(t *testing.T) {
	tests := []struct {
		name    string
		failing string
		wantRan int
	}{
		{name: "service start", failing: "service", wantRan: 1},
		{name: "configure", failing: "/actions-runner/config.sh", wantRan: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitErr := &command.ExitError{Command: tt.failing, ExitCode: 1}
			cmds := &fakeCommands{fail: map[string]error{tt.failing: exitErr}}
			var execs []execCall

			r := newTestRunner(testEnv(), cmds, capture(&execs, nil))
			r.Tokens = &fakeTokens{token: "tok"}

			if err := r.Init(nil); err != nil {
				t.Fatal(err)
			}

			err := r.Run(nil)
			if errors.Cause(err) != exitErr {
				t.Fatalf("error = %v, want the exit error", err)
			}
			if len(cmds.ran) != tt.wantRan {
				t.Errorf("ran %d commands, want %d", len(cmds.ran), tt.wantRan)
			}
			if len(execs) != 0 {
				t.Error("handoff attempted after a failed command")
			}
			if r.State() != Failed {
				t.Errorf("State() = %v", r.State())
			}
		})
	}
}

func TestHandoffFailure(t *testing.T) {
	execErr := errors.New("no such file or directory")
	var execs []execCall

	r := newTestRunner(testEnv(), &fakeCommands{}, capture(&execs, execErr))
	r.Tokens = &fakeTokens{token: "tok"}

	if err := r.Init(nil); err != nil {
		t.Fatal(err)
	}

	err := r.Run(nil)
	if errors.Cause(err) != execErr {
		t.Fatalf("error = %v, want the exec error", err)
	}
	if len(execs) != 1 {
		t.Errorf("exec called %d times", len(execs))
	}
	if r.State() != Failed {
		t.Errorf("State() = %v after a failed exec", r.State())
	}
}

func TestHostnameDefaultsToMachine(t *testing.T) {
	env := testEnv()
	delete(env, config.EnvHostname)

	r := newTestRunner(env, &fakeCommands{}, &handoff.Handoff{})
	r.Tokens = &fakeTokens{}

	if err := r.Init(nil); err != nil {
		t.Fatal(err)
	}

	if got := r.Config.RunnerName(); got != "buildbox-ci" {
		t.Errorf("RunnerName() = %q, want %q", got, "buildbox-ci")
	}
}

func TestConfigureCommandEphemeral(t *testing.T) {
	env := testEnv()
	env[config.EnvEphemeral] = "true"

	r := newTestRunner(env, &fakeCommands{}, &handoff.Handoff{})
	r.Tokens = &fakeTokens{}
	r.RunnerConfig = &config.RunnerConfig{RunnerDir: "/opt/runner", ServerURL: "https://ghe.example.com"}

	if err := r.Init(nil); err != nil {
		t.Fatal(err)
	}

	c := r.ConfigureCommand("AAAA")
	want := "/opt/runner/config.sh --url https://ghe.example.com/octocat/hello-world --token *** --name host1-ci --labels linux,x64 --unattended --replace --ephemeral"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
