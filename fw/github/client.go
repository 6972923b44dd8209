// Package github talks to the GitHub REST API on behalf of a runner that is
// about to register itself.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ghAPI "github.com/cli/go-gh/v2/pkg/api"
	"github.com/pkg/errors"
)

const acceptHeader = "application/vnd.github+json"

// HTTPError is returned for any non-2xx response. Body is the response body
// as received.
type HTTPError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("POST %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// MalformedResponseError is returned when a successful response does not
// carry the expected field.
type MalformedResponseError struct {
	Field string
	Body  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("response is missing a %q string field", e.Field)
}

// Client is a minimal GitHub REST client authenticated with a bearer token.
type Client struct {
	http       *http.Client
	baseURL    string
	authToken  string
	apiVersion string
}

// NewClient constructs a client for apiURL. A nil transport uses the
// default transport.
func NewClient(apiURL, authToken, apiVersion string, timeout time.Duration, transport http.RoundTripper) (*Client, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing api url")
	}

	// an explicit transport keeps go-gh from consulting the gh CLI config
	if transport == nil {
		transport = http.DefaultTransport
	}

	rest, err := ghAPI.NewHTTPClient(ghAPI.ClientOptions{
		AuthToken: authToken,
		Host:      u.Hostname(),
		Headers: map[string]string{
			"Accept":               acceptHeader,
			"X-GitHub-Api-Version": apiVersion,
		},
		Timeout:   timeout,
		Transport: transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GitHub client")
	}

	return &Client{
		http:       rest,
		baseURL:    strings.TrimRight(apiURL, "/"),
		authToken:  authToken,
		apiVersion: apiVersion,
	}, nil
}

func (c *Client) repoPath(owner, repo, path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), path)
}

type registrationToken struct {
	Token *string `json:"token"`
}

// RegistrationToken requests a single-use runner registration token for
// owner/repo.
func (c *Client) RegistrationToken(ctx context.Context, owner, repo string) (string, error) {
	endpoint := c.repoPath(owner, repo, "actions/runners/registration-token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "building registration token request")
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("X-GitHub-Api-Version", c.apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "requesting registration token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading registration token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body), URL: endpoint}
	}

	var rt registrationToken
	if err := json.Unmarshal(body, &rt); err != nil {
		return "", &MalformedResponseError{Field: "token", Body: string(body)}
	}

	if rt.Token == nil || *rt.Token == "" {
		return "", &MalformedResponseError{Field: "token", Body: string(body)}
	}

	return *rt.Token, nil
}
