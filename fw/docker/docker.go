// Package docker waits for the local docker daemon to come up after the
// service manager has been asked to start it.
package docker

import (
	"context"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrDaemonNotReady is returned when the daemon did not answer in time.
var ErrDaemonNotReady = errors.New("docker daemon did not become ready")

// DefaultInterval is the delay between pings.
const DefaultInterval = 500 * time.Millisecond

// Pinger is the subset of the docker client used to probe the daemon.
type Pinger interface {
	Ping(context.Context) (types.Ping, error)
}

// NewClient returns a docker client configured from the environment
// (DOCKER_HOST and friends).
func NewClient() (*client.Client, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "could not create docker client")
	}

	return c, nil
}

// WaitReady pings the daemon every interval until it answers, timeout
// elapses or ctx is canceled.
func WaitReady(ctx context.Context, p Pinger, interval, timeout time.Duration, log *logrus.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	for attempt := 1; ; attempt++ {
		ping, err := p.Ping(ctx)
		if err == nil {
			if log != nil {
				log.WithFields(logrus.Fields{"api_version": ping.APIVersion, "os_type": ping.OSType}).
					Debugf("docker daemon ready after %v", time.Since(start))
			}
			return nil
		}

		if log != nil {
			log.WithField("attempt", attempt).Debugf("docker daemon not ready: %v", err)
		}

		select {
		case <-ctx.Done():
			if errors.Cause(ctx.Err()) == context.DeadlineExceeded {
				return errors.Wrapf(ErrDaemonNotReady, "after %v (last error: %v)", timeout, err)
			}
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
