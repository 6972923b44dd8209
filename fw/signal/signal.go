// Package signal manages functionality surrounding signals from linux.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Context is the lifetime context of the bootstrap. It is canceled when
// SIGINT or SIGTERM arrive, which aborts any outstanding request or child
// process.
//
// Stop must be called before handing the process off so the new program
// receives signals with their default disposition.
type Context struct {
	context.Context

	cancel   context.CancelFunc
	channel  chan os.Signal
	done     chan struct{}
	stopOnce sync.Once
}

// NewContext installs the handler and returns the context bound to it.
func NewContext(parent context.Context, log *logrus.Entry) *Context {
	ctx, cancel := context.WithCancel(parent)

	c := &Context{
		Context: ctx,
		cancel:  cancel,
		channel: make(chan os.Signal, 2),
		done:    make(chan struct{}),
	}

	go c.handle(log)
	signal.Notify(c.channel, unix.SIGINT, unix.SIGTERM)

	return c
}

func (c *Context) handle(log *logrus.Entry) {
	select {
	case <-c.done:
	case sig := <-c.channel:
		if log != nil {
			log.Infof("Received %v; shutting down runner bootstrap", sig)
		}
		c.cancel()
	}
}

// Stop uninstalls the handler. The context itself is left alone.
func (c *Context) Stop() {
	c.stopOnce.Do(func() {
		signal.Stop(c.channel)
		close(c.done)
	})
}

// Cancel stops the handler and cancels the context.
func (c *Context) Cancel() {
	c.Stop()
	c.cancel()
}
