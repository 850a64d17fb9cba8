// IPM — inter-process messaging core library.
// Copyright (c) 2018-2026 IPM contributors. All rights reserved.
//
// Distributed under the MIT license.
//
// For the full copyright and license information, please view the LICENSE
// file that was distributed with this source code.

// Package zmqcontext owns the process-wide transport runtime (spec §4.1):
// a single *zmq.Context, lazily created, tuned from environment variables,
// and closed deterministically at teardown.
package zmqcontext

import (
	"os"
	"strconv"
	"sync"

	zmq "github.com/pebbe/zmq4"

	"github.com/kusanagi/ipm-go/ipm"
)

// DefaultMaxSockets is the floor below which IPM_ZMQ_MAX_SOCKETS is
// ignored (spec §5, §6).
const DefaultMaxSockets = 16636

const (
	envIOThreads  = "IPM_ZMQ_IO_THREADS"
	envMaxSockets = "IPM_ZMQ_MAX_SOCKETS"
)

var (
	defaultOnce sync.Once
	defaultCtx  *Context
	defaultErr  error
)

// Context wraps a *zmq.Context plus the tuning applied to it.
type Context struct {
	zctx       *zmq.Context
	ioThreads  int
	maxSockets int
}

// Default lazily creates the process-singleton Context on first access,
// reading IPM_ZMQ_IO_THREADS and IPM_ZMQ_MAX_SOCKETS exactly once. Every
// subsequent call returns the same instance; setters applied after the
// first socket is created are rejected by the underlying runtime, so
// callers must not attempt to retune it.
func Default() (*Context, error) {
	defaultOnce.Do(func() {
		defaultCtx, defaultErr = New()
	})
	return defaultCtx, defaultErr
}

// New creates an independent Context, reading the same environment
// variables as Default. Tests that need isolation from the process
// singleton (spec §9: "allow multiple contexts for tests") should use
// this instead of Default.
func New() (*Context, error) {
	ioThreads, err := readTunable(envIOThreads, 1)
	if err != nil {
		return nil, &ipm.InitError{Reason: err.Error()}
	}
	maxSockets, err := readTunable(envMaxSockets, DefaultMaxSockets)
	if err != nil {
		return nil, &ipm.InitError{Reason: err.Error()}
	}
	// A configured value at or below the default never shrinks the cap
	// (spec §4.1: "raised via environment ... if larger").
	if maxSockets < DefaultMaxSockets {
		maxSockets = DefaultMaxSockets
	}

	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, &ipm.InitError{Reason: err.Error()}
	}

	if ioThreads > 1 {
		if err := zctx.SetIoThreads(ioThreads); err != nil {
			return nil, &ipm.InitError{Reason: err.Error()}
		}
	}
	if maxSockets > DefaultMaxSockets {
		if err := zctx.SetMaxSockets(maxSockets); err != nil {
			return nil, &ipm.InitError{Reason: err.Error()}
		}
	}

	return &Context{zctx: zctx, ioThreads: ioThreads, maxSockets: maxSockets}, nil
}

// readTunable reads an integer environment variable, returning dflt when
// unset. A value present but not a valid positive integer is a validation
// failure (spec §4.1: "Fails with InitError if validation rejects a
// configured value").
func readTunable(name string, dflt int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return dflt, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errInvalidTunable(name, raw)
	}
	return v, nil
}

func errInvalidTunable(name, raw string) error {
	return &ipm.InitError{Reason: "invalid value for " + name + ": " + raw}
}

// Zmq returns the underlying *zmq.Context for constructing sockets.
func (c *Context) Zmq() *zmq.Context { return c.zctx }

// IOThreads returns the configured IO-thread count.
func (c *Context) IOThreads() int { return c.ioThreads }

// MaxSockets returns the configured socket cap.
func (c *Context) MaxSockets() int { return c.maxSockets }

// Close terminates the transport runtime, blocking until every socket
// created from it has been released.
func (c *Context) Close() error {
	return c.zctx.Term()
}
