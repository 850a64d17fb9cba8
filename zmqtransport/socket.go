// IPM — inter-process messaging core library.
// Copyright (c) 2018-2026 IPM contributors. All rights reserved.
//
// Distributed under the MIT license.
//
// For the full copyright and license information, please view the LICENSE
// file that was distributed with this source code.

// Package zmqtransport implements the IPM Sender/Receiver/Publisher/
// Subscriber contracts over github.com/pebbe/zmq4 (spec §4.6, §4.7).
//
// Push vs Pub differ only in socket flavor and teardown verb, likewise
// Pull vs Sub: rather than a class hierarchy, each concrete type carries a
// kind tag and the shared socket plumbing branches on it (spec §9).
package zmqtransport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	zmq "github.com/pebbe/zmq4"

	"github.com/kusanagi/ipm-go/ipm"
	"github.com/kusanagi/ipm-go/resolver"
	"github.com/kusanagi/ipm-go/sink"
	"github.com/kusanagi/ipm-go/zmqcontext"
)

// kind tags the four socket flavors the package implements.
type kind int

const (
	kindPush kind = iota
	kindPull
	kindPub
	kindSub
)

func (k kind) zmqType() zmq.Type {
	switch k {
	case kindPush:
		return zmq.PUSH
	case kindPull:
		return zmq.PULL
	case kindPub:
		return zmq.PUB
	case kindSub:
		return zmq.SUB
	default:
		panic("unreachable socket kind")
	}
}

// binds reports whether this kind binds (Receiver, Publisher) rather than
// connects (Sender, Subscriber) when establishing an endpoint.
func (k kind) binds() bool {
	return k == kindPull || k == kindPub
}

// multi reports whether this kind may hold more than one concrete
// endpoint simultaneously (only the Subscriber, spec §4.4).
func (k kind) multi() bool {
	return k == kindSub
}

// pollInterval is the fixed poll granularity of every send/receive loop
// (spec §4.6, §4.7).
const pollInterval = time.Millisecond

// socket is the shared plumbing backing Sender, Publisher, Receiver and
// Subscriber: one underlying *zmq.Socket, lifecycle state, the resolved
// endpoint list and teardown bookkeeping. All operations on it must
// serialize through the owning endpoint; the transport is not re-entrant
// per socket (spec §5), hence the mutex.
type socket struct {
	mu sync.Mutex

	kind     kind
	id       string
	zctx     *zmqcontext.Context
	resolver resolver.Resolver
	sink     sink.EventSink

	zsock     *zmq.Socket
	state     ipm.State
	endpoints []string
}

func newSocket(k kind, zctx *zmqcontext.Context, res resolver.Resolver, evs sink.EventSink) *socket {
	if res == nil {
		res = resolver.Default()
	}
	if evs == nil {
		evs = sink.Discard()
	}
	return &socket{
		kind:     k,
		id:       uuid.NewString(),
		zctx:     zctx,
		resolver: res,
		sink:     evs,
		state:    ipm.Unconnected,
	}
}

func (s *socket) State() ipm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *socket) Endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}

// ensureSocket lazily creates the underlying zmq socket and applies the
// non-blocking timeout setup required by the send/receive loops (spec
// §4.6 step 1, §4.7 setup): per-call timeouts are always zero so Go code
// owns the polling/timeout discipline, never the transport.
func (s *socket) ensureSocket() error {
	if s.zsock != nil {
		return nil
	}
	zsock, err := s.zctx.Zmq().NewSocket(s.kind.zmqType())
	if err != nil {
		return err
	}
	if err := zsock.SetSndtimeo(0); err != nil {
		zsock.Close()
		return err
	}
	if err := zsock.SetRcvtimeo(0); err != nil {
		zsock.Close()
		return err
	}
	if s.kind == kindPush {
		// Discard messages against peers that aren't fully connected
		// rather than queueing them (spec §4.6 step 1).
		if err := zsock.SetImmediate(true); err != nil {
			zsock.Close()
			return err
		}
	}
	zsock.SetLinger(0)
	s.zsock = zsock
	return nil
}

// rewriteWildcardHost rewrites a tcp:// connection string's host to "*"
// before a Publisher binds it (spec §4.6 step 2), so the bind listens on
// every interface regardless of what hostname the caller supplied.
func rewriteWildcardHost(connectionString string) string {
	u, err := url.Parse(connectionString)
	if err != nil || u.Scheme != "tcp" {
		return connectionString
	}
	port := u.Port()
	if port == "" {
		return connectionString
	}
	return fmt.Sprintf("tcp://*:%s", port)
}

// connectSingle resolves connectionString and attempts bind/connect
// against each resolved endpoint in order, stopping at the first success
// (spec §4.6 step 3; used by Sender, Publisher and Receiver, all of which
// own at most one established endpoint). Per-attempt failures are
// demoted to warnings; total failure across every resolved endpoint is
// fatal (spec §7).
func (s *socket) connectSingle(ctx context.Context, connectionString string) (string, error) {
	if s.kind == kindPub {
		connectionString = rewriteWildcardHost(connectionString)
	}

	resolved, err := s.resolver.Resolve(ctx, connectionString)
	if err != nil {
		return "", err
	}
	if len(resolved) == 0 {
		return "", ipm.ErrNoResolvedEndpoints
	}

	if err := s.ensureSocket(); err != nil {
		return "", err
	}

	var lastErr error
	for _, endpoint := range resolved {
		if err := s.attach(endpoint); err != nil {
			lastErr = err
			s.sink.Warn("endpoint attempt failed", "id", s.id, "endpoint", endpoint, "err", err)
			continue
		}
		if s.kind.binds() {
			// Record the address the transport actually bound, so a
			// requested port 0 comes back as the port that was chosen.
			if last, err := s.zsock.GetLastEndpoint(); err == nil && last != "" {
				endpoint = last
			}
		}
		s.mu.Lock()
		s.state = ipm.Connected
		s.endpoints = []string{endpoint}
		s.mu.Unlock()
		return endpoint, nil
	}

	op, dir := s.opAndDirection()
	return "", &ipm.ZmqOperationError{
		Op:        op,
		Direction: dir,
		Reason:    fmt.Sprintf("all %d resolved endpoint(s) failed, last error: %v", len(resolved), lastErr),
		Endpoint:  connectionString,
	}
}

// connectMulti resolves each of connectionStrings and attaches to every
// resolved endpoint, skipping endpoints already connected (spec §4.4:
// idempotent repeat invocations). State becomes Connected if at least one
// endpoint succeeds overall; per-endpoint failures are demoted to
// warnings.
func (s *socket) connectMulti(ctx context.Context, connectionStrings []string) error {
	if err := s.ensureSocket(); err != nil {
		return err
	}

	s.mu.Lock()
	already := make(map[string]bool, len(s.endpoints))
	for _, e := range s.endpoints {
		already[e] = true
	}
	s.mu.Unlock()

	var active int // endpoints now attached, freshly or already
	var lastErr error
	var totalResolved int
	for _, cs := range connectionStrings {
		resolved, err := s.resolver.Resolve(ctx, cs)
		if err != nil {
			lastErr = err
			s.sink.Warn("resolve failed", "id", s.id, "connection_string", cs, "err", err)
			continue
		}
		totalResolved += len(resolved)
		for _, endpoint := range resolved {
			if already[endpoint] {
				active++
				continue
			}
			if err := s.attach(endpoint); err != nil {
				lastErr = err
				s.sink.Warn("endpoint attempt failed", "id", s.id, "endpoint", endpoint, "err", err)
				continue
			}
			s.mu.Lock()
			s.endpoints = append(s.endpoints, endpoint)
			s.state = ipm.Connected
			s.mu.Unlock()
			already[endpoint] = true
			active++
		}
	}

	if active == 0 {
		op, dir := s.opAndDirection()
		reason := "no resolved endpoints"
		if totalResolved > 0 {
			reason = fmt.Sprintf("all %d resolved endpoint(s) failed, last error: %v", totalResolved, lastErr)
		}
		return &ipm.ZmqOperationError{
			Op:        op,
			Direction: dir,
			Reason:    reason,
			Endpoint:  strings.Join(connectionStrings, ","),
		}
	}
	return nil
}

// attach performs the single bind-or-connect transport call for this
// socket kind.
func (s *socket) attach(endpoint string) error {
	if s.kind.binds() {
		return s.zsock.Bind(endpoint)
	}
	return s.zsock.Connect(endpoint)
}

// detach performs the single unbind-or-disconnect transport call,
// swallowing the error per spec §7 ("teardown errors always demoted to
// warnings").
func (s *socket) detach(endpoint string) {
	var err error
	if s.kind.binds() {
		err = s.zsock.Unbind(endpoint)
	} else {
		err = s.zsock.Disconnect(endpoint)
	}
	if err != nil {
		s.sink.Warn("teardown detach failed", "id", s.id, "endpoint", endpoint, "err", err)
	}
}

func (s *socket) opAndDirection() (op, dir string) {
	if s.kind.binds() {
		return "bind", "receive-or-publish"
	}
	return "connect", "send-or-subscribe"
}

// Close tears the socket down: detaches every established endpoint
// (ignoring failures) and closes the transport socket. Safe to call more
// than once.
func (s *socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == ipm.Closed {
		return nil
	}
	if s.zsock != nil {
		for _, endpoint := range s.endpoints {
			s.detach(endpoint)
		}
		if err := s.zsock.Close(); err != nil {
			s.sink.Warn("socket close failed", "id", s.id, "err", err)
		}
	}
	s.state = ipm.Closed
	s.endpoints = nil
	return nil
}

func isAgain(err error) bool {
	return err != nil && zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN)
}

func elapsedMs(t0 time.Time) int64 {
	return time.Since(t0).Milliseconds()
}
