package zmqtransport

import (
	"context"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/kusanagi/ipm-go/ipm"
	"github.com/kusanagi/ipm-go/resolver"
	"github.com/kusanagi/ipm-go/sink"
	"github.com/kusanagi/ipm-go/zmqcontext"
)

// Receiver is the transport-backed point-to-point Receiver (spec §4.3,
// §4.7): one Pull socket that binds.
type Receiver struct {
	s        *socket
	counters ipm.Counters
}

// NewReceiver creates a Receiver bound to zctx.
func NewReceiver(zctx *zmqcontext.Context, res resolver.Resolver, evs sink.EventSink) *Receiver {
	return &Receiver{s: newSocket(kindPull, zctx, res, evs)}
}

var _ ipm.Receiver = (*Receiver)(nil)

func (r *Receiver) State() ipm.State    { return r.s.State() }
func (r *Receiver) Endpoints() []string { return r.s.Endpoints() }
func (r *Receiver) Close() error        { return r.s.Close() }
func (r *Receiver) CanReceive() bool    { return r.State() == ipm.Connected }

// ConnectForReceives resolves cfg's connection string and binds the Pull
// socket, returning the concrete bound address — useful when port 0 was
// requested (spec §4.3).
func (r *Receiver) ConnectForReceives(cfg ipm.Config) (string, error) {
	return r.s.connectSingle(context.Background(), cfg.ConnectionString())
}

// Receive blocks up to timeout for one message (spec §4.7).
func (r *Receiver) Receive(timeout time.Duration, expectedSize int, noThrowOnTimeout bool) (ipm.Response, error) {
	return receiveLoop(r.s, &r.counters, timeout, expectedSize, noThrowOnTimeout)
}

// Snapshot atomically reads and zeroes the byte/message counters.
func (r *Receiver) Snapshot() (bytes, messages uint64) { return r.counters.Snapshot() }

// Subscriber is the transport-backed topic-addressed Receiver (spec §4.4,
// §4.7): one Sub socket that may connect to several Publishers.
type Subscriber struct {
	s        *socket
	counters ipm.Counters
}

// NewSubscriber creates a Subscriber bound to zctx.
func NewSubscriber(zctx *zmqcontext.Context, res resolver.Resolver, evs sink.EventSink) *Subscriber {
	return &Subscriber{s: newSocket(kindSub, zctx, res, evs)}
}

var _ ipm.Subscriber = (*Subscriber)(nil)

func (sub *Subscriber) State() ipm.State    { return sub.s.State() }
func (sub *Subscriber) Endpoints() []string { return sub.s.Endpoints() }
func (sub *Subscriber) Close() error        { return sub.s.Close() }
func (sub *Subscriber) CanReceive() bool    { return sub.State() == ipm.Connected }

// ConnectForReceives connects to every endpoint resolved from either
// cfg's connection_string or connection_strings (spec §4.4). State
// becomes Connected as soon as one succeeds; repeat invocations add new
// endpoints idempotently.
func (sub *Subscriber) ConnectForReceives(cfg ipm.Config) (string, error) {
	strs := cfg.ConnectionStrings()
	if err := sub.s.connectMulti(context.Background(), strs); err != nil {
		return "", err
	}
	endpoints := sub.s.Endpoints()
	return endpoints[len(endpoints)-1], nil
}

// Subscribe adds topic to the filter set. An empty topic matches every
// message (spec §4.4).
func (sub *Subscriber) Subscribe(topic string) error {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	if sub.s.zsock == nil {
		return &ipm.ZmqSubscribeError{Topic: topic, Err: ipm.ErrNoResolvedEndpoints}
	}
	if err := sub.s.zsock.SetSubscribe(topic); err != nil {
		return &ipm.ZmqSubscribeError{Topic: topic, Err: err}
	}
	return nil
}

// Unsubscribe removes topic from the filter set.
func (sub *Subscriber) Unsubscribe(topic string) error {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	if sub.s.zsock == nil {
		return &ipm.ZmqUnsubscribeError{Topic: topic, Err: ipm.ErrNoResolvedEndpoints}
	}
	if err := sub.s.zsock.SetUnsubscribe(topic); err != nil {
		return &ipm.ZmqUnsubscribeError{Topic: topic, Err: err}
	}
	return nil
}

// Receive blocks up to timeout for one message matching an active
// subscription (spec §4.7, §7: topic filtering).
func (sub *Subscriber) Receive(timeout time.Duration, expectedSize int, noThrowOnTimeout bool) (ipm.Response, error) {
	return receiveLoop(sub.s, &sub.counters, timeout, expectedSize, noThrowOnTimeout)
}

// Snapshot atomically reads and zeroes the byte/message counters.
func (sub *Subscriber) Snapshot() (bytes, messages uint64) { return sub.counters.Snapshot() }

// receiveLoop implements the receive loop shared by Receiver and
// Subscriber (spec §4.7): non-blocking header receive, then (once the
// header arrives) a non-blocking body receive, polling at pollInterval
// until a complete message arrives or timeout elapses. A SendMultipart
// call on the peer emits one topic frame followed by every part under a
// single continuation sequence (spec §9 open question (c)); this loop
// drains every such trailing frame and concatenates them into one Data
// payload, so a multipart send still surfaces as one logical Response.
func receiveLoop(s *socket, counters *ipm.Counters, timeout time.Duration, expectedSize int, noThrowOnTimeout bool) (ipm.Response, error) {
	if !s.canReceive() {
		return ipm.Response{}, &ipm.KnownStateForbidsReceiveError{State: s.State()}
	}

	t0 := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		header, err := s.zsock.RecvBytes(zmq.DONTWAIT)
		if err == nil {
			body, err := s.zsock.RecvBytes(zmq.DONTWAIT)
			if err != nil {
				return ipm.Response{}, &ipm.ZmqReceiveError{Reason: err.Error(), Part: "data", Err: err}
			}
			for {
				more, err := s.zsock.GetRcvmore()
				if err != nil || !more {
					break
				}
				part, err := s.zsock.RecvBytes(zmq.DONTWAIT)
				if err != nil {
					return ipm.Response{}, &ipm.ZmqReceiveError{Reason: err.Error(), Part: "data", Err: err}
				}
				body = append(body, part...)
			}
			resp := ipm.Response{Metadata: header, Data: body}
			if expectedSize != ipm.ANY && len(resp.Data) != expectedSize {
				return ipm.Response{}, &ipm.UnexpectedNumberOfBytesError{Got: len(resp.Data), Want: expectedSize}
			}
			counters.Add(len(resp.Data))
			return resp, nil
		}
		if !isAgain(err) {
			return ipm.Response{}, &ipm.ZmqReceiveError{Reason: err.Error(), Part: "header", Err: err}
		}

		if elapsedMs(t0) >= timeout.Milliseconds() {
			if noThrowOnTimeout {
				return ipm.Response{}, nil
			}
			return ipm.Response{}, &ipm.ReceiveTimeoutExpiredError{TimeoutMs: timeout.Milliseconds()}
		}
		time.Sleep(pollInterval)
	}
}

func (s *socket) canReceive() bool {
	return s.State() == ipm.Connected
}
