package ipm

import "fmt"

// KnownStateForbidsSendError is raised when Send is called on an endpoint
// that is not Connected (spec §7, P1).
type KnownStateForbidsSendError struct {
	State State
}

func (e *KnownStateForbidsSendError) Error() string {
	return fmt.Sprintf("known state forbids send: endpoint is %s", e.State)
}

// KnownStateForbidsReceiveError is the receive-side counterpart.
type KnownStateForbidsReceiveError struct {
	State State
}

func (e *KnownStateForbidsReceiveError) Error() string {
	return fmt.Sprintf("known state forbids receive: endpoint is %s", e.State)
}

// NullPointerPassedToSendError is raised when buf is nil but a non-zero
// length was declared (spec §4.2, P2). Go slices have no true null
// pointer, so this models the C-heritage precondition as "nil slice with
// intended non-zero length" rather than as an actual pointer failure.
type NullPointerPassedToSendError struct{}

func (e *NullPointerPassedToSendError) Error() string {
	return "null buffer passed to send"
}

// UnexpectedNumberOfBytesError is raised when a received message's data
// length does not match the caller's expected size (spec §4.3, P4).
type UnexpectedNumberOfBytesError struct {
	Got, Want int
}

func (e *UnexpectedNumberOfBytesError) Error() string {
	return fmt.Sprintf("unexpected number of bytes: got %d, want %d", e.Got, e.Want)
}

// SendTimeoutExpiredError is raised when a send's timeout elapses without
// completing, unless the caller suppressed it with noThrowOnTimeout.
type SendTimeoutExpiredError struct {
	TimeoutMs int64
}

func (e *SendTimeoutExpiredError) Error() string {
	return fmt.Sprintf("send timeout expired after %dms", e.TimeoutMs)
}

// ReceiveTimeoutExpiredError is the receive-side counterpart (spec §4.3, P5).
type ReceiveTimeoutExpiredError struct {
	TimeoutMs int64
}

func (e *ReceiveTimeoutExpiredError) Error() string {
	return fmt.Sprintf("receive timeout expired after %dms", e.TimeoutMs)
}

// ZmqOperationError reports a fatal bind/connect/unbind/disconnect or
// configuration failure: the operation as a whole failed because zero
// resolved endpoints succeeded (spec §7).
type ZmqOperationError struct {
	Op, Direction, Reason, Endpoint string
}

func (e *ZmqOperationError) Error() string {
	return fmt.Sprintf("zmq %s operation failed (%s) on %q: %s", e.Op, e.Direction, e.Endpoint, e.Reason)
}

// ZmqSendError wraps a transport exception raised while sending a frame.
type ZmqSendError struct {
	Reason   string
	Len      int
	Metadata string
	Err      error
}

func (e *ZmqSendError) Error() string {
	return fmt.Sprintf("zmq send failed (len=%d, metadata=%q): %s", e.Len, e.Metadata, e.Reason)
}

func (e *ZmqSendError) Unwrap() error { return e.Err }

// ZmqReceiveError wraps a transport exception raised while receiving a
// frame; Part names which frame failed ("header" or "data").
type ZmqReceiveError struct {
	Reason string
	Part   string
	Err    error
}

func (e *ZmqReceiveError) Error() string {
	return fmt.Sprintf("zmq receive failed (%s frame): %s", e.Part, e.Reason)
}

func (e *ZmqReceiveError) Unwrap() error { return e.Err }

// ZmqSubscribeError is raised when a topic filter addition is rejected.
type ZmqSubscribeError struct {
	Topic string
	Err   error
}

func (e *ZmqSubscribeError) Error() string {
	return fmt.Sprintf("zmq subscribe to %q failed: %v", e.Topic, e.Err)
}

func (e *ZmqSubscribeError) Unwrap() error { return e.Err }

// ZmqUnsubscribeError is the removal-side counterpart.
type ZmqUnsubscribeError struct {
	Topic string
	Err   error
}

func (e *ZmqUnsubscribeError) Error() string {
	return fmt.Sprintf("zmq unsubscribe from %q failed: %v", e.Topic, e.Err)
}

func (e *ZmqUnsubscribeError) Unwrap() error { return e.Err }

// ServiceNotFoundError is raised by a Resolver when DNS-SRV discovery for
// service_name yields no records.
type ServiceNotFoundError struct {
	Name string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service not found: %q", e.Name)
}

// NameNotFoundError is raised by a Resolver when plain hostname resolution
// fails for a connection string's host component.
type NameNotFoundError struct {
	Name string
}

func (e *NameNotFoundError) Error() string {
	return fmt.Sprintf("name not found: %q", e.Name)
}

// InitError is raised by zmqcontext when environment-supplied tuning
// values fail validation (spec §4.1).
type InitError struct {
	Reason string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("endpoint context init failed: %s", e.Reason)
}

// ErrNoResolvedEndpoints is returned by a single-endpoint connect when its
// Resolver yields an empty set — always a fatal configuration error (spec
// §3).
var ErrNoResolvedEndpoints = fmt.Errorf("resolver returned no endpoints")
