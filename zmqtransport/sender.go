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

// Sender is the transport-backed point-to-point Sender (spec §4.2, §4.6):
// one Push socket that connects to a bound Receiver.
type Sender struct {
	s *socket
}

// NewSender creates a Sender bound to zctx. res and evs may be nil to use
// the package defaults (resolver.Default, sink.Discard).
func NewSender(zctx *zmqcontext.Context, res resolver.Resolver, evs sink.EventSink) *Sender {
	return &Sender{s: newSocket(kindPush, zctx, res, evs)}
}

var _ ipm.Sender = (*Sender)(nil)

func (snd *Sender) State() ipm.State      { return snd.s.State() }
func (snd *Sender) Endpoints() []string   { return snd.s.Endpoints() }
func (snd *Sender) Close() error          { return snd.s.Close() }
func (snd *Sender) CanSend() bool         { return snd.State() == ipm.Connected }

// ConnectForSends resolves cfg's connection string and connects the Push
// socket, returning the concrete endpoint used (spec §4.2).
func (snd *Sender) ConnectForSends(cfg ipm.Config) (string, error) {
	return snd.s.connectSingle(context.Background(), cfg.ConnectionString())
}

// Send transmits buf as a two-frame message: metadata then data (spec
// §4.6). See sendLoop for the framing/timeout discipline shared with
// Publisher.
func (snd *Sender) Send(buf []byte, length int, timeout time.Duration, metadata string, noThrowOnTimeout bool) (bool, error) {
	return sendLoop(snd.s, buf, length, timeout, metadata, noThrowOnTimeout)
}

// SendMultipart sends every part under one metadata frame as a single
// framed sequence (see sendMultipart); a Receiver gets it back as one
// Response whose Data is the parts concatenated.
func (snd *Sender) SendMultipart(parts [][]byte, timeout time.Duration, metadata string) error {
	return sendMultipart(snd.s, parts, timeout, metadata)
}

// Publisher is the transport-backed topic-addressed Sender (spec §4.4,
// §4.6): one Pub socket that binds, with the topic frame doubling as the
// subscription filter key on the subscriber side.
type Publisher struct {
	s *socket
}

// NewPublisher creates a Publisher bound to zctx.
func NewPublisher(zctx *zmqcontext.Context, res resolver.Resolver, evs sink.EventSink) *Publisher {
	return &Publisher{s: newSocket(kindPub, zctx, res, evs)}
}

var _ ipm.Publisher = (*Publisher)(nil)

func (pub *Publisher) State() ipm.State    { return pub.s.State() }
func (pub *Publisher) Endpoints() []string { return pub.s.Endpoints() }
func (pub *Publisher) Close() error        { return pub.s.Close() }
func (pub *Publisher) CanSend() bool       { return pub.State() == ipm.Connected }

// ConnectForSends resolves cfg's connection string (or service_name, when
// present, via DNS-SRV) and binds the Pub socket, returning the concrete
// address bound — useful when port 0 was requested (spec §4.2, §6).
func (pub *Publisher) ConnectForSends(cfg ipm.Config) (string, error) {
	ctx := context.Background()
	connectionString := cfg.ConnectionString()

	if name := cfg.ServiceName(); name != "" {
		if sr, ok := pub.s.resolver.(resolver.ServiceResolver); ok {
			resolved, err := sr.ResolveService(ctx, name)
			if err != nil {
				return "", err
			}
			connectionString = resolved
		}
	}

	return pub.s.connectSingle(ctx, connectionString)
}

// Send publishes buf under the given topic (spec §4.4: "send with
// non-empty metadata publishes under that topic").
func (pub *Publisher) Send(buf []byte, length int, timeout time.Duration, metadata string, noThrowOnTimeout bool) (bool, error) {
	return sendLoop(pub.s, buf, length, timeout, metadata, noThrowOnTimeout)
}

// SendMultipart sends each part under the same topic.
func (pub *Publisher) SendMultipart(parts [][]byte, timeout time.Duration, metadata string) error {
	return sendMultipart(pub.s, parts, timeout, metadata)
}

// sendMultipart emits a single framed sequence — topic frame, then every
// part each carrying the continuation flag except the last — rather than
// the naive default of re-sending the topic frame per part (spec §9 open
// question (c)).
func sendMultipart(s *socket, parts [][]byte, timeout time.Duration, metadata string) error {
	if len(parts) == 0 {
		return nil
	}
	if !s.canSend() {
		return &ipm.KnownStateForbidsSendError{State: s.State()}
	}

	t0 := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sendFrameRetrying(s, []byte(metadata), zmq.SNDMORE, timeout, t0); err != nil {
		return err
	}
	for i, part := range parts {
		flag := zmq.SNDMORE
		if i == len(parts)-1 {
			flag = 0
		}
		if err := sendFrameRetrying(s, part, flag, timeout, t0); err != nil {
			return err
		}
	}
	s.countSend(totalLen(parts))
	return nil
}

func totalLen(parts [][]byte) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n
}

// canSend reports whether the socket is Connected. It takes the mutex
// briefly through State, so the sendLoop helpers call it before they take
// the lock themselves around the whole operation.
func (s *socket) canSend() bool {
	return s.State() == ipm.Connected
}

// countSend is a placeholder kept symmetrical with the receiver-side
// Counters; Sender/Publisher counters are not part of the contract (only
// Receiver exposes Snapshot per spec §4.3), so this is a no-op retained
// for call-site symmetry with the receive side's Counters.Add.
func (s *socket) countSend(n int) {}

// sendLoop implements the send loop shared by Sender and Publisher (spec
// §4.6): a topic frame followed by the body frame, polling at
// pollInterval until both complete or timeout elapses.
func sendLoop(s *socket, buf []byte, length int, timeout time.Duration, metadata string, noThrowOnTimeout bool) (bool, error) {
	if length == 0 {
		return true, nil
	}
	if !s.canSend() {
		return false, &ipm.KnownStateForbidsSendError{State: s.State()}
	}
	if buf == nil {
		return false, &ipm.NullPointerPassedToSendError{}
	}
	buf = buf[:length]

	t0 := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataSent := false
	for {
		if !metadataSent {
			_, err := s.zsock.SendBytes([]byte(metadata), zmq.SNDMORE|zmq.DONTWAIT)
			switch {
			case err == nil:
				metadataSent = true
			case isAgain(err):
				// fall through to timeout/sleep handling below
			default:
				return false, &ipm.ZmqSendError{Reason: err.Error(), Len: len(metadata), Metadata: metadata, Err: err}
			}
		}

		if metadataSent {
			_, err := s.zsock.SendBytes(buf, zmq.DONTWAIT)
			switch {
			case err == nil:
				s.countSend(len(buf))
				return true, nil
			case isAgain(err):
				// fall through to timeout/sleep handling below
			default:
				return false, &ipm.ZmqSendError{Reason: err.Error(), Len: len(buf), Metadata: metadata, Err: err}
			}
		}

		if elapsedMs(t0) >= timeout.Milliseconds() {
			if noThrowOnTimeout {
				return false, nil
			}
			return false, &ipm.SendTimeoutExpiredError{TimeoutMs: timeout.Milliseconds()}
		}
		time.Sleep(pollInterval)
	}
}

// sendFrameRetrying sends one frame, retrying on EAGAIN until timeout
// elapses; used by sendMultipart's single-framed-sequence emission.
func sendFrameRetrying(s *socket, buf []byte, flag zmq.Flag, timeout time.Duration, t0 time.Time) error {
	for {
		_, err := s.zsock.SendBytes(buf, flag|zmq.DONTWAIT)
		if err == nil {
			return nil
		}
		if !isAgain(err) {
			return &ipm.ZmqSendError{Reason: err.Error(), Len: len(buf), Err: err}
		}
		if elapsedMs(t0) >= timeout.Milliseconds() {
			return &ipm.SendTimeoutExpiredError{TimeoutMs: timeout.Milliseconds()}
		}
		time.Sleep(pollInterval)
	}
}
