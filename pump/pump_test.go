package pump

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kusanagi/ipm-go/ipm"
)

// fakeReceiver is a minimal ipm.Receiver double driving the pump without a
// real transport: each Response queued with arm() is served once, in
// order; with nothing queued, Receive reports a timeout (an empty Response
// when noThrowOnTimeout is set, as the pump requests).
type fakeReceiver struct {
	mu      sync.Mutex
	pending []ipm.Response
	closed  bool
}

var _ ipm.Receiver = (*fakeReceiver)(nil)

func (f *fakeReceiver) State() ipm.State    { return ipm.Connected }
func (f *fakeReceiver) Endpoints() []string { return []string{"inproc://fake"} }
func (f *fakeReceiver) Close() error        { f.closed = true; return nil }
func (f *fakeReceiver) CanReceive() bool    { return true }
func (f *fakeReceiver) ConnectForReceives(ipm.Config) (string, error) {
	return "inproc://fake", nil
}
func (f *fakeReceiver) Snapshot() (uint64, uint64) { return 0, 0 }

func (f *fakeReceiver) Receive(timeout time.Duration, expectedSize int, noThrowOnTimeout bool) (ipm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) > 0 {
		resp := f.pending[0]
		f.pending = f.pending[1:]
		return resp, nil
	}
	if noThrowOnTimeout {
		return ipm.Response{}, nil
	}
	return ipm.Response{}, &ipm.ReceiveTimeoutExpiredError{TimeoutMs: timeout.Milliseconds()}
}

func (f *fakeReceiver) arm(resp ipm.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, resp)
}

func TestPumpDispatchesArmedMessage(t *testing.T) {
	recv := &fakeReceiver{}
	recv.arm(ipm.Response{Metadata: []byte("topic"), Data: []byte("payload")})

	got := make(chan ipm.Response, 1)
	p := New(nil)
	p.SetReceiver(recv)
	p.SetCallback(func(r ipm.Response) { got <- r })

	select {
	case r := <-got:
		require.Equal(t, []byte("payload"), r.Data)
		require.Equal(t, []byte("topic"), r.Metadata)
	case <-time.After(time.Second):
		t.Fatal("callback was never invoked")
	}

	p.Close()
}

func TestPumpClearCallbackStopsDispatch(t *testing.T) {
	recv := &fakeReceiver{}
	p := New(nil)
	p.SetReceiver(recv)

	var mu sync.Mutex
	count := 0
	p.SetCallback(func(ipm.Response) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	p.ClearCallback()

	recv.arm(ipm.Response{Metadata: []byte("t"), Data: []byte("d")})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, count, "no dispatch should occur once the callback is cleared")
}

func TestPumpCloseJoinsWorkerBeforeReturning(t *testing.T) {
	recv := &fakeReceiver{}
	p := New(nil)
	p.SetReceiver(recv)
	p.SetCallback(func(ipm.Response) {})

	p.Close()

	p.mu.Lock()
	running := p.quit != nil
	p.mu.Unlock()
	require.False(t, running, "Close must leave no worker running")
}

func TestPumpSetReceiverNilStopsWorker(t *testing.T) {
	recv := &fakeReceiver{}
	p := New(nil)
	p.SetReceiver(recv)
	p.SetCallback(func(ipm.Response) {})

	p.SetReceiver(nil)

	p.mu.Lock()
	running := p.quit != nil
	p.mu.Unlock()
	require.False(t, running, "clearing the receiver must stop the worker")
}
