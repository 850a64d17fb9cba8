// IPM — inter-process messaging core library.
// Copyright (c) 2018-2026 IPM contributors. All rights reserved.
//
// Distributed under the MIT license.
//
// For the full copyright and license information, please view the LICENSE
// file that was distributed with this source code.

// Package pump implements the Callback Pump (spec §4.8): a background
// worker that drives a Receiver with non-blocking receives and dispatches
// completed messages into a user callback, attachable and detachable
// concurrently with lifecycle events. Grounded on the teacher's
// worker/quit-channel lifecycle (sdk/balancer.go): a dedicated goroutine
// watches a quit signal, closes a done signal on exit, and is always
// joined on that done signal before teardown returns.
package pump

import (
	"errors"
	"sync"
	"time"

	"github.com/kusanagi/ipm-go/ipm"
	"github.com/kusanagi/ipm-go/sink"
)

// idlePoll is how long the worker sleeps between NO_BLOCK receive
// attempts once nothing is pending (spec §4.8).
const idlePoll = 10 * time.Millisecond

// Callback receives a completed Response. Callback exceptions (panics) are
// the caller's responsibility; the pump does not recover them (spec §4.8:
// "the pump does not catch them").
type Callback func(ipm.Response)

// Pump drives at most one Receiver into at most one Callback. The mutex
// guards exactly the three fields the spec calls out: the receiver
// reference, the callback function, and the worker handle (spec §5).
type Pump struct {
	mu sync.Mutex

	receiver ipm.Receiver
	callback Callback
	sink     sink.EventSink

	quit chan struct{}
	done chan struct{}
	live chan struct{}
}

// New creates an unattached Pump. evs may be nil (sink.Discard is used).
func New(evs sink.EventSink) *Pump {
	if evs == nil {
		evs = sink.Discard()
	}
	return &Pump{sink: evs}
}

// SetReceiver attaches r as the Receiver to drive. The worker is
// (re)started iff both a receiver and a callback are set afterward (spec
// §4.8).
func (p *Pump) SetReceiver(r ipm.Receiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.receiver = r
	p.maybeStartLocked()
}

// SetCallback attaches fn as the callback to invoke. The worker is
// (re)started iff both a receiver and a callback are set afterward.
func (p *Pump) SetCallback(fn Callback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.callback = fn
	p.maybeStartLocked()
}

// ClearCallback clears the callback and shuts the worker down (spec §4.8).
func (p *Pump) ClearCallback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.callback = nil
}

// Close clears the callback, shuts the worker down, then releases the
// Receiver reference — the required destructor order (spec §4.8, §9: the
// pump must be shut down strictly before the receiver is dropped). Safe
// to call more than once.
func (p *Pump) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.callback = nil
	p.receiver = nil
}

// maybeStartLocked starts the worker iff both receiver and callback are
// set and no worker is already running. Must be called with mu held.
func (p *Pump) maybeStartLocked() {
	if p.receiver == nil || p.callback == nil || p.quit != nil {
		return
	}
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	p.live = make(chan struct{})

	receiver := p.receiver
	quit := p.quit
	done := p.done
	live := p.live
	started := make(chan struct{})

	go p.run(receiver, quit, done, live, started)

	// Block until the worker's first receive attempt is underway: this
	// guarantees a subsequent send observed by the peer cannot race the
	// pump's first receive (spec §4.8 "Startup synchronization").
	p.mu.Unlock()
	<-started
	p.mu.Lock()
}

// stopLocked shuts any running worker down and joins it before returning
// (spec §4.8, P9). Must be called with mu held; temporarily releases it
// while waiting for the worker to exit, since the worker itself takes the
// mutex during dispatch.
func (p *Pump) stopLocked() {
	if p.quit == nil {
		return
	}
	quit, done := p.quit, p.done
	p.quit, p.done, p.live = nil, nil, nil

	close(quit)
	p.mu.Unlock()
	<-done
	p.mu.Lock()
}

// run is the worker loop (spec §4.8): call Receive(NO_BLOCK); swallow
// ReceiveTimeoutExpired and sleep idlePoll; on success, dispatch under the
// mutex if the callback is still set; exit when quit is closed.
func (p *Pump) run(receiver ipm.Receiver, quit, done, live chan struct{}, started chan struct{}) {
	defer close(done)
	startedOnce := false

	for {
		select {
		case <-quit:
			return
		default:
		}

		resp, err := receiver.Receive(ipm.NO_BLOCK, ipm.ANY, true)
		if !startedOnce {
			startedOnce = true
			close(started)
		}

		var timeoutErr *ipm.ReceiveTimeoutExpiredError
		if err != nil {
			if errors.As(err, &timeoutErr) {
				select {
				case <-quit:
					return
				case <-time.After(idlePoll):
				}
				continue
			}
			// Receive errors other than timeout propagate up and
			// terminate the worker (spec §4.8, documented).
			p.sink.Error("callback pump receive failed, stopping worker", "err", err)
			return
		}
		if resp.Data == nil && resp.Metadata == nil {
			// no_throw_on_timeout returned an empty Response instead of
			// an error; treat the same as a timeout.
			select {
			case <-quit:
				return
			case <-time.After(idlePoll):
			}
			continue
		}

		p.mu.Lock()
		cb := p.callback
		p.mu.Unlock()
		if cb != nil {
			cb(resp)
		}
		p.markLive(live)
	}
}

func (p *Pump) markLive(live chan struct{}) {
	select {
	case <-live:
	default:
		close(live)
	}
}
