// IPM — inter-process messaging core library.
// Copyright (c) 2018-2026 IPM contributors. All rights reserved.
//
// Distributed under the MIT license.
//
// For the full copyright and license information, please view the LICENSE
// file that was distributed with this source code.

// Package metrics exports endpoint byte/message counters as Prometheus
// series (spec §1: "operational-metrics subsystems... sit behind
// interfaces the core depends on but never implements directly").
// Grounded on the CounterVec registration pattern used for the gateway
// probe metrics in the reference cluster mirror controller: named vectors
// labeled per endpoint, with the label set deleted on removal.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kusanagi/ipm-go/sink"
)

const (
	endpointNameLabel = "endpoint"
	endpointRoleLabel = "role"
)

// Source is satisfied by any endpoint exposing the counter Snapshot
// pattern (ipm.Receiver, ipm.Subscriber): an atomic read that also zeroes
// the underlying counters, so Exporter's poll loop accumulates rather
// than re-reading a running total.
type Source interface {
	Snapshot() (bytes, messages uint64)
}

// Exporter polls a set of named Sources on an interval and adds their
// snapshots into Prometheus counters labeled by endpoint name and role.
type Exporter struct {
	bytesTotal    *prometheus.CounterVec
	messagesTotal *prometheus.CounterVec
	sink          sink.EventSink

	mu      sync.Mutex
	sources map[string]entry

	quit chan struct{}
	done chan struct{}
}

type entry struct {
	role string
	src  Source
}

// New creates an Exporter registering its vectors against reg. Pass
// prometheus.DefaultRegisterer in production, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions with other
// Exporters in the same process.
func New(reg prometheus.Registerer, evs sink.EventSink) *Exporter {
	if evs == nil {
		evs = sink.Discard()
	}
	labels := []string{endpointNameLabel, endpointRoleLabel}
	factory := promauto.With(reg)
	return &Exporter{
		bytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ipm_endpoint_bytes_total",
			Help: "Total bytes transferred through an IPM endpoint.",
		}, labels),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ipm_endpoint_messages_total",
			Help: "Total messages transferred through an IPM endpoint.",
		}, labels),
		sink:    evs,
		sources: map[string]entry{},
	}
}

// Register adds src under name/role to the set polled by Start. Re-registering
// an existing name replaces its Source.
func (e *Exporter) Register(name, role string, src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[name] = entry{role: role, src: src}
}

// Unregister stops polling name and removes its label set from both
// vectors.
func (e *Exporter) Unregister(name string) {
	e.mu.Lock()
	ent, ok := e.sources[name]
	delete(e.sources, name)
	e.mu.Unlock()
	if !ok {
		return
	}
	labels := prometheus.Labels{endpointNameLabel: name, endpointRoleLabel: ent.role}
	if !e.bytesTotal.Delete(labels) {
		e.sink.Warn("metrics: unable to delete bytes_total series", "endpoint", name)
	}
	if !e.messagesTotal.Delete(labels) {
		e.sink.Warn("metrics: unable to delete messages_total series", "endpoint", name)
	}
}

// Start begins polling every interval on a background goroutine. Calling
// Start twice without an intervening Stop is a no-op.
func (e *Exporter) Start(interval time.Duration) {
	e.mu.Lock()
	if e.quit != nil {
		e.mu.Unlock()
		return
	}
	e.quit = make(chan struct{})
	e.done = make(chan struct{})
	quit, done := e.quit, e.done
	e.mu.Unlock()

	go e.run(interval, quit, done)
}

// Stop halts the poll loop and joins it before returning.
func (e *Exporter) Stop() {
	e.mu.Lock()
	quit, done := e.quit, e.done
	e.quit, e.done = nil, nil
	e.mu.Unlock()
	if quit == nil {
		return
	}
	close(quit)
	<-done
}

func (e *Exporter) run(interval time.Duration, quit, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

func (e *Exporter) pollOnce() {
	e.mu.Lock()
	snapshot := make(map[string]entry, len(e.sources))
	for name, ent := range e.sources {
		snapshot[name] = ent
	}
	e.mu.Unlock()

	for name, ent := range snapshot {
		bytes, messages := ent.src.Snapshot()
		if bytes == 0 && messages == 0 {
			continue
		}
		labels := prometheus.Labels{endpointNameLabel: name, endpointRoleLabel: ent.role}
		e.bytesTotal.With(labels).Add(float64(bytes))
		e.messagesTotal.With(labels).Add(float64(messages))
	}
}
