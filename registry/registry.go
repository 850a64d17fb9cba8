// IPM — inter-process messaging core library.
// Copyright (c) 2018-2026 IPM contributors. All rights reserved.
//
// Distributed under the MIT license.
//
// For the full copyright and license information, please view the LICENSE
// file that was distributed with this source code.

// Package registry is the Plugin Factory Glue (spec §4.5): a string-keyed
// registry mapping plugin names to constructors, replacing the reference
// implementation's C-linkage plugin loader with an in-process type
// registry populated at init time (spec §9). The factory's string API is
// kept intact so callers remain portable across transports.
package registry

import (
	"fmt"
	"sync"

	"github.com/kusanagi/ipm-go/ipm"
	"github.com/kusanagi/ipm-go/resolver"
	"github.com/kusanagi/ipm-go/sink"
	"github.com/kusanagi/ipm-go/zmqcontext"
)

// Deps bundles the constructor arguments every plugin needs, so callers
// don't have to know a particular transport's constructor signature.
type Deps struct {
	Context  *zmqcontext.Context
	Resolver resolver.Resolver
	Sink     sink.EventSink
}

// SenderConstructor builds a Sender-role endpoint (Sender or Publisher).
type SenderConstructor func(Deps) ipm.Sender

// ReceiverConstructor builds a Receiver-role endpoint (Receiver or
// Subscriber).
type ReceiverConstructor func(Deps) ipm.Receiver

var (
	mu                sync.RWMutex
	senderPlugins     = map[string]SenderConstructor{}
	receiverPlugins   = map[string]ReceiverConstructor{}
	recommendedByRole = map[ipm.Role]string{}
)

// RegisterSender registers a named Sender-role constructor. Transport
// packages call this from an init() function (spec §4.5: "Each transport
// module registers itself by exporting a well-known construction
// symbol").
func RegisterSender(name string, ctor SenderConstructor) {
	mu.Lock()
	defer mu.Unlock()
	senderPlugins[name] = ctor
}

// RegisterReceiver registers a named Receiver-role constructor.
func RegisterReceiver(name string, ctor ReceiverConstructor) {
	mu.Lock()
	defer mu.Unlock()
	receiverPlugins[name] = ctor
}

// SetRecommended sets the default plugin name for a role.
func SetRecommended(role ipm.Role, name string) {
	mu.Lock()
	defer mu.Unlock()
	recommendedByRole[role] = name
}

// RecommendedPlugin returns the default plugin name for role, or "" if
// none was registered.
func RecommendedPlugin(role ipm.Role) string {
	mu.RLock()
	defer mu.RUnlock()
	return recommendedByRole[role]
}

// MakeIPMSender looks up name and constructs a Sender (spec §4.5:
// "make_ipm_sender(name)").
func MakeIPMSender(name string, deps Deps) (ipm.Sender, error) {
	mu.RLock()
	ctor, ok := senderPlugins[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sender plugin: %q", name)
	}
	return ctor(deps), nil
}

// MakeIPMReceiver looks up name and constructs a Receiver (spec §4.5:
// "make_ipm_receiver(name)").
func MakeIPMReceiver(name string, deps Deps) (ipm.Receiver, error) {
	mu.RLock()
	ctor, ok := receiverPlugins[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown receiver plugin: %q", name)
	}
	return ctor(deps), nil
}

// MakeIPMSubscriber looks up name and constructs a Subscriber (spec §4.5:
// "make_ipm_subscriber(name)"). Subscriber is receiver-shaped, so it
// shares the receiver registry.
func MakeIPMSubscriber(name string, deps Deps) (ipm.Subscriber, error) {
	r, err := MakeIPMReceiver(name, deps)
	if err != nil {
		return nil, err
	}
	sub, ok := r.(ipm.Subscriber)
	if !ok {
		return nil, fmt.Errorf("plugin %q does not implement Subscriber", name)
	}
	return sub, nil
}
