package zmqtransport

import (
	"github.com/kusanagi/ipm-go/ipm"
	"github.com/kusanagi/ipm-go/registry"
)

// Plugin names recognized by the factory (spec §4.5, §6).
const (
	PluginSender     = "ZmqSender"
	PluginReceiver   = "ZmqReceiver"
	PluginPublisher  = "ZmqPublisher"
	PluginSubscriber = "ZmqSubscriber"
)

func init() {
	registry.RegisterSender(PluginSender, func(d registry.Deps) ipm.Sender {
		return NewSender(d.Context, d.Resolver, d.Sink)
	})
	registry.RegisterSender(PluginPublisher, func(d registry.Deps) ipm.Sender {
		return NewPublisher(d.Context, d.Resolver, d.Sink)
	})
	registry.RegisterReceiver(PluginReceiver, func(d registry.Deps) ipm.Receiver {
		return NewReceiver(d.Context, d.Resolver, d.Sink)
	})
	registry.RegisterReceiver(PluginSubscriber, func(d registry.Deps) ipm.Receiver {
		return NewSubscriber(d.Context, d.Resolver, d.Sink)
	})

	registry.SetRecommended(ipm.RoleSender, PluginSender)
	registry.SetRecommended(ipm.RoleReceiver, PluginReceiver)
	registry.SetRecommended(ipm.RolePublisher, PluginPublisher)
	registry.SetRecommended(ipm.RoleSubscriber, PluginSubscriber)
}
