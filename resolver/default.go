package resolver

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/kusanagi/ipm-go/ipm"
)

// Default returns the standard Resolver: inproc:// and ipc:// connection
// strings pass through unchanged (no network name to resolve); tcp://
// connection strings have their host component expanded via
// net.LookupHost, yielding one concrete tcp://ip:port per resolved
// address, in the order the resolver library returns them.
func Default() Resolver {
	return &defaultResolver{
		lookupHost: net.DefaultResolver.LookupHost,
		dnsClient:  &dns.Client{Timeout: 2 * time.Second},
	}
}

type defaultResolver struct {
	lookupHost func(ctx context.Context, host string) ([]string, error)
	dnsClient  *dns.Client
	// dnsServer is the resolver to query for SRV records; when empty,
	// each ResolveService call reads it from /etc/resolv.conf.
	dnsServer string
}

func (r *defaultResolver) Resolve(ctx context.Context, connectionString string) ([]string, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string %q: %w", connectionString, err)
	}

	switch u.Scheme {
	case "inproc", "ipc":
		// No network name to resolve: the string is already the concrete
		// endpoint.
		return []string{connectionString}, nil
	case "tcp":
		return r.resolveTCP(ctx, u)
	default:
		return nil, fmt.Errorf("unsupported connection string scheme: %q", u.Scheme)
	}
}

func (r *defaultResolver) resolveTCP(ctx context.Context, u *url.URL) ([]string, error) {
	host := u.Hostname()
	port := u.Port()

	// Binders may legitimately request the wildcard host; there is
	// nothing to resolve.
	if host == "" || host == "*" || host == "0.0.0.0" || net.ParseIP(host) != nil {
		return []string{u.String()}, nil
	}

	addrs, err := r.lookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, &ipm.NameNotFoundError{Name: host}
	}

	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, fmt.Sprintf("tcp://%s", net.JoinHostPort(addr, port)))
	}
	return out, nil
}

// ResolveService resolves a KUSANAGI-style service_name through DNS-SRV,
// returning a single tcp:// connection string built from the
// highest-priority (lowest Priority value) target; among records of equal
// priority the first in the answer wins, and weights are not considered
// (spec §6: "used in place of connection_string for a Publisher").
func (r *defaultResolver) ResolveService(ctx context.Context, name string) (string, error) {
	server := r.dnsServer
	if server == "" {
		server = systemResolverAddr()
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	m.RecursionDesired = true

	in, _, err := r.dnsClient.ExchangeContext(ctx, m, server)
	if err != nil {
		return "", &ipm.ServiceNotFoundError{Name: name}
	}

	var best *dns.SRV
	for _, rr := range in.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		if best == nil || srv.Priority < best.Priority {
			best = srv
		}
	}
	if best == nil {
		return "", &ipm.ServiceNotFoundError{Name: name}
	}

	target := strings.TrimSuffix(best.Target, ".")
	return fmt.Sprintf("tcp://%s:%d", target, best.Port), nil
}

// systemResolverAddr returns a best-effort "host:port" for the system's
// configured DNS resolver. Tests inject a fake dnsServer instead of
// relying on this.
func systemResolverAddr() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return "127.0.0.1:53"
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}
