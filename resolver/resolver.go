// IPM — inter-process messaging core library.
// Copyright (c) 2018-2026 IPM contributors. All rights reserved.
//
// Distributed under the MIT license.
//
// For the full copyright and license information, please view the LICENSE
// file that was distributed with this source code.

// Package resolver expands a logical connection string into one or more
// concrete transport endpoints. The interface is consumed by
// ipm/zmqtransport and by spec §1 is explicitly an external collaborator —
// this package provides the default, non-mocked implementation.
package resolver

import "context"

// Resolver expands a URI-like connection string into the ordered sequence
// of concrete endpoints to attempt bind/connect against (spec §3, "Resolved
// Endpoint Set"). The default resolver never returns an empty, error-free
// result: a host lookup with no addresses is reported as
// ipm.NameNotFoundError. A single-endpoint connect that does receive an
// empty result fails with ipm.ErrNoResolvedEndpoints.
type Resolver interface {
	Resolve(ctx context.Context, connectionString string) ([]string, error)
}

// ServiceResolver additionally resolves a KUSANAGI-style service name via
// DNS-SRV, used by a Publisher's service_name configuration key (spec §6).
type ServiceResolver interface {
	ResolveService(ctx context.Context, name string) (string, error)
}
