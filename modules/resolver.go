package modules

import (
	"context"

	"github.com/ruteri/quorum-wallet/serviceresolver"
)

// Resolver turns an SRV name into a host:port address.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// DNSResolver resolves SRV names against Nameserver, or the local stub
// resolver when empty.
type DNSResolver struct {
	Nameserver string
}

func (d DNSResolver) Resolve(ctx context.Context, name string) (string, error) {
	return serviceresolver.New(d.Nameserver).ResolveAddress(ctx, name)
}
