package urlguard

import (
	"context"
	"errors"
	"net"
	"net/netip"
)

// ErrNoRecords means the name exists (or not) but has no address of the asked family.
var ErrNoRecords = errors.New("urlguard: no records")

// Resolver looks up the A and AAAA record sets of a host independently.
type Resolver interface {
	LookupA(ctx context.Context, host string) ([]netip.Addr, error)
	LookupAAAA(ctx context.Context, host string) ([]netip.Addr, error)
}

type netResolver struct {
	r *net.Resolver
}

// NewNetResolver adapts a *net.Resolver; nil selects net.DefaultResolver.
func NewNetResolver(r *net.Resolver) Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &netResolver{r: r}
}

func (n *netResolver) LookupA(ctx context.Context, host string) ([]netip.Addr, error) {
	return n.lookup(ctx, "ip4", host)
}

func (n *netResolver) LookupAAAA(ctx context.Context, host string) ([]netip.Addr, error) {
	return n.lookup(ctx, "ip6", host)
}

func (n *netResolver) lookup(ctx context.Context, network, host string) ([]netip.Addr, error) {
	addrs, err := n.r.LookupNetIP(ctx, network, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, ErrNoRecords
		}
		return nil, err
	}
	return addrs, nil
}
