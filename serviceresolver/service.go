package serviceresolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// DefaultNameserver is the local stub resolver.
const DefaultNameserver = "127.0.0.53:53"

// ErrNoRecords is returned when a name has no SRV answers.
var ErrNoRecords = errors.New("no SRV records found")

// Target is one SRV answer.
type Target struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// Address returns host:port with the trailing root dot stripped.
func (t Target) Address() string {
	return net.JoinHostPort(strings.TrimSuffix(t.Host, "."), strconv.Itoa(int(t.Port)))
}

// Resolver looks up SRV records against a single nameserver.
type Resolver struct {
	Nameserver string
	client     *dns.Client
}

// New creates a resolver querying nameserver, or DefaultNameserver if empty.
func New(nameserver string) *Resolver {
	if nameserver == "" {
		nameserver = DefaultNameserver
	}
	return &Resolver{Nameserver: nameserver, client: new(dns.Client)}
}

// LookupSRV resolves name to its SRV targets ordered by priority, then by
// descending weight.
func (r *Resolver) LookupSRV(ctx context.Context, name string) ([]Target, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.Nameserver)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup of %s failed: %w", name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("SRV lookup of %s failed: %s", name, dns.RcodeToString[in.Rcode])
	}

	targets := make([]Target, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			targets = append(targets, Target{
				Host:     srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoRecords, name)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority < targets[j].Priority
		}
		return targets[i].Weight > targets[j].Weight
	})
	return targets, nil
}

// ResolveAddress returns the preferred target of name as host:port.
func (r *Resolver) ResolveAddress(ctx context.Context, name string) (string, error) {
	targets, err := r.LookupSRV(ctx, name)
	if err != nil {
		return "", err
	}
	return targets[0].Address(), nil
}
