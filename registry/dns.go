package registry

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// DefaultResolver is the local stub resolver.
const DefaultResolver = "127.0.0.53:53"

// DNSDiscovery discovers nodes from the SRV records of _lit._tcp.<Domain>. Targets are
// resolved with the additional section of the answer, falling back to A queries.
type DNSDiscovery struct {
	Domain string

	// Resolver is the host:port of the DNS server. Defaults to DefaultResolver.
	Resolver string

	// MinNodeCount is the smallest acceptable node set.
	MinNodeCount int

	client *dns.Client
}

func (d *DNSDiscovery) resolver() string {
	if d.Resolver == "" {
		return DefaultResolver
	}
	return d.Resolver
}

func (d *DNSDiscovery) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	c := d.client
	if c == nil {
		c = new(dns.Client)
	}
	in, _, err := c.ExchangeContext(ctx, m, d.resolver())
	if err != nil {
		return nil, err
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s: %s", name, dns.RcodeToString[in.Rcode])
	}
	return in, nil
}

// DiscoverValidators implements interfaces.ValidatorDiscovery.
func (d *DNSDiscovery) DiscoverValidators(ctx context.Context, protocol string) (*interfaces.ValidatorSet, error) {
	if d.Domain == "" {
		return nil, interfaces.ConfigError("dns discovery requires a domain")
	}

	in, err := d.exchange(ctx, "_lit._tcp."+d.Domain, dns.TypeSRV)
	if err != nil {
		return nil, interfaces.NetworkError("srv lookup failed: %w", err)
	}

	glue := map[string]string{}
	for _, rr := range in.Extra {
		if a, ok := rr.(*dns.A); ok {
			glue[strings.ToLower(a.Hdr.Name)] = a.A.String()
		}
	}

	var urls []string
	for _, answer := range in.Answer {
		srv, ok := answer.(*dns.SRV)
		if !ok {
			continue
		}

		host, ok := glue[strings.ToLower(srv.Target)]
		if !ok {
			host, err = d.lookupA(ctx, srv.Target)
			if err != nil {
				continue
			}
		}
		urls = append(urls, fmt.Sprintf("%s%s", protocol, net.JoinHostPort(host, fmt.Sprint(srv.Port))))
	}
	urls = sortedUnique(urls)

	minNodes := max(1, d.MinNodeCount)
	if len(urls) < minNodes {
		return nil, interfaces.NetworkError("validator set below minNodeCount: min=%d got=%d", minNodes, len(urls))
	}
	return &interfaces.ValidatorSet{MinNodeCount: minNodes, URLs: urls}, nil
}

func (d *DNSDiscovery) lookupA(ctx context.Context, target string) (string, error) {
	in, err := d.exchange(ctx, target, dns.TypeA)
	if err != nil {
		return "", err
	}
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("%s: no A record", target)
}
