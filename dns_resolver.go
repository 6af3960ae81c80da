package ddnsync

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

const (
	openDNSName       = "myip.opendns.com."
	openDNSResolverV4 = "208.67.222.222:53"
	openDNSResolverV6 = "[2620:119:35::35]:53"
)

// DNSResolver constructs a resolver that asks a DNS server which address the query came from,
// using the OpenDNS myip.opendns.com convention.
//
// server is a host:port pair; an empty server selects resolver1.opendns.com for the requested family.
// The query is sent over the same family as the answer it asks for,
// so ipv6 == true yields the host's public IPv6 address.
func DNSResolver(server string, ipv6 bool) Resolver {
	qtype := dns.TypeA
	if ipv6 {
		qtype = dns.TypeAAAA
	}
	if server == "" {
		server = openDNSResolverV4
		if ipv6 {
			server = openDNSResolverV6
		}
	}
	return &dnsResolver{
		server: server,
		name:   openDNSName,
		qtype:  qtype,
		client: &dns.Client{Timeout: 5 * time.Second},
	}
}

type dnsResolver struct {
	server string
	name   string
	qtype  uint16
	client *dns.Client
}

// Resolve implements ddnsync.Resolver.
func (r *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(r.name), r.qtype)
	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: querying %s for %s: %w", ErrResolution, r.server, r.name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("%w: %s answered %s", ErrResolution, r.server, dns.RcodeToString[in.Rcode])
	}
	for _, rr := range in.Answer {
		var raw []byte
		switch a := rr.(type) {
		case *dns.A:
			raw = a.A
		case *dns.AAAA:
			raw = a.AAAA
		default:
			continue
		}
		if ip, ok := netip.AddrFromSlice(raw); ok {
			return ip.Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s returned no address for %s", ErrResolution, r.server, r.name)
}
