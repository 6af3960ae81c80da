package ddnsync

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/multierr"
)

// InterfaceResolver constructs a resolver that returns the first global unicast address reported by the given interfaces.
// If no interfaces are provided then all interfaces will be used.
// Loopback and link-local addresses are always skipped.
//
// This is only useful on hosts that hold their public address directly, e.g. most IPv6 setups.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	var addrs []net.Addr
	var errs error
	if len(r.ifaces) == 0 {
		a, err := net.InterfaceAddrs()
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: error getting interface addresses: %w", ErrResolution, err)
		}
		addrs = a
	}
	for _, ifs := range r.ifaces {
		iface, err := net.InterfaceByName(ifs)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error getting interface %s by name: %w", ifs, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", ifs, err))
			continue
		}
		addrs = append(addrs, a...)
	}

	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	for _, addr := range addrs {
		prefix, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error parsing local ip %s: %w", addr.String(), err))
			continue
		}
		ip := prefix.Addr().Unmap()
		if !ip.IsGlobalUnicast() {
			continue
		}
		return ip, nil
	}
	if errs != nil {
		return netip.Addr{}, fmt.Errorf("%w: no usable interface address: %w", ErrResolution, errs)
	}
	return netip.Addr{}, fmt.Errorf("%w: no usable interface address", ErrResolution)
}
