package agent

import (
	"context"
	"fmt"
	"net"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"
)

// Identity is what the agent learns about itself once at startup.
type Identity struct {
	Host  string // constellation hostname
	Addr  string // IPv4 used as --src-network
	Iface string // interface carrying Addr
}

// AddrLookup resolves a hostname to one IPv4 address.
type AddrLookup func(ctx context.Context, host string) (string, error)

// InterfaceLister enumerates local interfaces with their addresses.
type InterfaceLister func(ctx context.Context) ([]gnet.InterfaceStat, error)

// LookupIPv4 is the DNS-backed AddrLookup.
func LookupIPv4(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return ip.String(), nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address for %s", host)
}

// SystemInterfaces lists interfaces through gopsutil.
func SystemInterfaces(ctx context.Context) ([]gnet.InterfaceStat, error) {
	return gnet.InterfacesWithContext(ctx)
}

// ResolveIdentity maps host to its address and the interface that owns it.
func ResolveIdentity(ctx context.Context, host string, aliases Aliases, lookup AddrLookup, ifaces InterfaceLister) (Identity, error) {
	addr, err := lookup(ctx, aliases.Resolve(host))
	if err != nil {
		return Identity{}, fmt.Errorf("cannot resolve hostname %s: %w", host, err)
	}
	list, err := ifaces(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("list interfaces: %w", err)
	}
	for _, ifc := range list {
		for _, a := range ifc.Addrs {
			if stripPrefix(a.Addr) == addr {
				return Identity{Host: host, Addr: addr, Iface: ifc.Name}, nil
			}
		}
	}
	return Identity{}, fmt.Errorf("cannot find interface of %s", addr)
}

// stripPrefix turns "10.0.1.2/16" into "10.0.1.2".
func stripPrefix(cidr string) string {
	if i := strings.IndexByte(cidr, '/'); i >= 0 {
		return cidr[:i]
	}
	return cidr
}
