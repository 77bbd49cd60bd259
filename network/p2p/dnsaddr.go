// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

package p2p

import (
	"context"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"
)

// maxDnsaddrLookups bounds the TXT lookups made while expanding one
// bootstrap list.
const maxDnsaddrLookups = 32

var errTooManyLookups = errors.New("too many dnsaddr lookups")

// ParseMultiaddrs parses the configured bootstrap addresses. Entries are
// either /.../p2p/<id> addresses or /dnsaddr/<domain> names.
func ParseMultiaddrs(addrs []string) ([]multiaddr.Multiaddr, error) {
	mas := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			return nil, fmt.Errorf("bad peer address %q: %w", a, err)
		}
		if !isDnsaddr(ma) {
			if _, err := peer.AddrInfoFromP2pAddr(ma); err != nil {
				return nil, fmt.Errorf("bad peer address %q: %w", a, err)
			}
		}
		mas = append(mas, ma)
	}
	return mas, nil
}

func isDnsaddr(maddr multiaddr.Multiaddr) bool {
	first, _ := multiaddr.SplitFirst(maddr)
	return first != nil && first.Protocol().Code == multiaddr.P_DNSADDR
}

// ResolveAddrInfos expands the /dnsaddr entries of mas through resolver and
// merges the addresses of the same peer. The peers resolved before a lookup
// failure are returned along with the error.
func ResolveAddrInfos(ctx context.Context, resolver *madns.Resolver, mas []multiaddr.Multiaddr) ([]peer.AddrInfo, error) {
	var resolved, toResolve []multiaddr.Multiaddr
	for _, ma := range mas {
		if isDnsaddr(ma) {
			toResolve = append(toResolve, ma)
		} else {
			resolved = append(resolved, ma)
		}
	}

	var resolveErr error
	for lookups := 0; len(toResolve) > 0; lookups++ {
		if lookups == maxDnsaddrLookups {
			resolveErr = errTooManyLookups
			break
		}
		curr := toResolve[0]
		toResolve = toResolve[1:]
		maddrs, err := resolver.Resolve(ctx, curr)
		if err != nil {
			resolveErr = fmt.Errorf("resolving %s: %w", curr, err)
			continue
		}
		for _, maddr := range maddrs {
			if isDnsaddr(maddr) {
				toResolve = append(toResolve, maddr)
			} else {
				resolved = append(resolved, maddr)
			}
		}
	}

	infos, err := peer.AddrInfosFromP2pAddrs(resolved...)
	if err != nil {
		return nil, err
	}
	return infos, resolveErr
}
