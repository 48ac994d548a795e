// Copyright (C) 2025 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// IANA special purpose ranges that are not globally reachable.
var nonGlobalPrefixes = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"240.0.0.0/4",
	"255.255.255.255/32",

	"::/128",
	"::1/128",
	"::ffff:0:0/96",
	"64:ff9b:1::/48",
	"100::/64",
	"2001::/23",
	"2001:db8::/32",
	"2002::/16",
	"3fff::/20",
	"fc00::/7",
	"fe80::/10",
}

// globally reachable carve-outs of the ranges above
var globalExceptions = []string{
	"192.0.0.9/32",
	"192.0.0.10/32",
	"2001:1::1/128",
	"2001:1::2/128",
	"2001:3::/32",
	"2001:4:112::/48",
	"2001:20::/28",
	"2001:30::/28",
}

var nonGlobal = mustParsePrefixes(nonGlobalPrefixes)

var exceptions = func() *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, p := range mustParsePrefixes(globalExceptions) {
		b.AddPrefix(p)
	}
	set, err := b.IPSet()
	if err != nil {
		panic(err)
	}
	return set
}()

func mustParsePrefixes(l []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(l))
	for _, s := range l {
		prefixes = append(prefixes, netip.MustParsePrefix(s))
	}
	return prefixes
}

// parseNetwork parses a network the way route prefixes are written: CIDR
// with no host bits set, or a bare address meaning a host route.
func parseNetwork(s string) (netip.Prefix, error) {
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		if addr.Zone() != "" {
			return netip.Prefix{}, fmt.Errorf("%s: zone not allowed", s)
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if p != p.Masked() {
		return netip.Prefix{}, fmt.Errorf("%s has host bits set", s)
	}
	return p, nil
}

// isGlobal reports whether p is globally routable. A network is not global
// when a single special purpose range holds both its first and its last
// address and neither of them is one of the exceptions.
func isGlobal(p netip.Prefix) bool {
	first, last := p.Addr(), netipx.PrefixLastIP(p)
	if exceptions.Contains(first) || exceptions.Contains(last) {
		return true
	}
	for _, n := range nonGlobal {
		if n.Contains(first) && n.Contains(last) {
			return false
		}
	}
	return true
}
