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
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/osrg/lookingglass/pkg/log"
)

// WinningWeight tells whether the lowest or the highest weight wins on the
// device that produced a table.
type WinningWeight string

const (
	WINNING_WEIGHT_LOW  WinningWeight = "low"
	WINNING_WEIGHT_HIGH WinningWeight = "high"
)

func ParseWinningWeight(s string) (WinningWeight, error) {
	switch WinningWeight(s) {
	case WINNING_WEIGHT_LOW, WINNING_WEIGHT_HIGH:
		return WinningWeight(s), nil
	}
	return "", fmt.Errorf("invalid winning weight %q (low|high)", s)
}

// RawTable is the device response for one VRF before validation. A nil
// Count means the count is taken from the routes.
type RawTable struct {
	VRF           string
	Count         *int
	Routes        []RawRoute
	WinningWeight string
}

// RouteTable holds the routes of one VRF sorted by their prefix string.
//
// A RouteTable is not safe for concurrent mutation. Merge into an
// accumulating table from a single goroutine.
type RouteTable struct {
	VRF           string        `json:"vrf"`
	Count         int           `json:"count"`
	Routes        []Route       `json:"routes"`
	WinningWeight WinningWeight `json:"winning_weight"`
}

// sortRoutes orders routes by the textual form of the prefix, so
// "192.0.2.0/24" sorts before "20.0.0.0/8". Equal prefixes keep their
// relative order.
func sortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Prefix < routes[j].Prefix
	})
}

// NewRouteTable builds a table from already validated routes. routes is
// copied.
func NewRouteTable(vrf string, routes []Route, ww WinningWeight) *RouteTable {
	l := make([]Route, len(routes))
	copy(l, routes)
	sortRoutes(l)
	return &RouteTable{
		VRF:           vrf,
		Count:         len(l),
		Routes:        l,
		WinningWeight: ww,
	}
}

// Merge appends the routes of other to t, sorts the union and updates the
// count. t is modified and returned; a nil other leaves t untouched.
func (t *RouteTable) Merge(other *RouteTable) *RouteTable {
	if other == nil {
		return t
	}
	t.Routes = append(t.Routes, other.Routes...)
	sortRoutes(t.Routes)
	t.Count = len(t.Routes)
	return t
}

// Merge returns a new table holding the routes of a followed by those of b.
// VRF and winning weight come from a, or from b when a is nil. Neither
// argument is modified.
func Merge(a, b *RouteTable) *RouteTable {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		a = &RouteTable{VRF: b.VRF, WinningWeight: b.WinningWeight}
	}
	c := *a
	c.Routes = make([]Route, 0, len(a.Routes)+routeLen(b))
	c.Routes = append(c.Routes, a.Routes...)
	return c.Merge(b)
}

func routeLen(t *RouteTable) int {
	if t == nil {
		return 0
	}
	return len(t.Routes)
}

func (b *Builder) newRouteTable(ctx context.Context, raw *RawTable) (*RouteTable, error) {
	ww, err := ParseWinningWeight(raw.WinningWeight)
	if err != nil {
		return nil, newValidationError("winning_weight", "%s", err)
	}
	if raw.Count != nil && *raw.Count < 0 {
		return nil, newValidationError("count", "must not be negative, got %d", *raw.Count)
	}

	routes := make([]Route, 0, len(raw.Routes))
	for i, rr := range raw.Routes {
		r, err := parseRoute(rr)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Route = i
			}
			return nil, err
		}
		routes = append(routes, *r)
	}
	// every route is structurally valid before any lookup is made
	for i := range routes {
		b.enrich(ctx, &routes[i])
		b.metrics.RouteBuilt()
	}

	t := NewRouteTable(raw.VRF, routes, ww)
	if raw.Count != nil {
		t.Count = *raw.Count
	}
	return t, nil
}

// NewRouteTable validates raw and builds a sorted table from it. The first
// structural error fails the whole table.
func (b *Builder) NewRouteTable(ctx context.Context, raw *RawTable) (*RouteTable, error) {
	if raw == nil {
		return nil, newValidationError("routes", "no table")
	}
	t, err := b.newRouteTable(ctx, raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.VRF = raw.VRF
		}
		b.metrics.TableFailed()
		b.logger.Debug("route table rejected",
			log.Fields{
				"Topic": "table",
				"VRF":   raw.VRF,
				"Error": err,
			})
		return nil, err
	}
	b.metrics.TableBuilt()
	b.logger.Debug("route table built",
		log.Fields{
			"Topic":  "table",
			"VRF":    t.VRF,
			"Routes": len(t.Routes),
		})
	return t, nil
}
