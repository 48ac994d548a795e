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
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osrg/lookingglass/internal/pkg/metrics"
	"github.com/osrg/lookingglass/pkg/log"
	"github.com/osrg/lookingglass/pkg/rpki"
)

func prefixes(t *RouteTable) []string {
	l := make([]string, 0, len(t.Routes))
	for _, r := range t.Routes {
		l = append(l, r.Prefix)
	}
	return l
}

func routesFor(nextHop string, prefixes ...string) []Route {
	l := make([]Route, 0, len(prefixes))
	for _, p := range prefixes {
		l = append(l, Route{Prefix: p, NextHop: nextHop, AsPath: []int{}, Communities: []string{}})
	}
	return l
}

func TestRouteTableSort(t *testing.T) {
	tbl := NewRouteTable("default", routesFor("a", "192.0.2.0/24", "10.0.0.0/8", "172.16.0.0/12"), WINNING_WEIGHT_HIGH)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12", "192.0.2.0/24"}, prefixes(tbl))
	assert.Equal(t, 3, tbl.Count)
}

func TestRouteTableSortIsTextual(t *testing.T) {
	tbl := NewRouteTable("default", routesFor("a", "9.0.0.0/8", "20.0.0.0/8", "192.0.2.0/24", "2001:db8::/32", "10.0.0.0/16", "10.0.0.0/8"), WINNING_WEIGHT_LOW)
	// numeric order would put 9.0.0.0/8 first
	assert.Equal(t, []string{"10.0.0.0/16", "10.0.0.0/8", "192.0.2.0/24", "20.0.0.0/8", "2001:db8::/32", "9.0.0.0/8"}, prefixes(tbl))
}

func TestRouteTableSortIsStable(t *testing.T) {
	routes := append(routesFor("1", "10.0.0.0/8", "1.0.0.0/24"), routesFor("2", "10.0.0.0/8", "1.0.0.0/24")...)
	tbl := NewRouteTable("default", routes, WINNING_WEIGHT_LOW)
	got := make([]string, 0, len(tbl.Routes))
	for _, r := range tbl.Routes {
		got = append(got, r.Prefix+"@"+r.NextHop)
	}
	assert.Equal(t, []string{"1.0.0.0/24@1", "1.0.0.0/24@2", "10.0.0.0/8@1", "10.0.0.0/8@2"}, got)
	// input untouched
	assert.Equal(t, "10.0.0.0/8", routes[0].Prefix)
}

func TestRouteTableMerge(t *testing.T) {
	a := NewRouteTable("default", routesFor("a", "10.0.0.0/8", "192.0.2.0/24"), WINNING_WEIGHT_HIGH)
	b := NewRouteTable("default", routesFor("b", "172.16.0.0/12", "10.0.0.0/8", "1.1.1.0/24"), WINNING_WEIGHT_HIGH)

	m := a.Merge(b)
	assert.Same(t, a, m)
	assert.Equal(t, 5, m.Count)
	assert.Len(t, m.Routes, 5)
	assert.Equal(t, []string{"1.1.1.0/24", "10.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.0.2.0/24"}, prefixes(m))
	// a's route first on ties
	assert.Equal(t, "a", m.Routes[1].NextHop)
	assert.Equal(t, "b", m.Routes[2].NextHop)
	// b untouched
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, []string{"1.1.1.0/24", "10.0.0.0/8", "172.16.0.0/12"}, prefixes(b))
}

func TestRouteTableMergeEmpty(t *testing.T) {
	a := NewRouteTable("default", routesFor("a", "192.0.2.0/24", "10.0.0.0/8"), WINNING_WEIGHT_HIGH)
	before := prefixes(a)

	a.Merge(NewRouteTable("default", nil, WINNING_WEIGHT_HIGH))
	assert.Equal(t, before, prefixes(a))
	assert.Equal(t, 2, a.Count)

	assert.Same(t, a, a.Merge(nil))
	assert.Equal(t, 2, a.Count)
}

func TestRouteTableMergeFixesCount(t *testing.T) {
	a := NewRouteTable("default", routesFor("a", "192.0.2.0/24"), WINNING_WEIGHT_HIGH)
	a.Count = 42
	a.Merge(&RouteTable{})
	assert.Equal(t, 1, a.Count)
}

func TestRouteTableMergeFold(t *testing.T) {
	acc := NewRouteTable("default", nil, WINNING_WEIGHT_LOW)
	for _, nh := range []string{"x", "y", "z"} {
		acc = acc.Merge(NewRouteTable("default", routesFor(nh, "10.0.0.0/8", "1.0.0.0/24"), WINNING_WEIGHT_LOW))
	}
	assert.Equal(t, 6, acc.Count)
	got := make([]string, 0, len(acc.Routes))
	for _, r := range acc.Routes {
		got = append(got, r.NextHop)
	}
	assert.Equal(t, []string{"x", "y", "z", "x", "y", "z"}, got)
}

func TestMergePure(t *testing.T) {
	a := NewRouteTable("blue", routesFor("a", "192.0.2.0/24", "10.0.0.0/8"), WINNING_WEIGHT_LOW)
	b := NewRouteTable("red", routesFor("b", "1.1.1.0/24", "10.0.0.0/8", "172.16.0.0/12"), WINNING_WEIGHT_HIGH)

	c := Merge(a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "blue", c.VRF)
	assert.Equal(t, WINNING_WEIGHT_LOW, c.WinningWeight)
	assert.Equal(t, 5, c.Count)
	assert.Equal(t, []string{"1.1.1.0/24", "10.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.0.2.0/24"}, prefixes(c))
	assert.Equal(t, "a", c.Routes[1].NextHop)

	assert.Equal(t, 2, a.Count)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.0/24"}, prefixes(a))
	assert.Equal(t, 3, b.Count)

	// content is the same either way round, identity is not
	d := Merge(b, a)
	assert.ElementsMatch(t, prefixes(c), prefixes(d))
	assert.Equal(t, "b", d.Routes[1].NextHop)
}

func TestMergePureNil(t *testing.T) {
	assert.Nil(t, Merge(nil, nil))

	b := NewRouteTable("red", routesFor("b", "10.0.0.0/8"), WINNING_WEIGHT_HIGH)
	c := Merge(nil, b)
	assert.NotSame(t, b, c)
	assert.Equal(t, "red", c.VRF)
	assert.Equal(t, 1, c.Count)

	c.Routes[0].NextHop = "changed"
	assert.Equal(t, "b", b.Routes[0].NextHop)

	d := Merge(b, nil)
	assert.NotSame(t, b, d)
	if diff := cmp.Diff(b, d); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderNewRouteTable(t *testing.T) {
	b := testBuilder(t, COMMUNITY_MODE_PERMIT, []string{"174:"}, nil)
	raw := &RawTable{
		VRF:           "default",
		WinningWeight: "low",
		Routes: []RawRoute{
			rawRoute("192.0.2.0/24"),
			rawRoute("10.0.0.0/8"),
			rawRoute("172.16.0.0/12"),
		},
	}
	tbl, err := b.NewRouteTable(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "default", tbl.VRF)
	assert.Equal(t, WINNING_WEIGHT_LOW, tbl.WinningWeight)
	assert.Equal(t, 3, tbl.Count)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12", "192.0.2.0/24"}, prefixes(tbl))
	for _, r := range tbl.Routes {
		assert.Equal(t, []string{"174:21000"}, r.Communities)
	}
}

func TestBuilderNewRouteTableCount(t *testing.T) {
	b := testBuilder(t, COMMUNITY_MODE_DENY, nil, nil)
	count := 10
	raw := &RawTable{
		VRF:           "default",
		Count:         &count,
		WinningWeight: "high",
		Routes:        []RawRoute{rawRoute("10.0.0.0/8")},
	}
	tbl, err := b.NewRouteTable(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 10, tbl.Count)

	// a merge brings the count back in line
	tbl.Merge(NewRouteTable("default", nil, WINNING_WEIGHT_HIGH))
	assert.Equal(t, 1, tbl.Count)

	count = -1
	_, err = b.NewRouteTable(context.Background(), raw)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestBuilderNewRouteTableEmpty(t *testing.T) {
	b := testBuilder(t, COMMUNITY_MODE_DENY, nil, nil)
	tbl, err := b.NewRouteTable(context.Background(), &RawTable{VRF: "default", WinningWeight: "high"})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Count)
	assert.NotNil(t, tbl.Routes)
}

func TestBuilderNewRouteTableInvalid(t *testing.T) {
	logger := log.NewTestLogger()
	rec := metrics.NewRecorder()
	var lookups int32
	v := rpki.ValidatorFunc(func(context.Context, string, int) rpki.ValidationState {
		atomic.AddInt32(&lookups, 1)
		return rpki.VALIDATION_STATE_VALID
	})
	resolver, err := NewRpkiResolver(RPKI_MODE_EXTERNAL, v, logger)
	require.NoError(t, err)
	b := testBuilder(t, COMMUNITY_MODE_DENY, nil, resolver, WithLogger(logger), WithMetrics(rec))

	bad := rawRoute("1.0.0.0/24")
	bad["med"] = "0"
	raw := &RawTable{
		VRF:           "blue",
		WinningWeight: "high",
		Routes:        []RawRoute{rawRoute("1.1.1.0/24"), bad, rawRoute("8.8.8.0/24")},
	}
	tbl, err := b.NewRouteTable(context.Background(), raw)
	assert.Nil(t, tbl)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "blue", verr.VRF)
	assert.Equal(t, 1, verr.Route)
	assert.Equal(t, "med", verr.Field)
	assert.Equal(t, `vrf "blue" route 1 field "med": expected integer, got string`, err.Error())
	// nothing is looked up for a table that fails validation
	assert.Equal(t, int32(0), atomic.LoadInt32(&lookups))
	assert.Equal(t, 1, logger.Count(log.DebugLevel))
}

func TestBuilderNewRouteTableWinningWeight(t *testing.T) {
	b := testBuilder(t, COMMUNITY_MODE_DENY, nil, nil)
	for _, ww := range []string{"", "medium", "LOW"} {
		_, err := b.NewRouteTable(context.Background(), &RawTable{VRF: "default", WinningWeight: ww})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), ww)
		assert.Equal(t, "winning_weight", verr.Field)
		assert.Equal(t, -1, verr.Route)
	}

	_, err := b.NewRouteTable(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestBuilderConcurrentTables(t *testing.T) {
	var lookups int32
	v := rpki.ValidatorFunc(func(context.Context, string, int) rpki.ValidationState {
		atomic.AddInt32(&lookups, 1)
		return rpki.VALIDATION_STATE_VALID
	})
	resolver, err := NewRpkiResolver(RPKI_MODE_EXTERNAL, v, log.NewTestLogger())
	require.NoError(t, err)
	b := testBuilder(t, COMMUNITY_MODE_DENY, []string{"65:"}, resolver, WithMetrics(metrics.NewRecorder()))

	const n = 16
	results := make(chan *RouteTable, n)
	for i := 0; i < n; i++ {
		go func() {
			tbl, err := b.NewRouteTable(context.Background(), &RawTable{
				VRF:           "default",
				WinningWeight: "high",
				Routes:        []RawRoute{rawRoute("1.1.1.0/24"), rawRoute("10.0.0.0/8")},
			})
			if err != nil {
				results <- nil
				return
			}
			results <- tbl
		}()
	}
	acc := NewRouteTable("default", nil, WINNING_WEIGHT_HIGH)
	for i := 0; i < n; i++ {
		tbl := <-results
		require.NotNil(t, tbl)
		acc.Merge(tbl)
	}
	assert.Equal(t, 2*n, acc.Count)
	// private prefixes are never looked up
	assert.Equal(t, int32(n), atomic.LoadInt32(&lookups))
}
