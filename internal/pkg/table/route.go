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
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/osrg/lookingglass/internal/pkg/metrics"
	"github.com/osrg/lookingglass/pkg/log"
	"github.com/osrg/lookingglass/pkg/rpki"
)

// RawRoute is one route as produced by a device output parser. Numbers
// must be Go integers or json.Number holding an integer.
type RawRoute map[string]interface{}

// Route is a validated BGP route. Routes are values: once built they are
// never modified, copies may share the AsPath and Communities backing
// arrays.
type Route struct {
	Prefix          string               `json:"prefix"`
	Active          bool                 `json:"active"`
	Age             int                  `json:"age"`
	Weight          int                  `json:"weight"`
	Med             int                  `json:"med"`
	LocalPreference int                  `json:"local_preference"`
	AsPath          []int                `json:"as_path"`
	Communities     []string             `json:"communities"`
	NextHop         string               `json:"next_hop"`
	SourceAs        int                  `json:"source_as"`
	SourceRid       string               `json:"source_rid"`
	PeerRid         string               `json:"peer_rid"`
	RpkiState       rpki.ValidationState `json:"rpki_state"`
}

// IsInternal reports whether the route was originated inside the local AS.
func (r *Route) IsInternal() bool {
	return len(r.AsPath) == 0
}

// OriginAs returns the last AS of the path, or false for internal routes.
func (r *Route) OriginAs() (int, bool) {
	if r.IsInternal() {
		return 0, false
	}
	return r.AsPath[len(r.AsPath)-1], true
}

func kindOf(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if _, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return "integer"
		}
		return "number"
	case float32, float64:
		return "number"
	case map[string]interface{}, RawRoute:
		return "object"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Slice, reflect.Array:
		return "list"
	}
	return fmt.Sprintf("%T", v)
}

// strictInt accepts integers only. Booleans, floats and numeric strings
// are rejected even when they would convert without loss.
func strictInt(v interface{}) (int, bool) {
	var i64 int64
	switch n := v.(type) {
	case json.Number:
		x, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, false
		}
		i64 = x
	case int:
		return n, true
	case int8:
		i64 = int64(n)
	case int16:
		i64 = int64(n)
	case int32:
		i64 = int64(n)
	case int64:
		i64 = n
	case uint8:
		i64 = int64(n)
	case uint16:
		i64 = int64(n)
	case uint32:
		i64 = int64(n)
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		i64 = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		i64 = int64(n)
	default:
		return 0, false
	}
	if i64 < math.MinInt || i64 > math.MaxInt {
		return 0, false
	}
	return int(i64), true
}

// fieldReader pulls typed fields out of a RawRoute and remembers the first
// failure; later reads are no-ops once a field has failed.
type fieldReader struct {
	raw RawRoute
	err *ValidationError
}

func (f *fieldReader) get(name string) (interface{}, bool) {
	if f.err != nil {
		return nil, false
	}
	v, ok := f.raw[name]
	if !ok {
		f.err = newValidationError(name, "field required")
		return nil, false
	}
	return v, true
}

func (f *fieldReader) fail(name, expected string, v interface{}) {
	f.err = newValidationError(name, "expected %s, got %s", expected, kindOf(v))
}

func (f *fieldReader) getString(name string) string {
	v, ok := f.get(name)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(name, "string", v)
	}
	return s
}

func (f *fieldReader) getBool(name string) bool {
	v, ok := f.get(name)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		f.fail(name, "boolean", v)
	}
	return b
}

func (f *fieldReader) getInt(name string) int {
	v, ok := f.get(name)
	if !ok {
		return 0
	}
	i, ok := strictInt(v)
	if !ok {
		f.fail(name, "integer", v)
	}
	return i
}

func (f *fieldReader) getList(name string) []interface{} {
	v, ok := f.get(name)
	if !ok {
		return nil
	}
	if l, ok := v.([]interface{}); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		f.fail(name, "list", v)
		return nil
	}
	l := make([]interface{}, rv.Len())
	for i := range l {
		l[i] = rv.Index(i).Interface()
	}
	return l
}

func (f *fieldReader) getIntList(name string) []int {
	items := f.getList(name)
	if f.err != nil {
		return nil
	}
	l := make([]int, 0, len(items))
	for i, v := range items {
		n, ok := strictInt(v)
		if !ok {
			f.err = newValidationError(name, "item %d: expected integer, got %s", i, kindOf(v))
			return nil
		}
		l = append(l, n)
	}
	return l
}

func (f *fieldReader) getStringList(name string) []string {
	items := f.getList(name)
	if f.err != nil {
		return nil
	}
	l := make([]string, 0, len(items))
	for i, v := range items {
		s, ok := v.(string)
		if !ok {
			f.err = newValidationError(name, "item %d: expected string, got %s", i, kindOf(v))
			return nil
		}
		l = append(l, s)
	}
	return l
}

// parseRoute is the structural phase of route construction. The result
// still carries the unfiltered communities and the device RPKI state.
func parseRoute(raw RawRoute) (*Route, error) {
	f := &fieldReader{raw: raw}
	r := &Route{
		Prefix:          f.getString("prefix"),
		Active:          f.getBool("active"),
		Age:             f.getInt("age"),
		Weight:          f.getInt("weight"),
		Med:             f.getInt("med"),
		LocalPreference: f.getInt("local_preference"),
		AsPath:          f.getIntList("as_path"),
		Communities:     f.getStringList("communities"),
		NextHop:         f.getString("next_hop"),
		SourceAs:        f.getInt("source_as"),
		SourceRid:       f.getString("source_rid"),
		PeerRid:         f.getString("peer_rid"),
		RpkiState:       rpki.ValidationState(f.getInt("rpki_state")),
	}
	if f.err != nil {
		return nil, f.err
	}
	if r.Age < 0 {
		return nil, newValidationError("age", "must not be negative, got %d", r.Age)
	}
	if !r.RpkiState.IsDefined() {
		return nil, newValidationError("rpki_state", "unknown state %d", int(r.RpkiState))
	}
	return r, nil
}

type BuilderOption func(*Builder)

func WithLogger(l log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

func WithMetrics(r *metrics.Recorder) BuilderOption {
	return func(b *Builder) {
		b.metrics = r
	}
}

// Builder turns raw device responses into route tables. A Builder holds no
// per-build state and may be shared by concurrent builds.
type Builder struct {
	communities *CommunityPolicy
	rpki        *RpkiResolver
	logger      log.Logger
	metrics     *metrics.Recorder
}

func NewBuilder(communities *CommunityPolicy, resolver *RpkiResolver, opts ...BuilderOption) *Builder {
	b := &Builder{
		communities: communities,
		rpki:        resolver,
		logger:      log.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.communities == nil {
		// deny nothing
		b.communities, _ = NewCommunityPolicy(COMMUNITY_MODE_DENY, nil)
	}
	if b.rpki == nil {
		b.rpki, _ = NewRpkiResolver(RPKI_MODE_DISABLED, nil, b.logger)
	}
	return b
}

// enrich is the second phase of route construction. It may read any field
// set by parseRoute.
func (b *Builder) enrich(ctx context.Context, r *Route) {
	filtered := b.communities.Filter(r.Communities)
	b.metrics.CommunitiesDropped(len(r.Communities) - len(filtered))
	r.Communities = filtered

	r.RpkiState = b.rpki.Resolve(ctx, r.Prefix, r.AsPath, r.RpkiState)
	b.metrics.RpkiResolved(r.RpkiState.String())
}

// NewRoute validates raw and applies the community policy and RPKI
// resolution to it.
func (b *Builder) NewRoute(ctx context.Context, raw RawRoute) (*Route, error) {
	r, err := parseRoute(raw)
	if err != nil {
		return nil, err
	}
	b.enrich(ctx, r)
	return r, nil
}
