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

package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stateLabels = []string{"state"}

	routesBuiltTotalDesc        = prometheus.NewDesc("lookingglass_routes_built_total", "Number of route records built", nil, nil)
	communitiesDroppedTotalDesc = prometheus.NewDesc("lookingglass_communities_dropped_total", "Number of communities removed by the community policy", nil, nil)
	tablesBuiltTotalDesc        = prometheus.NewDesc("lookingglass_tables_built_total", "Number of route tables built", nil, nil)
	tableFailuresTotalDesc      = prometheus.NewDesc("lookingglass_table_failures_total", "Number of route table builds rejected by validation", nil, nil)
	rpkiStatesTotalDesc         = prometheus.NewDesc("lookingglass_rpki_states_total", "Number of resolved RPKI states", stateLabels, nil)
	rpkiLookupsTotalDesc        = prometheus.NewDesc("lookingglass_rpki_lookups_total", "Number of external RPKI lookups", nil, nil)
	rpkiLookupErrorsTotalDesc   = prometheus.NewDesc("lookingglass_rpki_lookup_errors_total", "Number of external RPKI lookups degraded to unverified", nil, nil)
	rpkiCacheHitsTotalDesc      = prometheus.NewDesc("lookingglass_rpki_cache_hits_total", "Number of RPKI lookups answered from cache", nil, nil)
)

// Recorder accumulates normalization counters. All methods are safe for
// concurrent use and a nil *Recorder discards everything.
type Recorder struct {
	mu                 sync.Mutex
	rpkiStates         map[string]uint64
	routesBuilt        uint64
	communitiesDropped uint64
	tablesBuilt        uint64
	tableFailures      uint64
	rpkiLookups        uint64
	rpkiLookupErrors   uint64
	rpkiCacheHits      uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		rpkiStates: make(map[string]uint64),
	}
}

func (r *Recorder) RouteBuilt() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.routesBuilt++
	r.mu.Unlock()
}

func (r *Recorder) CommunitiesDropped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.mu.Lock()
	r.communitiesDropped += uint64(n)
	r.mu.Unlock()
}

func (r *Recorder) TableBuilt() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.tablesBuilt++
	r.mu.Unlock()
}

func (r *Recorder) TableFailed() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.tableFailures++
	r.mu.Unlock()
}

func (r *Recorder) RpkiResolved(state string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.rpkiStates[state]++
	r.mu.Unlock()
}

func (r *Recorder) RpkiLookup(failed bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.rpkiLookups++
	if failed {
		r.rpkiLookupErrors++
	}
	r.mu.Unlock()
}

func (r *Recorder) RpkiCacheHit() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.rpkiCacheHits++
	r.mu.Unlock()
}

type snapshot struct {
	rpkiStates         map[string]uint64
	routesBuilt        uint64
	communitiesDropped uint64
	tablesBuilt        uint64
	tableFailures      uint64
	rpkiLookups        uint64
	rpkiLookupErrors   uint64
	rpkiCacheHits      uint64
}

func (r *Recorder) snapshot() snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := snapshot{
		rpkiStates:         make(map[string]uint64, len(r.rpkiStates)),
		routesBuilt:        r.routesBuilt,
		communitiesDropped: r.communitiesDropped,
		tablesBuilt:        r.tablesBuilt,
		tableFailures:      r.tableFailures,
		rpkiLookups:        r.rpkiLookups,
		rpkiLookupErrors:   r.rpkiLookupErrors,
		rpkiCacheHits:      r.rpkiCacheHits,
	}
	for k, v := range r.rpkiStates {
		s.rpkiStates[k] = v
	}
	return s
}

type normalizerCollector struct {
	recorder *Recorder
}

func NewCollector(r *Recorder) prometheus.Collector {
	return &normalizerCollector{recorder: r}
}

func (c *normalizerCollector) Describe(out chan<- *prometheus.Desc) {
	out <- routesBuiltTotalDesc
	out <- communitiesDroppedTotalDesc
	out <- tablesBuiltTotalDesc
	out <- tableFailuresTotalDesc
	out <- rpkiStatesTotalDesc
	out <- rpkiLookupsTotalDesc
	out <- rpkiLookupErrorsTotalDesc
	out <- rpkiCacheHitsTotalDesc
}

func (c *normalizerCollector) Collect(out chan<- prometheus.Metric) {
	s := c.recorder.snapshot()

	send := func(desc *prometheus.Desc, cnt uint64, labels ...string) {
		out <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(cnt), labels...)
	}

	for _, state := range sortedKeys(s.rpkiStates) {
		send(rpkiStatesTotalDesc, s.rpkiStates[state], state)
	}
	send(routesBuiltTotalDesc, s.routesBuilt)
	send(communitiesDroppedTotalDesc, s.communitiesDropped)
	send(tablesBuiltTotalDesc, s.tablesBuilt)
	send(tableFailuresTotalDesc, s.tableFailures)
	send(rpkiLookupsTotalDesc, s.rpkiLookups)
	send(rpkiLookupErrorsTotalDesc, s.rpkiLookupErrors)
	send(rpkiCacheHitsTotalDesc, s.rpkiCacheHits)
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
