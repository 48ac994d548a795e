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

package normalizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/osrg/lookingglass/internal/pkg/config"
	"github.com/osrg/lookingglass/internal/pkg/metrics"
	"github.com/osrg/lookingglass/internal/pkg/table"
	"github.com/osrg/lookingglass/pkg/log"
	"github.com/osrg/lookingglass/pkg/rpki"
)

// ErrNoTables is returned by Normalize when there is nothing to merge.
var ErrNoTables = errors.New("no route tables")

type options struct {
	logger     log.Logger
	metrics    *metrics.Recorder
	httpClient *http.Client
	lookuper   rpki.Lookuper
}

type Option func(*options)

func LoggerOption(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func MetricsOption(r *metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// HTTPClientOption sets the client used by the cloudflare backend.
func HTTPClientOption(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// LookuperOption replaces the configured RPKI backend.
func LookuperOption(l rpki.Lookuper) Option {
	return func(o *options) {
		o.lookuper = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.NewDefaultLogger()
	}
	return o
}

// Validator is an RPKI validator built from the configured backend and
// cache. Close releases the cache connection.
type Validator struct {
	*rpki.LookupValidator
	redis *redis.Client
}

func (v *Validator) Close() error {
	if v.redis != nil {
		return v.redis.Close()
	}
	return nil
}

func newLookuper(c *config.RpkiConfig, o *options) (rpki.Lookuper, error) {
	if o.lookuper != nil {
		return o.lookuper, nil
	}
	switch c.Backend {
	case config.RPKI_BACKEND_CLOUDFLARE:
		return rpki.NewClient(c.URL, o.httpClient), nil
	case config.RPKI_BACKEND_ROA_FILE:
		t, err := rpki.LoadROAFile(c.RoaFile)
		if err != nil {
			return nil, err
		}
		o.logger.Info("loaded roa file",
			log.Fields{
				"Topic": "rpki",
				"File":  c.RoaFile,
				"ROAs":  t.Len(),
			})
		return t, nil
	}
	return nil, fmt.Errorf("%w: unknown rpki backend %q", config.ErrInvalidConfig, c.Backend)
}

func newValidator(c *config.RpkiConfig, o *options) (*Validator, error) {
	l, err := newLookuper(c, o)
	if err != nil {
		return nil, err
	}
	v := &Validator{}
	vopts := []rpki.ValidatorOption{
		rpki.WithTimeout(c.LookupTimeout()),
		rpki.WithLogger(o.logger),
		rpki.WithMetrics(o.metrics),
	}
	switch c.Cache.Backend {
	case config.CACHE_BACKEND_MEMORY:
		vopts = append(vopts, rpki.WithCache(rpki.NewMemoryCache(c.CacheTTL())))
	case config.CACHE_BACKEND_REDIS:
		v.redis = redis.NewClient(&redis.Options{
			Addr:     c.Cache.RedisAddress,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
		vopts = append(vopts, rpki.WithCache(rpki.NewRedisCache(v.redis, c.CacheTTL(), o.logger)))
	}
	v.LookupValidator = rpki.NewValidator(l, vopts...)
	return v, nil
}

// NewValidator builds the configured RPKI validator whatever the RPKI
// mode is.
func NewValidator(c *config.Config, opts ...Option) (*Validator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return newValidator(&c.Structured.Rpki, newOptions(opts))
}

// Normalizer builds route tables from raw device responses according to
// one configuration.
type Normalizer struct {
	builder   *table.Builder
	validator *Validator
	workers   int
	logger    log.Logger
}

func New(c *config.Config, opts ...Option) (*Normalizer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	mode, err := table.ParseCommunityMode(c.Structured.Communities.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := table.NewCommunityPolicy(mode, c.Structured.Communities.Items)
	if err != nil {
		return nil, err
	}

	n := &Normalizer{
		workers: c.Normalizer.Workers,
		logger:  o.logger,
	}
	rpkiMode := table.ParseRpkiMode(c.Structured.Rpki.Mode)
	var v rpki.Validator
	if rpkiMode == table.RPKI_MODE_EXTERNAL {
		n.validator, err = newValidator(&c.Structured.Rpki, o)
		if err != nil {
			return nil, err
		}
		v = n.validator
	}
	resolver, err := table.NewRpkiResolver(rpkiMode, v, o.logger)
	if err != nil {
		return nil, err
	}
	n.builder = table.NewBuilder(policy, resolver, table.WithLogger(o.logger), table.WithMetrics(o.metrics))

	o.logger.Info("normalizer configured",
		log.Fields{
			"Topic":       "normalizer",
			"Communities": policy.Mode().String(),
			"Patterns":    len(c.Structured.Communities.Items),
			"RPKI":        rpkiMode.String(),
			"Workers":     n.workers,
		})
	return n, nil
}

func (n *Normalizer) Close() error {
	if n.validator != nil {
		return n.validator.Close()
	}
	return nil
}

// BuildTable builds one route table.
func (n *Normalizer) BuildTable(ctx context.Context, raw *table.RawTable) (*table.RouteTable, error) {
	return n.builder.NewRouteTable(ctx, raw)
}

// Normalize builds every table concurrently and merges them, in the given
// order, into the first one. Any failing table fails the whole call.
func (n *Normalizer) Normalize(ctx context.Context, raws []*table.RawTable) (*table.RouteTable, error) {
	requestID := uuid.New().String()
	if len(raws) == 0 {
		return nil, ErrNoTables
	}

	tables := make([]*table.RouteTable, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			t, err := n.BuildTable(gctx, raw)
			if err != nil {
				return fmt.Errorf("table %d: %w", i, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		n.logger.Warn("failed to normalize route tables",
			log.Fields{
				"Topic":     "normalizer",
				"RequestID": requestID,
				"Tables":    len(raws),
				"Error":     err,
			})
		return nil, err
	}

	acc := tables[0]
	for _, t := range tables[1:] {
		acc = acc.Merge(t)
	}
	n.logger.Info("normalized route tables",
		log.Fields{
			"Topic":     "normalizer",
			"RequestID": requestID,
			"Tables":    len(raws),
			"Routes":    acc.Count,
		})
	return acc, nil
}
