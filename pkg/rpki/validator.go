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

package rpki

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/osrg/lookingglass/internal/pkg/metrics"
	"github.com/osrg/lookingglass/pkg/log"
)

const DefaultTimeout = 5 * time.Second

// Lookuper is a transport that can validate one (prefix, origin) pair.
// Errors are reported to the caller as-is.
type Lookuper interface {
	Lookup(ctx context.Context, prefix string, asn uint32) (ValidationState, error)
}

// Validator resolves the RPKI state of a (prefix, origin AS) pair. It never
// fails: anything that prevents a definite answer yields
// VALIDATION_STATE_UNVERIFIED.
type Validator interface {
	Validate(ctx context.Context, prefix string, asn int) ValidationState
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(ctx context.Context, prefix string, asn int) ValidationState

func (f ValidatorFunc) Validate(ctx context.Context, prefix string, asn int) ValidationState {
	return f(ctx, prefix, asn)
}

type ValidatorOption func(*LookupValidator)

func WithCache(c Cache) ValidatorOption {
	return func(v *LookupValidator) {
		v.cache = c
	}
}

func WithTimeout(d time.Duration) ValidatorOption {
	return func(v *LookupValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func WithLogger(l log.Logger) ValidatorOption {
	return func(v *LookupValidator) {
		v.logger = l
	}
}

func WithMetrics(r *metrics.Recorder) ValidatorOption {
	return func(v *LookupValidator) {
		v.metrics = r
	}
}

// LookupValidator turns a Lookuper into a Validator. Each lookup runs
// under its own deadline, successful answers are cached and concurrent
// lookups of the same key share one request. A caller whose context ends
// gets VALIDATION_STATE_UNVERIFIED without cancelling the shared request.
type LookupValidator struct {
	lookuper Lookuper
	cache    Cache
	timeout  time.Duration
	logger   log.Logger
	metrics  *metrics.Recorder
	group    singleflight.Group

	// called once a caller waits on a lookup, tests only
	joined func()
}

func NewValidator(l Lookuper, opts ...ValidatorOption) *LookupValidator {
	v := &LookupValidator{
		lookuper: l,
		timeout:  DefaultTimeout,
		logger:   log.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *LookupValidator) Validate(ctx context.Context, prefix string, asn int) ValidationState {
	if asn < 0 || int64(asn) > math.MaxUint32 {
		v.logger.Debug("origin as out of range",
			log.Fields{
				"Topic":  "rpki",
				"Prefix": prefix,
				"AS":     asn,
			})
		return VALIDATION_STATE_UNVERIFIED
	}
	key := cacheKey(prefix, uint32(asn))

	if v.cache != nil {
		if s, ok := v.cache.Get(ctx, key); ok {
			v.metrics.RpkiCacheHit()
			return s
		}
	}

	ch := v.group.DoChan(key, func() (interface{}, error) {
		// the shared lookup outlives any single caller
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()

		s, err := v.lookuper.Lookup(lctx, prefix, uint32(asn))
		if err == nil && !s.IsDefined() {
			err = errUndefinedState(s)
		}
		v.metrics.RpkiLookup(err != nil)
		if err != nil {
			v.logger.Warn("rpki lookup failed",
				log.Fields{
					"Topic":  "rpki",
					"Prefix": prefix,
					"AS":     asn,
					"Error":  err,
				})
			return VALIDATION_STATE_UNVERIFIED, nil
		}
		if v.cache != nil {
			v.cache.Set(lctx, key, s)
		}
		return s, nil
	})
	if v.joined != nil {
		v.joined()
	}

	select {
	case res := <-ch:
		return res.Val.(ValidationState)
	case <-ctx.Done():
		return VALIDATION_STATE_UNVERIFIED
	}
}

type errUndefinedState ValidationState

func (e errUndefinedState) Error() string {
	return "lookup returned " + ValidationState(e).String()
}
