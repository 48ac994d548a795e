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
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	cache "github.com/patrickmn/go-cache"

	"github.com/osrg/lookingglass/pkg/log"
)

const cacheKeyPrefix = "lookingglass.rpki."

func cacheKey(prefix string, asn uint32) string {
	return fmt.Sprintf("%s%s@%d", cacheKeyPrefix, prefix, asn)
}

// Cache stores lookup results. Implementations treat any backend failure
// as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (ValidationState, bool)
	Set(ctx context.Context, key string, state ValidationState)
}

type MemoryCache struct {
	c *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cleanupInterval := ttl
	if cleanupInterval <= 0 || cleanupInterval > time.Minute {
		cleanupInterval = time.Minute
	}
	return &MemoryCache{
		c: cache.New(ttl, cleanupInterval),
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) (ValidationState, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return VALIDATION_STATE_UNVERIFIED, false
	}
	return v.(ValidationState), true
}

func (m *MemoryCache) Set(_ context.Context, key string, state ValidationState) {
	m.c.SetDefault(key, state)
}

// RedisCache shares lookup results between looking glass processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger log.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger log.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (ValidationState, bool) {
	n, err := r.client.Get(ctx, key).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("failed to read rpki cache",
				log.Fields{
					"Topic": "rpki",
					"Key":   key,
					"Error": err,
				})
		}
		return VALIDATION_STATE_UNVERIFIED, false
	}
	s := ValidationState(n)
	if !s.IsDefined() {
		return VALIDATION_STATE_UNVERIFIED, false
	}
	return s, true
}

func (r *RedisCache) Set(ctx context.Context, key string, state ValidationState) {
	if err := r.client.Set(ctx, key, int(state), r.ttl).Err(); err != nil {
		r.logger.Warn("failed to write rpki cache",
			log.Fields{
				"Topic": "rpki",
				"Key":   key,
				"Error": err,
			})
	}
}
