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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/osrg/lookingglass/internal/pkg/table"
	"github.com/osrg/lookingglass/pkg/rpki"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	RPKI_BACKEND_CLOUDFLARE = "cloudflare"
	RPKI_BACKEND_ROA_FILE   = "roa-file"

	CACHE_BACKEND_NONE   = "none"
	CACHE_BACKEND_MEMORY = "memory"
	CACHE_BACKEND_REDIS  = "redis"

	DEFAULT_WORKERS = 4
)

type CommunitiesConfig struct {
	Mode  string   `mapstructure:"mode" toml:"mode"`
	Items []string `mapstructure:"items" toml:"items"`
}

type CacheConfig struct {
	Backend       string `mapstructure:"backend" toml:"backend"`
	TTL           string `mapstructure:"ttl" toml:"ttl"`
	RedisAddress  string `mapstructure:"redis-address" toml:"redis-address,omitempty"`
	RedisPassword string `mapstructure:"redis-password" toml:"redis-password,omitempty"`
	RedisDB       int    `mapstructure:"redis-db" toml:"redis-db,omitempty"`
}

type RpkiConfig struct {
	Mode    string      `mapstructure:"mode" toml:"mode"`
	Backend string      `mapstructure:"backend" toml:"backend"`
	URL     string      `mapstructure:"url" toml:"url"`
	RoaFile string      `mapstructure:"roa-file" toml:"roa-file,omitempty"`
	Timeout string      `mapstructure:"timeout" toml:"timeout"`
	Cache   CacheConfig `mapstructure:"cache" toml:"cache"`
}

type StructuredConfig struct {
	Communities CommunitiesConfig `mapstructure:"communities" toml:"communities"`
	Rpki        RpkiConfig        `mapstructure:"rpki" toml:"rpki"`
}

type NormalizerConfig struct {
	Workers int `mapstructure:"workers" toml:"workers"`
}

type Config struct {
	Structured StructuredConfig `mapstructure:"structured" toml:"structured"`
	Normalizer NormalizerConfig `mapstructure:"normalizer" toml:"normalizer"`
}

// SetDefaultConfigValues registers the default of every option on v.
func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault("structured.communities.mode", table.COMMUNITY_MODE_DENY.String())
	v.SetDefault("structured.communities.items", []string{})
	v.SetDefault("structured.rpki.mode", table.RPKI_MODE_ROUTER.String())
	v.SetDefault("structured.rpki.backend", RPKI_BACKEND_CLOUDFLARE)
	v.SetDefault("structured.rpki.url", rpki.DefaultURL)
	v.SetDefault("structured.rpki.timeout", rpki.DefaultTimeout.String())
	v.SetDefault("structured.rpki.cache.backend", CACHE_BACKEND_MEMORY)
	v.SetDefault("structured.rpki.cache.ttl", time.Hour.String())
	v.SetDefault("normalizer.workers", DEFAULT_WORKERS)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	SetDefaultConfigValues(v)
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c, err := unmarshal(viper.New())
	if err != nil {
		panic(err)
	}
	return c
}

// ReadConfigFile reads and validates a configuration file. format is any
// type viper understands, "toml" if empty.
func ReadConfigFile(path, format string) (*Config, error) {
	if format == "" {
		format = "toml"
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(format)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("can't read config file %s: %w", path, err)
	}
	return unmarshal(v)
}

// ReadConfig is ReadConfigFile for an already opened configuration.
func ReadConfig(r io.Reader, format string) (*Config, error) {
	if format == "" {
		format = "toml"
	}
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("can't read config: %w", err)
	}
	return unmarshal(v)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func parseDuration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, invalid("%s: %s", name, err)
	}
	if d < 0 {
		return 0, invalid("%s must not be negative", name)
	}
	return d, nil
}

func (c *Config) Validate() error {
	mode, err := table.ParseCommunityMode(c.Structured.Communities.Mode)
	if err != nil {
		return invalid("structured.communities.mode: %s", err)
	}
	if _, err := table.NewCommunityPolicy(mode, c.Structured.Communities.Items); err != nil {
		return invalid("structured.communities.items: %s", err)
	}

	r := c.Structured.Rpki
	if table.ParseRpkiMode(r.Mode) == table.RPKI_MODE_EXTERNAL {
		switch r.Backend {
		case RPKI_BACKEND_CLOUDFLARE:
			u, err := url.Parse(r.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return invalid("structured.rpki.url: %q is not an absolute url", r.URL)
			}
		case RPKI_BACKEND_ROA_FILE:
			if r.RoaFile == "" {
				return invalid("structured.rpki.roa-file is required by the %s backend", r.Backend)
			}
		default:
			return invalid("structured.rpki.backend: unknown backend %q (%s|%s)",
				r.Backend, RPKI_BACKEND_CLOUDFLARE, RPKI_BACKEND_ROA_FILE)
		}
	}
	if d, err := parseDuration("structured.rpki.timeout", r.Timeout); err != nil {
		return err
	} else if d == 0 {
		return invalid("structured.rpki.timeout must be positive")
	}
	if _, err := parseDuration("structured.rpki.cache.ttl", r.Cache.TTL); err != nil {
		return err
	}
	switch r.Cache.Backend {
	case CACHE_BACKEND_NONE, CACHE_BACKEND_MEMORY:
	case CACHE_BACKEND_REDIS:
		if r.Cache.RedisAddress == "" {
			return invalid("structured.rpki.cache.redis-address is required by the redis cache")
		}
	default:
		return invalid("structured.rpki.cache.backend: unknown backend %q", r.Cache.Backend)
	}

	if c.Normalizer.Workers < 1 {
		return invalid("normalizer.workers must be at least 1, got %d", c.Normalizer.Workers)
	}
	return nil
}

// LookupTimeout and CacheTTL are only meaningful on a validated config.
func (r *RpkiConfig) LookupTimeout() time.Duration {
	d, _ := time.ParseDuration(r.Timeout)
	return d
}

func (r *RpkiConfig) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(r.Cache.TTL)
	return d
}

// Example renders an example configuration in TOML.
func Example() (string, error) {
	c := Default()
	c.Structured.Communities.Items = []string{"^65000:.*", "^65535:666$"}
	c.Structured.Rpki.Mode = table.RPKI_MODE_EXTERNAL.String()

	var buffer bytes.Buffer
	encoder := toml.NewEncoder(&buffer)
	if err := encoder.Encode(c); err != nil {
		return "", err
	}
	return buffer.String(), nil
}
