// Package config loads resolver options from three layers, later layers
// overriding earlier ones:
//
//  1. built-in defaults ([resolver.DefaultOptions])
//  2. an optional YAML file
//  3. environment variables prefixed EDGE_IDENTITY_
//
// Out-of-range compaction percentages are not errors here: the resolver
// clamps them to the default, so a bad value degrades to sane behavior
// instead of failing startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
	"github.com/StricklySoft/edge-identity/pkg/resolver"
)

// EnvPrefix is the prefix shared by every environment override.
const EnvPrefix = "EDGE_IDENTITY_"

// Environment variable names recognized by [Load].
const (
	EnvValidateTokenSignature    = EnvPrefix + "VALIDATE_TOKEN_SIGNATURE"
	EnvValidateTokenLifetime     = EnvPrefix + "VALIDATE_TOKEN_LIFETIME"
	EnvRoleClaim                 = EnvPrefix + "ROLE_CLAIM"
	EnvMaxCacheSizeBytes         = EnvPrefix + "MAX_CACHE_SIZE_BYTES"
	EnvMaxCacheLifetime          = EnvPrefix + "MAX_CACHE_LIFETIME"
	EnvCacheCompactionPercentage = EnvPrefix + "CACHE_COMPACTION_PERCENTAGE"
)

// Duration wraps time.Duration with YAML unmarshalling from the standard
// Go duration syntax ("5m", "1h30m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// file is the YAML schema. Pointer fields distinguish "absent" from
// "explicitly zero", so a file can disable the cache with an explicit 0
// while leaving other settings at their defaults.
type file struct {
	ValidateTokenSignature    *bool     `yaml:"validate_token_signature"`
	ValidateTokenLifetime     *bool     `yaml:"validate_token_lifetime"`
	RoleClaim                 *string   `yaml:"role_claim"`
	MaxCacheSizeBytes         *int64    `yaml:"max_cache_size_bytes"`
	MaxCacheLifetime          *Duration `yaml:"max_cache_lifetime"`
	CacheCompactionPercentage *int      `yaml:"cache_compaction_percentage"`
}

// Load returns resolver options assembled from defaults, the YAML file at
// path (skipped when path is empty), and environment overrides.
//
// A cache size of zero or less, from either layer, disables caching.
func Load(path string) (resolver.Options, error) {
	opts := resolver.DefaultOptions()

	if path != "" {
		if err := applyFile(&opts, path); err != nil {
			return resolver.Options{}, err
		}
	}
	if err := applyEnv(&opts); err != nil {
		return resolver.Options{}, err
	}
	return opts, nil
}

func applyFile(opts *resolver.Options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
			"config: cannot read %s", path)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
			"config: cannot parse %s", path)
	}

	if f.ValidateTokenSignature != nil {
		opts.ValidateSignature = *f.ValidateTokenSignature
	}
	if f.ValidateTokenLifetime != nil {
		opts.ValidateLifetime = *f.ValidateTokenLifetime
	}
	if f.RoleClaim != nil {
		opts.RoleClaim = *f.RoleClaim
	}
	if f.MaxCacheSizeBytes != nil {
		setCacheSize(opts, *f.MaxCacheSizeBytes)
	}
	if f.MaxCacheLifetime != nil {
		opts.MaxCacheLifetime = time.Duration(*f.MaxCacheLifetime)
	}
	if f.CacheCompactionPercentage != nil {
		opts.CacheCompactionPercentage = *f.CacheCompactionPercentage
	}
	return nil
}

func applyEnv(opts *resolver.Options) error {
	if err := envBool(EnvValidateTokenSignature, &opts.ValidateSignature); err != nil {
		return err
	}
	if err := envBool(EnvValidateTokenLifetime, &opts.ValidateLifetime); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(EnvRoleClaim); ok {
		opts.RoleClaim = v
	}
	if v, ok := os.LookupEnv(EnvMaxCacheSizeBytes); ok {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: %s must be an integer byte count", EnvMaxCacheSizeBytes)
		}
		setCacheSize(opts, size)
	}
	if v, ok := os.LookupEnv(EnvMaxCacheLifetime); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: %s must be a duration like \"5m\"", EnvMaxCacheLifetime)
		}
		opts.MaxCacheLifetime = d
	}
	if v, ok := os.LookupEnv(EnvCacheCompactionPercentage); ok {
		pct, err := strconv.Atoi(v)
		if err != nil {
			return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
				"config: %s must be an integer percentage", EnvCacheCompactionPercentage)
		}
		opts.CacheCompactionPercentage = pct
	}
	return nil
}

func envBool(name string, dst *bool) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return iderr.Wrapf(err, iderr.CodeInternalConfiguration,
			"config: %s must be a boolean", name)
	}
	*dst = parsed
	return nil
}

// setCacheSize translates the external convention (zero or negative
// disables) into the options representation (nil pointer disables).
func setCacheSize(opts *resolver.Options, size int64) {
	if size <= 0 {
		opts.MaxCacheSizeBytes = nil
		return
	}
	opts.MaxCacheSizeBytes = &size
}
