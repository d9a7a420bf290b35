package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/tollgate/pkg/registry"
)

const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

type Config struct {
	OctKey       string            // Optional: base64 HMAC secret (default: random, tokens die with the process)
	Algorithm    string            // Optional: HS256, HS384 or HS512 (default: HS256)
	Domain       string            // Optional: iss claim and registry domain (default: token)
	RefreshRatio float64           // Optional: refresh lifetime multiplier (default: 3.0)
	Expires      map[string]uint64 // Required: audience -> access lifetime in seconds

	CacheDriver string // Optional: redis, memory or sqlite (default: redis)
	RedisURL    string // Optional: redis URL (default: redis://127.0.0.1:6379/0)
	CacheFile   string // Optional: sqlite cache file (default: token-cache.db)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // sqlite purge interval (default: 1h)

	Register bool // Announce the service in etcd (default: true)
	Service  registry.ServiceConfig
	Etcd     registry.EtcdConfig
}

// fileConfig is the YAML overlay. Only fields set in the file override env.
type fileConfig struct {
	OctKey       string            `yaml:"oct_key"`
	Algorithm    string            `yaml:"algorithm"`
	Domain       string            `yaml:"domain"`
	RefreshRatio float64           `yaml:"refresh_ratio"`
	Expires      map[string]uint64 `yaml:"expires"`
	Cache        struct {
		Driver string `yaml:"driver"`
		Redis  string `yaml:"redis"`
		File   string `yaml:"file"`
	} `yaml:"cache"`
	Register *bool `yaml:"register"`
	Service  struct {
		Name         string `yaml:"name"`
		ListenAddr   string `yaml:"listen_addr"`
		DiscoverAddr string `yaml:"discover_addr"`
	} `yaml:"service"`
	Etcd struct {
		Endpoints []string `yaml:"endpoints"`
	} `yaml:"etcd"`
}

// LoadConfig reads the environment, then applies TOKEN_CONFIG_FILE when
// set.
func LoadConfig() (Config, error) {
	cfg := Config{
		OctKey:               os.Getenv("TOKEN_OCT_KEY"),
		Algorithm:            getEnvOrDefault("TOKEN_ALGORITHM", "HS256"),
		Domain:               getEnvOrDefault("TOKEN_DOMAIN", "token"),
		RefreshRatio:         getEnvFloatOrDefault("TOKEN_REFRESH_RATIO", 3.0),
		CacheDriver:          getEnvOrDefault("TOKEN_CACHE_DRIVER", CacheRedis),
		RedisURL:             getEnvOrDefault("APP_REDIS", "redis://127.0.0.1:6379/0"),
		CacheFile:            getEnvOrDefault("TOKEN_CACHE_FILE", "token-cache.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		Register:             getEnvBoolOrDefault("TOKEN_REGISTER", true),
		Service:              registry.LoadServiceConfig("token"),
		Etcd:                 registry.LoadEtcdConfig(),
	}
	cfg.Etcd.LogLevel = cfg.LogLevel

	expires, err := ParseExpires(os.Getenv("TOKEN_EXPIRES"))
	if err != nil {
		return Config{}, err
	}
	cfg.Expires = expires

	if path := os.Getenv("TOKEN_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.OctKey, f.OctKey)
	setString(&c.Algorithm, f.Algorithm)
	setString(&c.Domain, f.Domain)
	if f.RefreshRatio != 0 {
		c.RefreshRatio = f.RefreshRatio
	}
	for aud, secs := range f.Expires {
		if c.Expires == nil {
			c.Expires = make(map[string]uint64)
		}
		c.Expires[aud] = secs
	}
	setString(&c.CacheDriver, f.Cache.Driver)
	setString(&c.RedisURL, f.Cache.Redis)
	setString(&c.CacheFile, f.Cache.File)
	if f.Register != nil {
		c.Register = *f.Register
	}
	setString(&c.Service.Name, f.Service.Name)
	setString(&c.Service.ListenAddr, f.Service.ListenAddr)
	setString(&c.Service.DiscoverAddr, f.Service.DiscoverAddr)
	if len(f.Etcd.Endpoints) > 0 {
		c.Etcd.Endpoints = f.Etcd.Endpoints
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.CacheDriver {
	case CacheRedis, CacheMemory, CacheSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.CacheDriver))
	}
	if c.RefreshRatio <= 0 {
		errs = append(errs, fmt.Errorf("refresh ratio must be positive, got %v", c.RefreshRatio))
	}
	if c.Register {
		if err := c.Service.Lease.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParseExpires reads "aud=seconds,aud=seconds". Whitespace around entries
// is ignored.
func ParseExpires(s string) (map[string]uint64, error) {
	out := make(map[string]uint64)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		aud, secs, ok := strings.Cut(entry, "=")
		aud = strings.TrimSpace(aud)
		if !ok || aud == "" {
			return nil, fmt.Errorf("TOKEN_EXPIRES: entry %q is not aud=seconds", entry)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(secs), 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("TOKEN_EXPIRES: %s: invalid lifetime %q", aud, secs)
		}
		out[aud] = n
	}
	return out, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
