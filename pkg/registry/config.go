package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aussiebroadwan/tollgate/pkg/idx"
)

const (
	DefaultEtcdEndpoint = "127.0.0.1:2379"
	DefaultDialTimeout  = 5 * time.Second
	DefaultListenAddr   = "0.0.0.0:3000"
	DefaultDiscoverAddr = "http://127.0.0.1:3000"
)

type EtcdConfig struct {
	Endpoints   []string      // ETCD_ENDPOINTS, "|" separated (default: 127.0.0.1:2379)
	Username    string        // ETCD_USERNAME
	Password    string        // ETCD_PASSWORD
	DialTimeout time.Duration // ETCD_DIAL_TIMEOUT (default: 5s)
	LogLevel    string        // level of the etcd client's own logging (default: warn)
}

func LoadEtcdConfig() EtcdConfig {
	cfg := EtcdConfig{
		Endpoints:   []string{DefaultEtcdEndpoint},
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
		DialTimeout: envDuration("ETCD_DIAL_TIMEOUT", DefaultDialTimeout),
		LogLevel:    "warn",
	}
	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		cfg.Endpoints = splitEndpoints(v)
	}
	return cfg
}

func splitEndpoints(v string) []string {
	var out []string
	for _, ep := range strings.Split(v, "|") {
		if ep = strings.TrimSpace(ep); ep != "" {
			out = append(out, ep)
		}
	}
	return out
}

// NewEtcdClient dials etcd. The client logs through zap at cfg.LogLevel.
func NewEtcdClient(cfg EtcdConfig) (*clientv3.Client, error) {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []string{DefaultEtcdEndpoint}
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	logger, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: dial etcd %v: %w", cfg.Endpoints, err)
	}
	return cli, nil
}

func newZapLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("registry: log level %q: %w", level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Sampling = nil
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("registry: build etcd logger: %w", err)
	}
	return logger.Named("etcd"), nil
}

// ServiceConfig describes how a service announces itself.
type ServiceConfig struct {
	Name         string // SERVICE_NAME
	Instance     string // SERVICE_INSTANCE (default: lowercase ULID)
	ListenAddr   string // LISTEN_ADDR (default: 0.0.0.0:3000)
	DiscoverAddr string // DISCOVER_ADDR, the address peers dial (default: http://127.0.0.1:3000)
	Lease        Lease  // LEASE_GRANT_TTL (61s), LEASE_KEEPALIVE_INTERVAL (20s)
}

// LoadServiceConfig reads the service announcement from env, with name
// used when SERVICE_NAME is unset.
func LoadServiceConfig(name string) ServiceConfig {
	cfg := ServiceConfig{
		Name:         envOr("SERVICE_NAME", name),
		Instance:     envOr("SERVICE_INSTANCE", idx.Instance()),
		ListenAddr:   envOr("LISTEN_ADDR", DefaultListenAddr),
		DiscoverAddr: envOr("DISCOVER_ADDR", DefaultDiscoverAddr),
		Lease: Lease{
			GrantTTL:  envDuration("LEASE_GRANT_TTL", DefaultGrantTTL),
			KeepAlive: envDuration("LEASE_KEEPALIVE_INTERVAL", DefaultKeepAliveInterval),
		},
	}
	return cfg
}

// Record is the announcement of this service under domain.
func (c ServiceConfig) Record(domain string) Record {
	return Record{
		Domain:   domain,
		Name:     c.Name,
		Instance: c.Instance,
		Endpoint: c.DiscoverAddr,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration accepts Go durations ("20s") or whole seconds ("20").
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
