// Package registry announces services in etcd under leased keys and
// watches a domain for the endpoints of other services.
//
// Keys have the form "<domain>:<name>[:<instance>]" and hold the endpoint
// address the service can be reached at.
package registry

import (
	"log/slog"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/aussiebroadwan/tollgate/pkg/clock"
)

// Registry talks to etcd through the three client interfaces it needs, so
// tests can stand in for any of them.
type Registry struct {
	Lease   clientv3.Lease
	KV      clientv3.KV
	Watcher clientv3.Watcher

	Clock  clock.Clock
	Logger *slog.Logger
}

// New returns a Registry backed by cli.
func New(cli *clientv3.Client, logger *slog.Logger) *Registry {
	return &Registry{
		Lease:   cli.Lease,
		KV:      cli.KV,
		Watcher: cli.Watcher,
		Clock:   clock.Real(),
		Logger:  logger,
	}
}

func (r *Registry) clock() clock.Clock {
	if r.Clock == nil {
		return clock.Real()
	}
	return r.Clock
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Record is what a service announces about itself.
type Record struct {
	Domain   string
	Name     string
	Instance string // optional; lets replicas of Name coexist
	Endpoint string
}

// Key is the etcd key of the record.
func (r Record) Key() string {
	parts := []string{r.Domain, r.Name}
	if r.Instance != "" {
		parts = append(parts, r.Instance)
	}
	return strings.Join(parts, ":")
}

// Prefix is the key prefix watched by Discover for domain.
func Prefix(domain string) string {
	return domain + ":"
}
