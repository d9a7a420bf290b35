// Package balancer spreads calls over the endpoints a registry discovery
// stream reports.
package balancer

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"github.com/aussiebroadwan/tollgate/pkg/registry"
)

// ErrNoEndpoints is returned by Resolve while the set is empty.
var ErrNoEndpoints = errors.New("balancer: no endpoints")

// RoundRobin hands out endpoints in turn. It is safe for concurrent use
// and satisfies tokensdk.Resolver.
type RoundRobin struct {
	mu        sync.Mutex
	keys      []string
	endpoints map[string]*url.URL
	next      int
	logger    *slog.Logger
}

func NewRoundRobin(logger *slog.Logger) *RoundRobin {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoundRobin{endpoints: make(map[string]*url.URL), logger: logger}
}

// Run applies events until the channel closes or ctx ends. One RoundRobin
// consumes one stream.
func (b *RoundRobin) Run(ctx context.Context, events <-chan registry.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				b.logger.Warn("balancer_stream_closed", "endpoints", b.Len())
				return
			}
			b.Apply(ev)
		}
	}
}

// Apply upserts on Insert and deletes on Remove.
func (b *RoundRobin) Apply(ev registry.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case registry.Insert:
		if ev.Endpoint == nil {
			return
		}
		if _, ok := b.endpoints[ev.Key]; !ok {
			b.keys = append(b.keys, ev.Key)
		}
		b.endpoints[ev.Key] = ev.Endpoint
		b.logger.Info("balancer_endpoint_added", "key", ev.Key, "endpoint", ev.Endpoint.String())
	case registry.Remove:
		i := slices.Index(b.keys, ev.Key)
		if i < 0 {
			return
		}
		b.keys = slices.Delete(b.keys, i, i+1)
		delete(b.endpoints, ev.Key)
		if b.next > i {
			b.next--
		}
		b.logger.Info("balancer_endpoint_removed", "key", ev.Key)
	}
}

// Resolve returns the next endpoint. The URL is a copy the caller may
// modify.
func (b *RoundRobin) Resolve() (*url.URL, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.keys) == 0 {
		return nil, ErrNoEndpoints
	}
	if b.next >= len(b.keys) {
		b.next = 0
	}
	u := *b.endpoints[b.keys[b.next]]
	b.next++
	return &u, nil
}

func (b *RoundRobin) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.keys)
}
