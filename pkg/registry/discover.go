package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EventKind tells whether an endpoint appeared or went away.
type EventKind int

const (
	Insert EventKind = iota
	Remove
)

func (k EventKind) String() string {
	if k == Remove {
		return "remove"
	}
	return "insert"
}

// Event is a change to the endpoint set of a domain. Endpoint is nil for
// Remove.
type Event struct {
	Kind     EventKind
	Key      string
	Endpoint *url.URL
}

// Discover streams the endpoints registered under domain: first an Insert
// per existing key, then changes as they happen. Values that are not valid
// endpoints are logged and skipped.
//
// The channel is closed when ctx ends or when etcd cancels the watch.
// There is no reconnection; callers restart Discover if they need to.
func (r *Registry) Discover(ctx context.Context, domain string) (<-chan Event, error) {
	prefix := Prefix(domain)
	log := r.logger().With("domain", domain)

	watchCtx, cancel := context.WithCancel(ctx)
	wch := r.Watcher.Watch(watchCtx, prefix, clientv3.WithPrefix())

	if err := r.Watcher.RequestProgress(watchCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("registry: request progress: %w", err)
	}

	resp, err := r.KV.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("registry: list %s: %w", prefix, err)
	}
	log.InfoContext(ctx, "registry_discovered", "count", len(resp.Kvs))

	out := make(chan Event)
	go func() {
		defer close(out)
		defer cancel()

		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-watchCtx.Done():
				return false
			}
		}

		for _, kv := range resp.Kvs {
			ev, ok := r.insertEvent(string(kv.Key), string(kv.Value))
			if ok && !send(ev) {
				return
			}
		}

		for {
			var wr clientv3.WatchResponse
			select {
			case <-watchCtx.Done():
				return
			case next, ok := <-wch:
				if !ok {
					return
				}
				wr = next
			}

			if wr.Canceled {
				log.Warn("registry_watch_canceled", "error", wr.Err())
				return
			}
			if err := wr.Err(); err != nil {
				log.Warn("registry_watch_failed", "error", err)
				return
			}
			if wr.IsProgressNotify() {
				continue
			}

			for _, e := range wr.Events {
				if e.Kv == nil {
					continue
				}
				key := string(e.Kv.Key)

				var (
					ev Event
					ok bool
				)
				switch e.Type {
				case clientv3.EventTypePut:
					ev, ok = r.insertEvent(key, string(e.Kv.Value))
				case clientv3.EventTypeDelete:
					ev, ok = Event{Kind: Remove, Key: key}, true
				}
				if ok && !send(ev) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Registry) insertEvent(key, value string) (Event, bool) {
	endpoint, err := ParseEndpoint(value)
	if err != nil {
		r.logger().Warn("registry_bad_endpoint", "key", key, "value", value, "error", err)
		return Event{}, false
	}
	return Event{Kind: Insert, Key: key, Endpoint: endpoint}, true
}

// ParseEndpoint accepts "host:port" or an absolute http(s) URL.
func ParseEndpoint(value string) (*url.URL, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("registry: empty endpoint")
	}
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}

	u, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("registry: endpoint %q: %w", value, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("registry: endpoint %q: unsupported scheme %q", value, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("registry: endpoint %q: missing host", value)
	}
	return u, nil
}
