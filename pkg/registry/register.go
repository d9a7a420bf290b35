package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrHeartbeatStopped is reported by Registration.Err once the heartbeat
// loop has ended and the key is left to expire.
var ErrHeartbeatStopped = errors.New("registry: heartbeat stopped")

const keepAliveTimeout = 5 * time.Second

// Registration is a live announcement. The key stays in etcd as long as
// the heartbeat keeps the lease alive.
type Registration struct {
	Key     string
	LeaseID clientv3.LeaseID

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed when the heartbeat loop ends, either through Stop or
// because a keep-alive failed.
func (reg *Registration) Done() <-chan struct{} { return reg.done }

// Stop ends the heartbeat and waits for it. The key is not deleted; it
// disappears when the lease runs out.
func (reg *Registration) Stop() {
	reg.cancel()
	<-reg.done
}

// Err is nil while the heartbeat runs.
func (reg *Registration) Err() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.err
}

func (reg *Registration) finish(err error) {
	reg.mu.Lock()
	reg.err = err
	reg.mu.Unlock()
	close(reg.done)
}

// Register grants a lease, starts the heartbeat and writes the record
// under the lease. The heartbeat outlives ctx; call Stop to end it.
//
// A failed keep-alive is logged and ends the heartbeat without retrying.
func (r *Registry) Register(ctx context.Context, rec Record, lease Lease) (*Registration, error) {
	if err := lease.Validate(); err != nil {
		return nil, err
	}

	grant, err := r.Lease.Grant(ctx, lease.ttlSeconds())
	if err != nil {
		return nil, fmt.Errorf("registry: grant lease: %w", err)
	}

	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	reg := &Registration{
		Key:     rec.Key(),
		LeaseID: grant.ID,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	ticker := r.clock().NewTicker(lease.KeepAlive)
	go r.heartbeat(hbCtx, reg, ticker.C, ticker.Stop)

	if _, err := r.KV.Put(ctx, reg.Key, rec.Endpoint, clientv3.WithLease(grant.ID)); err != nil {
		reg.Stop()
		if _, rerr := r.Lease.Revoke(context.WithoutCancel(ctx), grant.ID); rerr != nil {
			r.logger().WarnContext(ctx, "registry_revoke_failed", "lease", int64(grant.ID), "error", rerr)
		}
		return nil, fmt.Errorf("registry: put %s: %w", reg.Key, err)
	}

	r.logger().InfoContext(ctx, "registry_registered",
		"key", reg.Key,
		"endpoint", rec.Endpoint,
		"lease", int64(grant.ID),
		"ttl", grant.TTL,
	)
	return reg, nil
}

func (r *Registry) heartbeat(ctx context.Context, reg *Registration, tick <-chan time.Time, stop func()) {
	err := ErrHeartbeatStopped
	defer func() {
		stop()
		reg.finish(err)
	}()
	log := r.logger().With("key", reg.Key, "lease", int64(reg.LeaseID))

	for {
		select {
		case <-ctx.Done():
			log.Debug("registry_heartbeat_stopped")
			return
		case <-tick:
		}

		kaCtx, cancel := context.WithTimeout(ctx, keepAliveTimeout)
		_, kaErr := r.Lease.KeepAliveOnce(kaCtx, reg.LeaseID)
		cancel()

		if kaErr != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("registry_keepalive_failed", "error", kaErr)
			err = fmt.Errorf("%w: %w", ErrHeartbeatStopped, kaErr)
			return
		}
		log.Debug("registry_keepalive")
	}
}
