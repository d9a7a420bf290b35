package registry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultGrantTTL          = 61 * time.Second
	DefaultKeepAliveInterval = 20 * time.Second
)

// ErrInvalidLease is returned for a lease whose keep-alive interval would
// let it expire between heartbeats.
var ErrInvalidLease = errors.New("registry: grant TTL must exceed keep-alive interval")

// Lease is the timing of a registration. The key lives for GrantTTL after
// the last heartbeat; heartbeats are sent every KeepAlive.
type Lease struct {
	GrantTTL  time.Duration
	KeepAlive time.Duration
}

// DefaultLease returns a 61s lease renewed every 20s.
func DefaultLease() Lease {
	return Lease{GrantTTL: DefaultGrantTTL, KeepAlive: DefaultKeepAliveInterval}
}

func NewLease(grantTTL, keepAlive time.Duration) (Lease, error) {
	l := Lease{GrantTTL: grantTTL, KeepAlive: keepAlive}
	if err := l.Validate(); err != nil {
		return Lease{}, err
	}
	return l, nil
}

func (l Lease) Validate() error {
	if l.KeepAlive <= 0 {
		return fmt.Errorf("%w: keep-alive %s", ErrInvalidLease, l.KeepAlive)
	}
	if l.GrantTTL <= l.KeepAlive {
		return fmt.Errorf("%w: ttl %s, keep-alive %s", ErrInvalidLease, l.GrantTTL, l.KeepAlive)
	}
	return nil
}

// ttlSeconds is the TTL in whole seconds as etcd expects it, rounded up.
func (l Lease) ttlSeconds() int64 {
	return int64(math.Ceil(l.GrantTTL.Seconds()))
}
