// Package cache defines the advisory token cache the engine consults before
// minting a new pair. Entries are keyed by subject and kind, hold the wire
// form of a token and expire on their own. Nothing here is a source of
// truth: a miss or an error only ever costs a re-sign.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// KeyPrefix namespaces every cache entry.
const KeyPrefix = "auth:token:"

// ErrClosed is returned by drivers used after Close.
var ErrClosed = errors.New("cache: closed")

// Cache is a TTL key/value store of signed tokens. Writes are last-write-wins
// and no driver performs locking across keys.
type Cache interface {
	// Get returns the wire token for (sub, kind). ok is false on a miss.
	Get(ctx context.Context, sub string, kind tokenx.Kind) (wire string, ok bool, err error)

	// Set stores wire under (sub, kind) for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, sub string, kind tokenx.Kind, wire string, ttl time.Duration) error

	// Del removes the entry. Deleting a missing entry is not an error.
	Del(ctx context.Context, sub string, kind tokenx.Kind) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Purger is implemented by drivers that keep expired rows around until a
// sweep removes them.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Key renders the storage key for (sub, kind), e.g. "auth:token:u1:access".
func Key(sub string, kind tokenx.Kind) string {
	return KeyPrefix + sub + ":" + kind.String()
}

// TTL is how long an entry for a token expiring at exp should live when
// written at now: max(exp-now, 2*Leeway) - Leeway. Entries therefore vanish
// a leeway before the token itself stops being accepted, and never live for
// less than one leeway.
func TTL(now time.Time, exp int64) time.Duration {
	remaining := time.Duration(exp-now.Unix()) * time.Second
	return max(remaining, 2*tokenx.Leeway) - tokenx.Leeway
}
