package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// releaseLua deletes the lease key only if its value matches the holder's
// token, so one worker cannot release a lease a newer worker re-acquired.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// renewLua extends the TTL only while the holder's token is still in place.
const renewLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LeaseManager implements domain.LeaseManager using Redis SETNX with a TTL.
// It is how the deployment enforces the "exactly one scheduler instance"
// rule: the lifecycle worker refuses to start while another holder exists.
type LeaseManager struct {
	rdb       *redis.Client
	releaseSc *redis.Script
	renewSc   *redis.Script
}

// NewLeaseManager creates a LeaseManager backed by the given Client.
func NewLeaseManager(c *Client) *LeaseManager {
	return &LeaseManager{
		rdb:       c.Underlying(),
		releaseSc: redis.NewScript(releaseLua),
		renewSc:   redis.NewScript(renewLua),
	}
}

func leaseKey(key string) string {
	return "lease:" + key
}

// lease is a held lease handle.
type lease struct {
	mgr      *LeaseManager
	key      string
	token    string
	ttl      time.Duration
	released bool
}

// Acquire obtains the lease for key, or returns domain.ErrLeaseHeld when
// another worker holds it.
func (lm *LeaseManager) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	token := uuid.New().String()
	lk := leaseKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLeaseHeld
	}

	return &lease{mgr: lm, key: lk, token: token, ttl: ttl}, nil
}

// Renew extends the lease TTL. It fails when the lease expired and someone
// else took it over; the holder must then stop driving the scheduler.
func (l *lease) Renew(ctx context.Context) error {
	n, err := l.mgr.renewSc.Run(ctx, l.mgr.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis: renew lease %s: %w", l.key, err)
	}
	if n == 0 {
		return domain.ErrLeaseHeld
	}
	return nil
}

// Release gives the lease up. Safe to call more than once. A background
// context is used so release succeeds even during shutdown when the caller's
// context is already cancelled.
func (l *lease) Release() {
	if l.released {
		return
	}
	l.released = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = l.mgr.releaseSc.Run(ctx, l.mgr.rdb, []string{l.key}, l.token).Err()
}

// Compile-time interface check.
var _ domain.LeaseManager = (*LeaseManager)(nil)
