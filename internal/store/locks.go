package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultLeaseTTL bounds how long a generation run may hold a tier lock
// without renewing. A crashed worker's lock becomes stealable after this.
const DefaultLeaseTTL = 2 * time.Minute

// AcquireLease claims the generation lock for a tier on behalf of owner.
// The claim succeeds when no run is in progress or when the previous
// holder's lease has expired. Returns false when another live run holds
// the tier.
func (s *Store) AcquireLease(ctx context.Context, tier string, owner uuid.UUID, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	const q = `
INSERT INTO generation_locks (tier, owner, in_progress, locked_at, expires_at)
VALUES ($1, $2, TRUE, NOW(), NOW() + make_interval(secs => $3))
ON CONFLICT (tier) DO UPDATE
SET owner = EXCLUDED.owner,
    in_progress = TRUE,
    locked_at = NOW(),
    expires_at = NOW() + make_interval(secs => $3)
WHERE generation_locks.in_progress = FALSE
   OR generation_locks.expires_at < NOW()`
	res, err := s.conn.ExecCtx(ctx, q, tier, owner, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("acquire lease tier=%s: %w", tier, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// RenewLease extends the expiry of a lease still held by owner. Returns
// false when the lease was lost (stolen after expiry or released).
func (s *Store) RenewLease(ctx context.Context, tier string, owner uuid.UUID, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	const q = `
UPDATE generation_locks
SET expires_at = NOW() + make_interval(secs => $3)
WHERE tier = $1 AND owner = $2 AND in_progress = TRUE`
	res, err := s.conn.ExecCtx(ctx, q, tier, owner, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("renew lease tier=%s: %w", tier, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ReleaseLease marks the tier idle. The owner check means a run that lost
// its lease mid-flight cannot release the new holder's claim.
func (s *Store) ReleaseLease(ctx context.Context, tier string, owner uuid.UUID) error {
	const q = `
UPDATE generation_locks
SET in_progress = FALSE
WHERE tier = $1 AND owner = $2`
	if _, err := s.conn.ExecCtx(ctx, q, tier, owner); err != nil {
		return fmt.Errorf("release lease tier=%s: %w", tier, err)
	}
	return nil
}
