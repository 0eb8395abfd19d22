package insurance

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore implements Store with PostgreSQL. One row per player; a new
// purchase replaces the old row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Put upserts a player's policy.
func (p *PostgresStore) Put(ctx context.Context, policy *Policy) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO insurance_policies
			(id, player_id, coverage, premium, duration_seconds, purchased_at, expires_at, max_payout, claims_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (player_id) DO UPDATE SET
			id = EXCLUDED.id,
			coverage = EXCLUDED.coverage,
			premium = EXCLUDED.premium,
			duration_seconds = EXCLUDED.duration_seconds,
			purchased_at = EXCLUDED.purchased_at,
			expires_at = EXCLUDED.expires_at,
			max_payout = EXCLUDED.max_payout,
			claims_remaining = EXCLUDED.claims_remaining
	`, policy.ID, policy.PlayerID, policy.Coverage, policy.Premium,
		int64(policy.Duration/time.Second), policy.PurchasedAt, policy.ExpiresAt,
		policy.MaxPayout, policy.ClaimsRemaining)
	if err != nil {
		return fmt.Errorf("insurance: put policy: %w", err)
	}
	return nil
}

// Get returns a player's policy.
func (p *PostgresStore) Get(ctx context.Context, playerID string) (*Policy, error) {
	policy := &Policy{}
	var durationSeconds int64
	err := p.db.QueryRowContext(ctx, `
		SELECT id, player_id, coverage, premium, duration_seconds, purchased_at, expires_at, max_payout, claims_remaining
		FROM insurance_policies WHERE player_id = $1
	`, playerID).Scan(&policy.ID, &policy.PlayerID, &policy.Coverage, &policy.Premium,
		&durationSeconds, &policy.PurchasedAt, &policy.ExpiresAt,
		&policy.MaxPayout, &policy.ClaimsRemaining)
	if err == sql.ErrNoRows {
		return nil, errPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insurance: get policy: %w", err)
	}
	policy.Duration = time.Duration(durationSeconds) * time.Second
	return policy, nil
}

// Update overwrites a player's stored policy.
func (p *PostgresStore) Update(ctx context.Context, policy *Policy) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE insurance_policies
		SET claims_remaining = $2, expires_at = $3
		WHERE player_id = $1
	`, policy.PlayerID, policy.ClaimsRemaining, policy.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insurance: update policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insurance: update policy: %w", err)
	}
	if affected == 0 {
		return errPolicyNotFound
	}
	return nil
}
