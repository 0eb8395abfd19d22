package heist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// RecordAttack appends an attack settlement record.
func (p *PostgresStore) RecordAttack(ctx context.Context, result *AttackResult) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attack_results
			(id, player_id, target_id, target_name, success, module_scores, total_score, stake_paid, loot_gained, platform_fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, result.ID, result.PlayerID, result.TargetID, result.TargetName, result.Success,
		pq.Array(result.ModuleScores), result.TotalScore, result.StakePaid,
		result.LootGained, result.PlatformFee, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("heist: record attack: %w", err)
	}
	return nil
}

// RecordDefense appends a defense settlement record.
func (p *PostgresStore) RecordDefense(ctx context.Context, event *DefenseEvent) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO defense_events
			(id, player_id, attacker_name, success, fee_earned, loot_lost, insurance_payout, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.PlayerID, event.AttackerName, event.Success,
		event.FeeEarned, event.LootLost, event.InsurancePayout, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("heist: record defense: %w", err)
	}
	return nil
}

// ListAttacks returns a player's attack records, newest first.
func (p *PostgresStore) ListAttacks(ctx context.Context, playerID string, limit int) ([]*AttackResult, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, player_id, target_id, target_name, success, module_scores, total_score, stake_paid, loot_gained, platform_fee, created_at
		FROM attack_results
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("heist: list attacks: %w", err)
	}
	defer rows.Close()

	var results []*AttackResult
	for rows.Next() {
		r := &AttackResult{}
		var scores pq.Float64Array
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.TargetID, &r.TargetName, &r.Success,
			&scores, &r.TotalScore, &r.StakePaid, &r.LootGained, &r.PlatformFee, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("heist: scan attack: %w", err)
		}
		r.ModuleScores = []float64(scores)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListDefenses returns a player's defense records, newest first.
func (p *PostgresStore) ListDefenses(ctx context.Context, playerID string, limit int) ([]*DefenseEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, player_id, attacker_name, success, fee_earned, loot_lost, insurance_payout, created_at
		FROM defense_events
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("heist: list defenses: %w", err)
	}
	defer rows.Close()

	var events []*DefenseEvent
	for rows.Next() {
		e := &DefenseEvent{}
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.AttackerName, &e.Success,
			&e.FeeEarned, &e.LootLost, &e.InsurancePayout, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("heist: scan defense: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
