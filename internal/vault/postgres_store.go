package vault

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbd888/vaultbreak/internal/idgen"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed vault store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// GetBalance retrieves a player's balance, zero for unknown players.
func (p *PostgresStore) GetBalance(ctx context.Context, playerID string) (*Balance, error) {
	bal := &Balance{PlayerID: playerID}

	err := p.db.QueryRowContext(ctx, `
		SELECT available, total_in, total_out, updated_at
		FROM vault_balances WHERE player_id = $1
	`, playerID).Scan(&bal.Available, &bal.TotalIn, &bal.TotalOut, &bal.UpdatedAt)

	if err == sql.ErrNoRows {
		return &Balance{PlayerID: playerID, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: get balance: %w", err)
	}
	return bal, nil
}

// Apply adjusts a balance and appends the ledger entry in one transaction.
// The chk_available_nonneg constraint is the last line of defense against a
// negative balance slipping through.
func (p *PostgresStore) Apply(ctx context.Context, playerID string, delta int64, entryType EntryType, reference string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vault: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var available int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vault_balances (player_id, available, total_in, total_out, updated_at)
		VALUES ($1, 0, 0, 0, NOW())
		ON CONFLICT (player_id) DO UPDATE SET player_id = EXCLUDED.player_id
		RETURNING available
	`, playerID).Scan(&available)
	if err != nil {
		return fmt.Errorf("vault: lock balance: %w", err)
	}

	if available+delta < 0 {
		return fmt.Errorf("%w: balance %d, delta %d", ErrCannotAfford, available, delta)
	}

	totalIn, totalOut := int64(0), int64(0)
	if delta > 0 {
		totalIn = delta
	} else {
		totalOut = -delta
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vault_balances
		SET available = available + $2,
		    total_in  = total_in + $3,
		    total_out = total_out + $4,
		    updated_at = NOW()
		WHERE player_id = $1
	`, playerID, delta, totalIn, totalOut); err != nil {
		return fmt.Errorf("vault: update balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vault_entries (id, player_id, type, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, idgen.WithPrefix("txn_"), playerID, string(entryType), delta, reference); err != nil {
		return fmt.Errorf("vault: insert entry: %w", err)
	}

	return tx.Commit()
}

// History returns a player's entries, newest first.
func (p *PostgresStore) History(ctx context.Context, playerID string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, player_id, type, amount, COALESCE(reference, ''), created_at
		FROM vault_entries
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("vault: history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var entryType string
		if err := rows.Scan(&e.ID, &e.PlayerID, &entryType, &e.Amount, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("vault: scan entry: %w", err)
		}
		e.Type = EntryType(entryType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
