package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps documents in the client_state table
type PostgresStore struct {
	db     *sql.DB
	prefix string
}

// NewPostgresStore creates a new PostgresStore. The table is created by the
// database migrations.
func NewPostgresStore(db *sql.DB, prefix string) *PostgresStore {
	return &PostgresStore{db: db, prefix: prefix}
}

func (p *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM client_state WHERE namespace = $1 AND key = $2`

	var value []byte
	err := p.db.QueryRowContext(ctx, query, p.prefix, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load client state: %w", err)
	}
	return value, nil
}

func (p *PostgresStore) Save(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO client_state (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := p.db.ExecContext(ctx, query, p.prefix, key, string(value)); err != nil {
		return fmt.Errorf("failed to save client state: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	query := `DELETE FROM client_state WHERE namespace = $1 AND key = $2`

	for _, key := range keys {
		if _, err := p.db.ExecContext(ctx, query, p.prefix, key); err != nil {
			return fmt.Errorf("failed to delete client state: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
