package postgres

import (
	"context"
	"database/sql"
	"errors"

	"lexdesk/internal/repository"
)

// ClientStoragePostgres keeps the durable client slots in the client_storage table.
// It uses database/sql with parameterized queries and contains no business logic.
type ClientStoragePostgres struct {
	db *sql.DB
}

// NewClientStoragePostgres creates a new ClientStoragePostgres repository.
func NewClientStoragePostgres(db *sql.DB) *ClientStoragePostgres {
	return &ClientStoragePostgres{db: db}
}

var _ repository.ClientStorage = (*ClientStoragePostgres)(nil)

// Get fetches the value of a single slot.
func (r *ClientStoragePostgres) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM client_storage WHERE key = $1`
	var value string
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set upserts a slot.
func (r *ClientStoragePostgres) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO client_storage (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, q, key, value)
	return err
}

// Delete removes a slot. It does not return an error if the row does not exist.
func (r *ClientStoragePostgres) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM client_storage WHERE key = $1`
	_, err := r.db.ExecContext(ctx, q, key)
	return err
}
