package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soldi/internal/core"
)

// EnsureUser returns the user for the identity provider's opaque id,
// provisioning a row on first sight. Email and name are refreshed when
// the provider sends non-empty values.
func (r *Repository) EnsureUser(ctx context.Context, externalID, email, name string) (core.User, error) {
	const insert = `
		INSERT INTO users (id, external_id, email, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE users.email END,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END`

	if _, err := r.db.ExecContext(ctx, insert, uuid.New().String(), externalID, email, name, time.Now().UTC()); err != nil {
		return core.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return r.GetUserByExternalID(ctx, externalID)
}

func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (core.User, error) {
	const query = `SELECT id, external_id, email, name, created_at FROM users WHERE external_id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (core.User, error) {
	const query = `SELECT id, external_id, email, name, created_at FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id.String()))
}

// ListUsers returns every user, for the monthly report run.
func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	const query = `SELECT id, external_id, email, name, created_at FROM users ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var (
			u  core.User
			id string
		)
		if err := rows.Scan(&id, &u.ExternalID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.ID, err = parseUUID(id); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) scanUser(row *sql.Row) (core.User, error) {
	var (
		u  core.User
		id string
	)
	err := row.Scan(&id, &u.ExternalID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.ID, err = parseUUID(id); err != nil {
		return core.User{}, err
	}
	return u, nil
}
