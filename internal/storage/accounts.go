package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soldi/internal/core"
)

// CreateAccount inserts a new account. A user's first account always
// becomes the default; asking for default on a later account demotes
// the current one inside the same transaction, keeping exactly one
// default per user.
func (r *Repository) CreateAccount(ctx context.Context, a core.Account) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE user_id = ?`, a.UserID.String(),
		).Scan(&existing); err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}

		isDefault := a.IsDefault || existing == 0
		if isDefault && existing > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_default = 0 WHERE user_id = ? AND is_default = 1`,
				a.UserID.String(),
			); err != nil {
				return fmt.Errorf("clear default account: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, user_id, name, type, balance_cents, is_default, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID.String(), a.UserID.String(), a.Name, string(a.Type),
			core.Cents(a.Balance), boolToInt(isDefault), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetAccount(ctx context.Context, id, userID uuid.UUID) (core.Account, error) {
	const query = `
		SELECT id, user_id, name, type, balance_cents, is_default, created_at
		FROM accounts WHERE id = ? AND user_id = ?`
	return scanAccount(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
}

// GetDefaultAccount returns the user's default account, or ErrNotFound
// when the user has none.
func (r *Repository) GetDefaultAccount(ctx context.Context, userID uuid.UUID) (core.Account, error) {
	const query = `
		SELECT id, user_id, name, type, balance_cents, is_default, created_at
		FROM accounts WHERE user_id = ? AND is_default = 1`
	return scanAccount(r.db.QueryRowContext(ctx, query, userID.String()))
}

func (r *Repository) ListAccounts(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	const query = `
		SELECT id, user_id, name, type, balance_cents, is_default, created_at
		FROM accounts WHERE user_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetDefaultAccount makes the given account the user's only default.
// Clear-then-set runs inside one transaction so no observer ever sees
// zero or two defaults.
func (r *Repository) SetDefaultAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 0 WHERE user_id = ? AND is_default = 1`,
			userID.String(),
		); err != nil {
			return fmt.Errorf("clear default account: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1 WHERE id = ? AND user_id = ?`,
			accountID.String(), userID.String(),
		)
		if err != nil {
			return fmt.Errorf("set default account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (core.Account, error) {
	a, err := scanAccountRow(row)
	if err == sql.ErrNoRows {
		return core.Account{}, core.ErrNotFound
	}
	return a, err
}

func scanAccountRow(row rowScanner) (core.Account, error) {
	var (
		a            core.Account
		id, userID   string
		accountType  string
		balanceCents int64
		isDefault    int
	)
	err := row.Scan(&id, &userID, &a.Name, &accountType, &balanceCents, &isDefault, &a.CreatedAt)
	if err != nil {
		return core.Account{}, err
	}
	if a.ID, err = parseUUID(id); err != nil {
		return core.Account{}, err
	}
	if a.UserID, err = parseUUID(userID); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(accountType)
	a.Balance = core.FromCents(balanceCents)
	a.IsDefault = isDefault != 0
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
