package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soldi/internal/core"
)

func (r *Repository) GetBudget(ctx context.Context, userID uuid.UUID) (core.Budget, error) {
	const query = `
		SELECT id, user_id, amount_cents, last_alert_sent, created_at, updated_at
		FROM budgets WHERE user_id = ?`

	b, err := scanBudget(r.db.QueryRowContext(ctx, query, userID.String()))
	if err == sql.ErrNoRows {
		return core.Budget{}, core.ErrNotFound
	}
	return b, err
}

// UpsertBudget creates or replaces the user's single monthly budget
// ceiling. The alert timestamp survives amount changes.
func (r *Repository) UpsertBudget(ctx context.Context, userID uuid.UUID, amountCents int64) (core.Budget, error) {
	now := time.Now().UTC()
	const upsert = `
		INSERT INTO budgets (id, user_id, amount_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, upsert, uuid.New().String(), userID.String(), amountCents, now, now); err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return r.GetBudget(ctx, userID)
}

// MarkBudgetAlertSent records when the threshold alert went out; the
// calendar month of this timestamp is the dedupe key.
func (r *Repository) MarkBudgetAlertSent(ctx context.Context, budgetID uuid.UUID, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE id = ?`,
		sentAt.UTC(), time.Now().UTC(), budgetID.String(),
	)
	if err != nil {
		return fmt.Errorf("mark alert sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// BudgetAlertCandidate joins a budget with the data the alert evaluator
// needs: the owner's contact details and their default account.
type BudgetAlertCandidate struct {
	Budget      core.Budget
	UserEmail   string
	UserName    string
	AccountID   uuid.UUID
	AccountName string
}

// ListBudgetAlertCandidates returns every budget whose owner has a
// default account. Budgets without one are skipped; there is nothing to
// evaluate against.
func (r *Repository) ListBudgetAlertCandidates(ctx context.Context) ([]BudgetAlertCandidate, error) {
	const query = `
		SELECT b.id, b.user_id, b.amount_cents, b.last_alert_sent, b.created_at, b.updated_at,
		       u.email, u.name, a.id, a.name
		FROM budgets b
		JOIN users u ON u.id = b.user_id
		JOIN accounts a ON a.user_id = b.user_id AND a.is_default = 1`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list budget alert candidates: %w", err)
	}
	defer rows.Close()

	var candidates []BudgetAlertCandidate
	for rows.Next() {
		var (
			c             BudgetAlertCandidate
			id, userID    string
			amountCents   int64
			lastAlertSent sql.NullTime
			accountID     string
		)
		err := rows.Scan(
			&id, &userID, &amountCents, &lastAlertSent, &c.Budget.CreatedAt, &c.Budget.UpdatedAt,
			&c.UserEmail, &c.UserName, &accountID, &c.AccountName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan budget alert candidate: %w", err)
		}
		if c.Budget.ID, err = parseUUID(id); err != nil {
			return nil, err
		}
		if c.Budget.UserID, err = parseUUID(userID); err != nil {
			return nil, err
		}
		if c.AccountID, err = parseUUID(accountID); err != nil {
			return nil, err
		}
		c.Budget.Amount = core.FromCents(amountCents)
		if lastAlertSent.Valid {
			sent := lastAlertSent.Time
			c.Budget.LastAlertSent = &sent
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func scanBudget(row *sql.Row) (core.Budget, error) {
	var (
		b             core.Budget
		id, userID    string
		amountCents   int64
		lastAlertSent sql.NullTime
	)
	err := row.Scan(&id, &userID, &amountCents, &lastAlertSent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	if b.ID, err = parseUUID(id); err != nil {
		return core.Budget{}, err
	}
	if b.UserID, err = parseUUID(userID); err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.FromCents(amountCents)
	if lastAlertSent.Valid {
		sent := lastAlertSent.Time
		b.LastAlertSent = &sent
	}
	return b, nil
}
