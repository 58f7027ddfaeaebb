package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"soldi/internal/core"
)

const transactionColumns = `
	id, user_id, account_id, type, amount_cents, description, date, category,
	receipt_url, is_recurring, recurring_interval, next_recurring_date,
	last_processed, status, created_at, updated_at`

// CreateTransaction inserts the transaction and applies its signed
// amount to the owning account's balance as one atomic unit. The
// account must exist and belong to the transaction's user.
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var accountID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM accounts WHERE id = ? AND user_id = ?`,
			t.AccountID.String(), t.UserID.String(),
		).Scan(&accountID)
		if err == sql.ErrNoRows {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find account: %w", err)
		}

		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		return incrementBalance(ctx, tx, t.AccountID, signedCents(t.Type, core.Cents(t.Amount)))
	})
}

func (r *Repository) GetTransaction(ctx context.Context, id, userID uuid.UUID) (core.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
	if err == sql.ErrNoRows {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, err
}

func (r *Repository) ListTransactionsByAccount(ctx context.Context, accountID, userID uuid.UUID) ([]core.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions WHERE account_id = ? AND user_id = ? ORDER BY date DESC, created_at DESC`
	return r.queryTransactions(ctx, query, accountID.String(), userID.String())
}

func (r *Repository) ListRecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]core.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC LIMIT ?`
	return r.queryTransactions(ctx, query, userID.String(), limit)
}

// ListTransactionsInRange returns the user's transactions with an
// effective date inside [start, end].
func (r *Repository) ListTransactionsInRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]core.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date`
	return r.queryTransactions(ctx, query, userID.String(), start.UTC(), end.UTC())
}

// UpdateTransaction rewrites the transaction and applies the net
// balance change (new signed amount minus old) to the account, moving
// value between accounts when the owning account changed. The
// destination account must belong to the transaction's user. One atomic
// unit covers the rewrite and every balance touch.
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		oldQuery := `SELECT` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`
		old, err := scanTransaction(tx.QueryRowContext(ctx, oldQuery, t.ID.String(), t.UserID.String()))
		if err == sql.ErrNoRows {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}

		if t.AccountID != old.AccountID {
			var accountID string
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM accounts WHERE id = ? AND user_id = ?`,
				t.AccountID.String(), t.UserID.String(),
			).Scan(&accountID)
			if err == sql.ErrNoRows {
				return core.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("find account: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET
				account_id = ?, type = ?, amount_cents = ?, description = ?,
				date = ?, category = ?, receipt_url = ?, is_recurring = ?,
				recurring_interval = ?, next_recurring_date = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			t.AccountID.String(), string(t.Type), core.Cents(t.Amount), t.Description,
			t.Date.UTC(), t.Category, t.ReceiptURL, boolToInt(t.IsRecurring),
			nullString(string(t.RecurringInterval)), nullTime(t.NextRecurringDate),
			time.Now().UTC(), t.ID.String(), t.UserID.String(),
		)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		oldSigned := signedCents(old.Type, core.Cents(old.Amount))
		newSigned := signedCents(t.Type, core.Cents(t.Amount))

		if t.AccountID == old.AccountID {
			return incrementBalance(ctx, tx, t.AccountID, newSigned-oldSigned)
		}
		if err := incrementBalance(ctx, tx, old.AccountID, -oldSigned); err != nil {
			return err
		}
		return incrementBalance(ctx, tx, t.AccountID, newSigned)
	})
}

// DeleteTransactions removes the given transactions owned by the user
// and reverses their balance contributions, one aggregated update per
// affected account, all inside a single atomic unit. Unknown or foreign
// ids are ignored. Returns the number of rows deleted.
func (r *Repository) DeleteTransactions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args = append(args, userID.String())

	var deleted int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT account_id, type, amount_cents FROM transactions
			WHERE id IN (`+placeholders+`) AND user_id = ?`, args...)
		if err != nil {
			return fmt.Errorf("find transactions: %w", err)
		}

		deltas := make(map[string]int64)
		for rows.Next() {
			var (
				accountID string
				txType    string
				cents     int64
			)
			if err := rows.Scan(&accountID, &txType, &cents); err != nil {
				rows.Close()
				return fmt.Errorf("scan transaction: %w", err)
			}
			// Removing a transaction reverses its contribution.
			deltas[accountID] -= signedCents(core.TransactionType(txType), cents)
			deleted++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM transactions WHERE id IN (`+placeholders+`) AND user_id = ?`, args...); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}

		for accountID, delta := range deltas {
			id, err := parseUUID(accountID)
			if err != nil {
				return err
			}
			if err := incrementBalance(ctx, tx, id, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListDueRecurring selects recurring transactions eligible to fire:
// completed, and either never processed or past their next scheduled
// date. Pure read; safe to re-run after partial failures.
func (r *Repository) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE is_recurring = 1 AND status = ?
		  AND (last_processed IS NULL OR next_recurring_date <= ?)`
	return r.queryTransactions(ctx, query, string(core.StatusCompleted), now.UTC())
}

// ProcessDueTransaction fires one recurrence: it re-checks the due
// predicate, creates the generated instance, applies the balance
// change, and advances the schedule. All four steps commit together or
// not at all, and a transaction that is no longer due returns ErrNotDue
// without writing anything, which makes duplicate deliveries harmless.
func (r *Repository) ProcessDueTransaction(ctx context.Context, transactionID, userID uuid.UUID, now time.Time) (core.Transaction, error) {
	var created core.Transaction

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = ? AND user_id = ?`
		tmpl, err := scanTransaction(tx.QueryRowContext(ctx, query, transactionID.String(), userID.String()))
		if err == sql.ErrNoRows {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find recurring transaction: %w", err)
		}

		if !tmpl.IsRecurring || tmpl.Status != core.StatusCompleted || !tmpl.RecurringInterval.Valid() {
			return core.ErrNotDue
		}
		if tmpl.LastProcessed != nil && (tmpl.NextRecurringDate == nil || tmpl.NextRecurringDate.After(now)) {
			return core.ErrNotDue
		}

		created = core.Transaction{
			ID:          uuid.New(),
			UserID:      tmpl.UserID,
			AccountID:   tmpl.AccountID,
			Type:        tmpl.Type,
			Amount:      tmpl.Amount,
			Description: tmpl.Description + " (Recurring)",
			Date:        now.UTC(),
			Category:    tmpl.Category,
			Status:      core.StatusCompleted,
		}
		if err := insertTransaction(ctx, tx, created); err != nil {
			return err
		}

		if err := incrementBalance(ctx, tx, tmpl.AccountID, signedCents(tmpl.Type, core.Cents(tmpl.Amount))); err != nil {
			return err
		}

		next := core.NextOccurrence(now.UTC(), tmpl.RecurringInterval)
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET last_processed = ?, next_recurring_date = ?, updated_at = ?
			WHERE id = ?`,
			now.UTC(), next, time.Now().UTC(), tmpl.ID.String(),
		); err != nil {
			return fmt.Errorf("advance recurring schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return created, nil
}

// SumExpensesSince returns the total expense cents on one account for
// transactions dated on or after the given instant.
func (r *Repository) SumExpensesSince(ctx context.Context, userID, accountID uuid.UUID, since time.Time) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND account_id = ? AND type = ? AND date >= ?`

	var total int64
	err := r.db.QueryRowContext(ctx, query,
		userID.String(), accountID.String(), string(core.Expense), since.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

// MonthlyStats aggregates a user's transactions inside [start, end]:
// income and expense totals plus expense sums per category.
type MonthlyStats struct {
	TotalIncomeCents  int64
	TotalExpenseCents int64
	ByCategoryCents   map[string]int64
	TransactionCount  int
}

func (r *Repository) GetMonthlyStats(ctx context.Context, userID uuid.UUID, start, end time.Time) (MonthlyStats, error) {
	stats := MonthlyStats{ByCategoryCents: make(map[string]int64)}

	const totals = `
		SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ? GROUP BY type`

	rows, err := r.db.QueryContext(ctx, totals, userID.String(), start.UTC(), end.UTC())
	if err != nil {
		return stats, fmt.Errorf("aggregate totals: %w", err)
	}
	for rows.Next() {
		var (
			txType string
			sum    int64
			count  int
		)
		if err := rows.Scan(&txType, &sum, &count); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan totals: %w", err)
		}
		switch core.TransactionType(txType) {
		case core.Income:
			stats.TotalIncomeCents = sum
		case core.Expense:
			stats.TotalExpenseCents = sum
		}
		stats.TransactionCount += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	const byCategory = `
		SELECT category, COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND type = ? AND date >= ? AND date <= ? GROUP BY category`

	rows, err = r.db.QueryContext(ctx, byCategory, userID.String(), string(core.Expense), start.UTC(), end.UTC())
	if err != nil {
		return stats, fmt.Errorf("aggregate categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			sum      int64
		)
		if err := rows.Scan(&category, &sum); err != nil {
			return stats, fmt.Errorf("scan categories: %w", err)
		}
		stats.ByCategoryCents[category] = sum
	}
	return stats, rows.Err()
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, account_id, type, amount_cents, description, date,
			category, receipt_url, is_recurring, recurring_interval,
			next_recurring_date, last_processed, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.UserID.String(), t.AccountID.String(), string(t.Type),
		core.Cents(t.Amount), t.Description, t.Date.UTC(), t.Category,
		t.ReceiptURL, boolToInt(t.IsRecurring), nullString(string(t.RecurringInterval)),
		nullTime(t.NextRecurringDate), nullTime(t.LastProcessed),
		string(t.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func incrementBalance(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, deltaCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
		deltaCents, accountID.String(),
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
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

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		id, userID, acctID   string
		txType, status       string
		amountCents          int64
		isRecurring          int
		interval             sql.NullString
		nextDate, lastProc   sql.NullTime
	)
	err := row.Scan(
		&id, &userID, &acctID, &txType, &amountCents, &t.Description, &t.Date,
		&t.Category, &t.ReceiptURL, &isRecurring, &interval, &nextDate,
		&lastProc, &status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.ID, err = parseUUID(id); err != nil {
		return core.Transaction{}, err
	}
	if t.UserID, err = parseUUID(userID); err != nil {
		return core.Transaction{}, err
	}
	if t.AccountID, err = parseUUID(acctID); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(txType)
	t.Status = core.TransactionStatus(status)
	t.Amount = core.FromCents(amountCents)
	t.IsRecurring = isRecurring != 0
	if interval.Valid {
		t.RecurringInterval = core.Interval(interval.String)
	}
	if nextDate.Valid {
		next := nextDate.Time
		t.NextRecurringDate = &next
	}
	if lastProc.Valid {
		last := lastProc.Time
		t.LastProcessed = &last
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
