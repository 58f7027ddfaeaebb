package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *Repository) core.User {
	t.Helper()
	user, err := repo.EnsureUser(context.Background(), uuid.New().String(), "user@example.com", "Test User")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	return user
}

func seedAccount(t *testing.T, repo *Repository, userID uuid.UUID, balance string) core.Account {
	t.Helper()
	account := core.Account{
		ID:      uuid.New(),
		UserID:  userID,
		Name:    "Checking",
		Type:    core.AccountCurrent,
		Balance: decimal.RequireFromString(balance),
	}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return account
}

func mustBalance(t *testing.T, repo *Repository, accountID, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := repo.GetAccount(context.Background(), accountID, userID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return account.Balance
}

func newTransaction(userID, accountID uuid.UUID, txType core.TransactionType, amount string) core.Transaction {
	return core.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		AccountID:   accountID,
		Type:        txType,
		Amount:      decimal.RequireFromString(amount),
		Description: "test transaction",
		Date:        time.Now().UTC(),
		Category:    "groceries",
		Status:      core.StatusCompleted,
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.EnsureUser(ctx, "ext-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	second, err := repo.EnsureUser(ctx, "ext-1", "", "")
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same external id produced two users: %s and %s", first.ID, second.ID)
	}
	if second.Email != "a@example.com" {
		t.Errorf("empty email overwrote stored value: %q", second.Email)
	}
}

func TestFirstAccountBecomesDefault(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)

	first := seedAccount(t, repo, user.ID, "100")
	got, err := repo.GetAccount(ctx, first.ID, user.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.IsDefault {
		t.Error("first account is not default")
	}

	second := core.Account{ID: uuid.New(), UserID: user.ID, Name: "Savings", Type: core.AccountSavings, Balance: decimal.Zero, IsDefault: true}
	if err := repo.CreateAccount(ctx, second); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	accounts, err := repo.ListAccounts(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	defaults := 0
	for _, a := range accounts {
		if a.IsDefault {
			defaults++
			if a.ID != second.ID {
				t.Errorf("wrong default account: %s", a.ID)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("got %d default accounts, want exactly 1", defaults)
	}
}

func TestSetDefaultAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	first := seedAccount(t, repo, user.ID, "0")
	second := seedAccount(t, repo, user.ID, "0")

	if err := repo.SetDefaultAccount(ctx, user.ID, second.ID); err != nil {
		t.Fatalf("SetDefaultAccount: %v", err)
	}

	got, err := repo.GetDefaultAccount(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetDefaultAccount: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("default = %s, want %s", got.ID, second.ID)
	}

	old, err := repo.GetAccount(ctx, first.ID, user.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if old.IsDefault {
		t.Error("previous default was not demoted")
	}

	if err := repo.SetDefaultAccount(ctx, user.ID, uuid.New()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown account error = %v, want ErrNotFound", err)
	}
}

func TestCreateTransactionAdjustsBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "1000.00")

	if err := repo.CreateTransaction(ctx, newTransaction(user.ID, account.ID, core.Expense, "50.00")); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(decimal.RequireFromString("950.00")) {
		t.Errorf("balance after expense = %s, want 950.00", got)
	}

	if err := repo.CreateTransaction(ctx, newTransaction(user.ID, account.ID, core.Income, "200.00")); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(decimal.RequireFromString("1150.00")) {
		t.Errorf("balance after income = %s, want 1150.00", got)
	}
}

func TestCreateTransactionForeignAccountRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo)
	intruder := seedUser(t, repo)
	account := seedAccount(t, repo, owner.ID, "100")

	err := repo.CreateTransaction(ctx, newTransaction(intruder.ID, account.ID, core.Expense, "10"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	// Nothing may persist from the rejected unit.
	if got := mustBalance(t, repo, account.ID, owner.ID); !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("balance changed to %s after rejected create", got)
	}
}

func TestUpdateTransactionAppliesNetDelta(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "1000.00")

	tr := newTransaction(user.ID, account.ID, core.Expense, "50.00")
	if err := repo.CreateTransaction(ctx, tr); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	tr.Amount = decimal.RequireFromString("80.00")
	if err := repo.UpdateTransaction(ctx, tr); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(decimal.RequireFromString("920.00")) {
		t.Errorf("balance after amount change = %s, want 920.00", got)
	}

	tr.Type = core.Income
	if err := repo.UpdateTransaction(ctx, tr); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(decimal.RequireFromString("1080.00")) {
		t.Errorf("balance after type flip = %s, want 1080.00", got)
	}
}

func TestUpdateTransactionMovesBetweenAccounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	source := seedAccount(t, repo, user.ID, "500.00")
	target := seedAccount(t, repo, user.ID, "500.00")

	tr := newTransaction(user.ID, source.ID, core.Expense, "100.00")
	if err := repo.CreateTransaction(ctx, tr); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	tr.AccountID = target.ID
	if err := repo.UpdateTransaction(ctx, tr); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	if got := mustBalance(t, repo, source.ID, user.ID); !got.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("source balance = %s, want 500.00", got)
	}
	if got := mustBalance(t, repo, target.ID, user.ID); !got.Equal(decimal.RequireFromString("400.00")) {
		t.Errorf("target balance = %s, want 400.00", got)
	}
}

func TestUpdateTransactionForeignAccountRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo)
	other := seedUser(t, repo)
	ownAcct := seedAccount(t, repo, owner.ID, "0")
	foreignAcct := seedAccount(t, repo, other.ID, "0")

	tr := newTransaction(owner.ID, ownAcct.ID, core.Income, "100.00")
	if err := repo.CreateTransaction(ctx, tr); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	tr.AccountID = foreignAcct.ID
	if err := repo.UpdateTransaction(ctx, tr); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("UpdateTransaction = %v, want ErrNotFound", err)
	}

	if got := mustBalance(t, repo, foreignAcct.ID, other.ID); !got.IsZero() {
		t.Errorf("foreign balance = %s, want 0", got)
	}
	stored, err := repo.GetTransaction(ctx, tr.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if stored.AccountID != ownAcct.ID {
		t.Errorf("transaction account = %s, want %s", stored.AccountID, ownAcct.ID)
	}
	if got := mustBalance(t, repo, ownAcct.ID, owner.ID); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("own balance = %s, want 100.00", got)
	}
}

func TestDeleteTransactionsBulkAcrossAccounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	acctA := seedAccount(t, repo, user.ID, "100.00")
	acctB := seedAccount(t, repo, user.ID, "100.00")

	income := newTransaction(user.ID, acctA.ID, core.Income, "30.00")
	expense := newTransaction(user.ID, acctB.ID, core.Expense, "20.00")
	for _, tr := range []core.Transaction{income, expense} {
		if err := repo.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	deleted, err := repo.DeleteTransactions(ctx, user.ID, []uuid.UUID{income.ID, expense.ID})
	if err != nil {
		t.Fatalf("DeleteTransactions: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// Deleting the income reverses +30; deleting the expense reverses -20.
	if got := mustBalance(t, repo, acctA.ID, user.ID); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("account A balance = %s, want 100.00", got)
	}
	if got := mustBalance(t, repo, acctB.ID, user.ID); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("account B balance = %s, want 100.00", got)
	}
}

func TestDeleteTransactionsIgnoresForeignRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := seedUser(t, repo)
	intruder := seedUser(t, repo)
	account := seedAccount(t, repo, owner.ID, "100.00")

	tr := newTransaction(owner.ID, account.ID, core.Expense, "25.00")
	if err := repo.CreateTransaction(ctx, tr); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	deleted, err := repo.DeleteTransactions(ctx, intruder.ID, []uuid.UUID{tr.ID})
	if err != nil {
		t.Fatalf("DeleteTransactions: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if got := mustBalance(t, repo, account.ID, owner.ID); !got.Equal(decimal.RequireFromString("75.00")) {
		t.Errorf("balance = %s, want 75.00", got)
	}
}

func TestBalanceEqualsSignedSum(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "0.00")

	var created []core.Transaction
	steps := []struct {
		txType core.TransactionType
		amount string
	}{
		{core.Income, "100.00"},
		{core.Expense, "33.33"},
		{core.Income, "5.01"},
		{core.Expense, "0.68"},
	}
	for _, step := range steps {
		tr := newTransaction(user.ID, account.ID, step.txType, step.amount)
		if err := repo.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		created = append(created, tr)
	}

	if _, err := repo.DeleteTransactions(ctx, user.ID, []uuid.UUID{created[1].ID}); err != nil {
		t.Fatalf("DeleteTransactions: %v", err)
	}

	remaining, err := repo.ListTransactionsByAccount(ctx, account.ID, user.ID)
	if err != nil {
		t.Fatalf("ListTransactionsByAccount: %v", err)
	}
	sum := decimal.Zero
	for _, tr := range remaining {
		sum = sum.Add(tr.SignedAmount())
	}
	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(sum) {
		t.Errorf("balance %s != signed sum %s", got, sum)
	}
}

func TestListDueRecurring(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "0")
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)
	processed := now.AddDate(0, 0, -8)

	never := newTransaction(user.ID, account.ID, core.Income, "10")
	never.IsRecurring = true
	never.RecurringInterval = core.Weekly

	due := newTransaction(user.ID, account.ID, core.Expense, "20")
	due.IsRecurring = true
	due.RecurringInterval = core.Weekly
	due.LastProcessed = &processed
	due.NextRecurringDate = &past

	notYet := newTransaction(user.ID, account.ID, core.Expense, "30")
	notYet.IsRecurring = true
	notYet.RecurringInterval = core.Monthly
	notYet.LastProcessed = &processed
	notYet.NextRecurringDate = &future

	pending := newTransaction(user.ID, account.ID, core.Expense, "40")
	pending.IsRecurring = true
	pending.RecurringInterval = core.Daily
	pending.Status = core.StatusPending

	plain := newTransaction(user.ID, account.ID, core.Expense, "50")

	for _, tr := range []core.Transaction{never, due, notYet, pending, plain} {
		if err := repo.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	got, err := repo.ListDueRecurring(ctx, now)
	if err != nil {
		t.Fatalf("ListDueRecurring: %v", err)
	}

	ids := make(map[uuid.UUID]bool, len(got))
	for _, tr := range got {
		ids[tr.ID] = true
	}
	if len(got) != 2 || !ids[never.ID] || !ids[due.ID] {
		t.Errorf("due set = %v, want exactly {never-processed, past-due}", ids)
	}
}

func TestProcessDueTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "1000.00")
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	tmpl := newTransaction(user.ID, account.ID, core.Income, "200.00")
	tmpl.IsRecurring = true
	tmpl.RecurringInterval = core.Weekly
	tmpl.Date = now.AddDate(0, 0, -7)
	if err := repo.CreateTransaction(ctx, tmpl); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	// Seeding the template itself moved the balance by +200.
	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(decimal.RequireFromString("1200.00")) {
		t.Fatalf("balance after seed = %s", got)
	}

	created, err := repo.ProcessDueTransaction(ctx, tmpl.ID, user.ID, now)
	if err != nil {
		t.Fatalf("ProcessDueTransaction: %v", err)
	}
	if created.IsRecurring {
		t.Error("generated instance is marked recurring")
	}
	if !created.Amount.Equal(tmpl.Amount) || created.Type != tmpl.Type {
		t.Errorf("generated instance %s/%s does not copy the template", created.Type, created.Amount)
	}
	if created.Description != "test transaction (Recurring)" {
		t.Errorf("generated description = %q", created.Description)
	}

	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(decimal.RequireFromString("1400.00")) {
		t.Errorf("balance after processing = %s, want 1400.00", got)
	}

	updated, err := repo.GetTransaction(ctx, tmpl.ID, user.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if updated.LastProcessed == nil || !updated.LastProcessed.Equal(now) {
		t.Errorf("lastProcessed = %v, want %v", updated.LastProcessed, now)
	}
	wantNext := now.AddDate(0, 0, 7)
	if updated.NextRecurringDate == nil || !updated.NextRecurringDate.Equal(wantNext) {
		t.Errorf("nextRecurringDate = %v, want %v", updated.NextRecurringDate, wantNext)
	}
}

func TestProcessDueTransactionDuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "0.00")
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	tmpl := newTransaction(user.ID, account.ID, core.Expense, "75.00")
	tmpl.IsRecurring = true
	tmpl.RecurringInterval = core.Monthly
	if err := repo.CreateTransaction(ctx, tmpl); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if _, err := repo.ProcessDueTransaction(ctx, tmpl.ID, user.ID, now); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	balanceAfterFirst := mustBalance(t, repo, account.ID, user.ID)

	_, err := repo.ProcessDueTransaction(ctx, tmpl.ID, user.ID, now)
	if !errors.Is(err, core.ErrNotDue) {
		t.Fatalf("second delivery error = %v, want ErrNotDue", err)
	}

	if got := mustBalance(t, repo, account.ID, user.ID); !got.Equal(balanceAfterFirst) {
		t.Errorf("duplicate delivery moved balance from %s to %s", balanceAfterFirst, got)
	}

	updated, err := repo.GetTransaction(ctx, tmpl.ID, user.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	wantNext := now.AddDate(0, 1, 0)
	if updated.NextRecurringDate == nil || !updated.NextRecurringDate.Equal(wantNext) {
		t.Errorf("nextRecurringDate advanced twice: %v", updated.NextRecurringDate)
	}
}

func TestProcessDueTransactionNotFound(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo)
	seedAccount(t, repo, user.ID, "0")

	_, err := repo.ProcessDueTransaction(context.Background(), uuid.New(), user.ID, time.Now())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSumExpensesSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "0")
	monthStart := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	inMonth := newTransaction(user.ID, account.ID, core.Expense, "300.00")
	inMonth.Date = monthStart.AddDate(0, 0, 4)
	alsoIn := newTransaction(user.ID, account.ID, core.Expense, "550.00")
	alsoIn.Date = monthStart.AddDate(0, 0, 10)
	before := newTransaction(user.ID, account.ID, core.Expense, "999.00")
	before.Date = monthStart.AddDate(0, 0, -1)
	income := newTransaction(user.ID, account.ID, core.Income, "400.00")
	income.Date = monthStart.AddDate(0, 0, 5)

	for _, tr := range []core.Transaction{inMonth, alsoIn, before, income} {
		if err := repo.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	total, err := repo.SumExpensesSince(ctx, user.ID, account.ID, monthStart)
	if err != nil {
		t.Fatalf("SumExpensesSince: %v", err)
	}
	if total != 85000 {
		t.Errorf("total = %d cents, want 85000", total)
	}
}

func TestGetMonthlyStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)
	account := seedAccount(t, repo, user.ID, "0")
	start := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.May, 31, 23, 59, 59, 0, time.UTC)

	salary := newTransaction(user.ID, account.ID, core.Income, "2500.00")
	salary.Date = start.AddDate(0, 0, 1)
	salary.Category = "salary"
	rent := newTransaction(user.ID, account.ID, core.Expense, "900.00")
	rent.Date = start.AddDate(0, 0, 2)
	rent.Category = "housing"
	food := newTransaction(user.ID, account.ID, core.Expense, "120.50")
	food.Date = start.AddDate(0, 0, 20)
	food.Category = "groceries"
	outside := newTransaction(user.ID, account.ID, core.Expense, "42.00")
	outside.Date = end.AddDate(0, 0, 2)

	for _, tr := range []core.Transaction{salary, rent, food, outside} {
		if err := repo.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	stats, err := repo.GetMonthlyStats(ctx, user.ID, start, end)
	if err != nil {
		t.Fatalf("GetMonthlyStats: %v", err)
	}
	if stats.TotalIncomeCents != 250000 {
		t.Errorf("income = %d, want 250000", stats.TotalIncomeCents)
	}
	if stats.TotalExpenseCents != 102050 {
		t.Errorf("expenses = %d, want 102050", stats.TotalExpenseCents)
	}
	if stats.TransactionCount != 3 {
		t.Errorf("count = %d, want 3", stats.TransactionCount)
	}
	if stats.ByCategoryCents["housing"] != 90000 || stats.ByCategoryCents["groceries"] != 12050 {
		t.Errorf("by category = %v", stats.ByCategoryCents)
	}
}

func TestBudgetUpsertAndAlertTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo)

	if _, err := repo.GetBudget(ctx, user.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing budget error = %v, want ErrNotFound", err)
	}

	budget, err := repo.UpsertBudget(ctx, user.ID, 100000)
	if err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}
	if !budget.Amount.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("amount = %s, want 1000", budget.Amount)
	}

	sentAt := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	if err := repo.MarkBudgetAlertSent(ctx, budget.ID, sentAt); err != nil {
		t.Fatalf("MarkBudgetAlertSent: %v", err)
	}

	updated, err := repo.UpsertBudget(ctx, user.ID, 150000)
	if err != nil {
		t.Fatalf("UpsertBudget again: %v", err)
	}
	if updated.ID != budget.ID {
		t.Errorf("upsert created a second budget: %s vs %s", updated.ID, budget.ID)
	}
	if updated.LastAlertSent == nil || !updated.LastAlertSent.Equal(sentAt) {
		t.Errorf("alert timestamp lost on amount change: %v", updated.LastAlertSent)
	}
}

func TestListBudgetAlertCandidates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	withAccount := seedUser(t, repo)
	account := seedAccount(t, repo, withAccount.ID, "0")
	if _, err := repo.UpsertBudget(ctx, withAccount.ID, 50000); err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}

	// A budget whose owner has no account must be skipped.
	withoutAccount := seedUser(t, repo)
	if _, err := repo.UpsertBudget(ctx, withoutAccount.ID, 70000); err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}

	candidates, err := repo.ListBudgetAlertCandidates(ctx)
	if err != nil {
		t.Fatalf("ListBudgetAlertCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Budget.UserID != withAccount.ID || candidates[0].AccountID != account.ID {
		t.Errorf("candidate = %+v", candidates[0])
	}
}
