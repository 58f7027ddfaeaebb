package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
	"soldi/internal/log"
	"soldi/internal/storage"
)

// BudgetService manages the single monthly budget per user and reports
// how much of it the current month has consumed.
type BudgetService struct {
	storage *storage.Repository
	logger  *log.Logger
}

func NewBudgetService(repo *storage.Repository, logger *log.Logger) *BudgetService {
	return &BudgetService{storage: repo, logger: logger}
}

// BudgetUsage pairs a budget with the current month's spend on the
// user's default account.
type BudgetUsage struct {
	Budget      core.Budget
	Spent       decimal.Decimal
	UsedPercent float64
}

// Upsert creates or replaces the user's budget ceiling.
func (s *BudgetService) Upsert(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (core.Budget, error) {
	if !amount.IsPositive() {
		return core.Budget{}, core.ErrInvalidAmount
	}
	if err := core.ValidateAmount(amount); err != nil {
		return core.Budget{}, err
	}

	budget, err := s.storage.UpsertBudget(ctx, userID, core.Cents(amount))
	if err != nil {
		return core.Budget{}, err
	}

	s.logger.InfoContext(ctx, "budget updated",
		log.FieldUserID, userID.String(),
		log.FieldBudgetID, budget.ID.String(),
		log.FieldAmountCents, core.Cents(amount),
	)
	return budget, nil
}

// GetWithUsage returns the budget plus month-to-date spend. Usage is
// measured against the default account only; without one the spend is
// zero.
func (s *BudgetService) GetWithUsage(ctx context.Context, userID uuid.UUID, now time.Time) (BudgetUsage, error) {
	budget, err := s.storage.GetBudget(ctx, userID)
	if err != nil {
		return BudgetUsage{}, err
	}

	usage := BudgetUsage{Budget: budget, Spent: decimal.Zero}

	account, err := s.storage.GetDefaultAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return usage, nil
		}
		return BudgetUsage{}, fmt.Errorf("default account: %w", err)
	}

	spentCents, err := s.storage.SumExpensesSince(ctx, userID, account.ID, monthStart(now))
	if err != nil {
		return BudgetUsage{}, fmt.Errorf("sum expenses: %w", err)
	}

	usage.Spent = core.FromCents(spentCents)
	if budgetCents := core.Cents(budget.Amount); budgetCents > 0 {
		usage.UsedPercent = float64(spentCents) / float64(budgetCents) * 100
	}
	return usage, nil
}

// monthStart returns midnight UTC on the first of now's month.
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
