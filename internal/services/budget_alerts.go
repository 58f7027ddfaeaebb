package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"soldi/internal/core"
	"soldi/internal/log"
	"soldi/internal/mailer"
	"soldi/internal/storage"
)

// BudgetAlertEvaluator emails users who crossed the spend threshold of
// their monthly budget. One alert per budget per calendar month.
type BudgetAlertEvaluator struct {
	storage   *storage.Repository
	mailer    mailer.Sender
	logger    *log.Logger
	threshold float64 // percent of budget that triggers the alert
}

func NewBudgetAlertEvaluator(repo *storage.Repository, sender mailer.Sender, logger *log.Logger, threshold float64) *BudgetAlertEvaluator {
	if threshold <= 0 {
		threshold = 80
	}
	return &BudgetAlertEvaluator{
		storage:   repo,
		mailer:    sender,
		logger:    logger,
		threshold: threshold,
	}
}

// Run evaluates every budget against month-to-date spend on the owner's
// default account. A failing candidate is logged and skipped so one bad
// row cannot stall the sweep. Returns how many budgets were checked and
// how many alerts went out.
func (e *BudgetAlertEvaluator) Run(ctx context.Context, now time.Time) (checked, sent int, err error) {
	candidates, err := e.storage.ListBudgetAlertCandidates(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list budget alert candidates: %w", err)
	}

	for _, c := range candidates {
		checked++
		if sentThisMonth(c.Budget.LastAlertSent, now) {
			continue
		}

		spentCents, err := e.storage.SumExpensesSince(ctx, c.Budget.UserID, c.AccountID, monthStart(now))
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to sum expenses for budget",
				log.FieldBudgetID, c.Budget.ID.String(),
				log.FieldError, err,
			)
			continue
		}

		budgetCents := core.Cents(c.Budget.Amount)
		if budgetCents <= 0 {
			continue
		}
		usedPercent := float64(spentCents) / float64(budgetCents) * 100
		if usedPercent < e.threshold {
			continue
		}

		body := alertBody(c, spentCents, budgetCents, usedPercent)
		subject := "Budget Alert for " + c.AccountName
		if err := e.mailer.Send(ctx, c.UserEmail, subject, body); err != nil {
			e.logger.ErrorContext(ctx, "failed to send budget alert",
				log.FieldBudgetID, c.Budget.ID.String(),
				log.FieldError, err,
			)
			continue
		}
		// Mark only after a successful send so a failed delivery is
		// retried on the next sweep.
		if err := e.storage.MarkBudgetAlertSent(ctx, c.Budget.ID, now); err != nil {
			e.logger.ErrorContext(ctx, "failed to record alert timestamp",
				log.FieldBudgetID, c.Budget.ID.String(),
				log.FieldError, err,
			)
			continue
		}

		sent++
		e.logger.InfoContext(ctx, "budget alert sent",
			log.FieldBudgetID, c.Budget.ID.String(),
			log.FieldUserID, c.Budget.UserID.String(),
			"used_percent", fmt.Sprintf("%.1f", usedPercent),
		)
	}

	return checked, sent, nil
}

// sentThisMonth reports whether the last alert falls in now's calendar
// month. Month boundaries reset the dedupe, not a 30-day window.
func sentThisMonth(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	return last.UTC().Year() == now.UTC().Year() && last.UTC().Month() == now.UTC().Month()
}

func alertBody(c storage.BudgetAlertCandidate, spentCents, budgetCents int64, usedPercent float64) string {
	name := c.UserName
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "You've used %.1f%% of your monthly budget.\n\n", usedPercent)
	fmt.Fprintf(&b, "Budget amount: %s\n", core.FromCents(budgetCents))
	fmt.Fprintf(&b, "Spent so far: %s\n", core.FromCents(spentCents))
	fmt.Fprintf(&b, "Remaining: %s\n", core.FromCents(budgetCents-spentCents))
	fmt.Fprintf(&b, "Account: %s\n", c.AccountName)
	return b.String()
}
