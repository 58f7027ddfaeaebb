package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"soldi/internal/core"
	"soldi/internal/insights"
	"soldi/internal/log"
	"soldi/internal/mailer"
	"soldi/internal/storage"
)

// ReportService emails each user a summary of the previous calendar
// month, decorated with generated insights.
type ReportService struct {
	storage   *storage.Repository
	generator insights.Generator
	mailer    mailer.Sender
	logger    *log.Logger
}

func NewReportService(repo *storage.Repository, generator insights.Generator, sender mailer.Sender, logger *log.Logger) *ReportService {
	return &ReportService{
		storage:   repo,
		generator: generator,
		mailer:    sender,
		logger:    logger,
	}
}

// RunMonthly builds and sends last month's report for every user. Users
// with no activity are skipped. Per-user failures are logged and do not
// stop the run.
func (s *ReportService) RunMonthly(ctx context.Context, now time.Time) (sent int, err error) {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	start, end := previousMonthRange(now)
	monthLabel := start.Format("January 2006")

	for _, user := range users {
		if user.Email == "" {
			continue
		}

		stats, err := s.storage.GetMonthlyStats(ctx, user.ID, start, end)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to compute monthly stats",
				log.FieldUserID, user.ID.String(),
				log.FieldError, err,
			)
			continue
		}
		if stats.TransactionCount == 0 {
			continue
		}

		summary := insights.MonthSummary{
			Month:             monthLabel,
			TotalIncomeCents:  stats.TotalIncomeCents,
			TotalExpenseCents: stats.TotalExpenseCents,
			ByCategoryCents:   stats.ByCategoryCents,
		}
		lines := s.generator.MonthlyInsights(ctx, summary)

		subject := fmt.Sprintf("Your Monthly Financial Report - %s", monthLabel)
		body := reportBody(user.Name, monthLabel, stats, lines)
		if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
			s.logger.ErrorContext(ctx, "failed to send monthly report",
				log.FieldUserID, user.ID.String(),
				log.FieldError, err,
			)
			continue
		}

		sent++
		s.logger.InfoContext(ctx, "monthly report sent",
			log.FieldUserID, user.ID.String(),
			"month", monthLabel,
		)
	}
	return sent, nil
}

// previousMonthRange returns the closed UTC range of the month before
// now's.
func previousMonthRange(now time.Time) (start, end time.Time) {
	now = now.UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start = thisMonth.AddDate(0, -1, 0)
	end = thisMonth.Add(-time.Second)
	return start, end
}

func reportBody(userName, monthLabel string, stats storage.MonthlyStats, lines []string) string {
	name := userName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Here is your financial summary for %s:\n\n", monthLabel)
	fmt.Fprintf(&b, "Total income: %s\n", core.FromCents(stats.TotalIncomeCents))
	fmt.Fprintf(&b, "Total expenses: %s\n", core.FromCents(stats.TotalExpenseCents))
	fmt.Fprintf(&b, "Net: %s\n", core.FromCents(stats.TotalIncomeCents-stats.TotalExpenseCents))

	if len(stats.ByCategoryCents) > 0 {
		b.WriteString("\nExpenses by category:\n")
		categories := make([]string, 0, len(stats.ByCategoryCents))
		for cat := range stats.ByCategoryCents {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
		for _, cat := range categories {
			fmt.Fprintf(&b, "- %s: %s\n", cat, core.FromCents(stats.ByCategoryCents[cat]))
		}
	}

	if len(lines) > 0 {
		b.WriteString("\nInsights:\n")
		for _, line := range lines {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}
