package http

import (
	"errors"
	"net/http"
	"time"

	"soldi/internal/core"
)

type dashboardResponse struct {
	Accounts           []accountPayload     `json:"accounts"`
	RecentTransactions []transactionPayload `json:"recentTransactions"`
	Budget             *budgetResponse      `json:"budget,omitempty"`
}

// handleDashboard aggregates the landing-page data in one round trip.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	accounts, err := s.accounts.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recent, err := s.transactions.ListRecent(r.Context(), user.ID, 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := dashboardResponse{
		Accounts:           make([]accountPayload, 0, len(accounts)),
		RecentTransactions: make([]transactionPayload, 0, len(recent)),
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountPayload(a))
	}
	for _, t := range recent {
		resp.RecentTransactions = append(resp.RecentTransactions, toTransactionPayload(t))
	}

	usage, err := s.budgets.GetWithUsage(r.Context(), user.ID, time.Now().UTC())
	switch {
	case err == nil:
		resp.Budget = &budgetResponse{
			Amount:      usage.Budget.Amount,
			Spent:       usage.Spent,
			UsedPercent: usage.UsedPercent,
			UpdatedAt:   usage.Budget.UpdatedAt,
		}
	case errors.Is(err, core.ErrNotFound):
		// No budget configured; the dashboard simply omits it.
	default:
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}
