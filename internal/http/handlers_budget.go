package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type budgetResponse struct {
	Amount      decimal.Decimal `json:"amount"`
	Spent       decimal.Decimal `json:"spent"`
	UsedPercent float64         `json:"usedPercent"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	usage, err := s.budgets.GetWithUsage(r.Context(), user.ID, time.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, budgetResponse{
		Amount:      usage.Budget.Amount,
		Spent:       usage.Spent,
		UsedPercent: usage.UsedPercent,
		UpdatedAt:   usage.Budget.UpdatedAt,
	})
}

type upsertBudgetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req upsertBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed json body")
		return
	}

	if _, err := s.budgets.Upsert(r.Context(), user.ID, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}

	usage, err := s.budgets.GetWithUsage(r.Context(), user.ID, time.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, budgetResponse{
		Amount:      usage.Budget.Amount,
		Spent:       usage.Spent,
		UsedPercent: usage.UsedPercent,
		UpdatedAt:   usage.Budget.UpdatedAt,
	})
}
