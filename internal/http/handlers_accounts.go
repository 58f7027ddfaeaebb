package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

type accountPayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	IsDefault bool            `json:"isDefault"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toAccountPayload(a core.Account) accountPayload {
	return accountPayload{
		ID:        a.ID.String(),
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
	}
}

type createAccountRequest struct {
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	IsDefault bool            `json:"isDefault"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed json body")
		return
	}

	accountType := core.AccountType(req.Type)
	if req.Type == "" {
		accountType = core.AccountCurrent
	}
	if accountType != core.AccountCurrent && accountType != core.AccountSavings {
		s.writeBadRequest(w, "type must be CURRENT or SAVINGS")
		return
	}

	created, err := s.accounts.Create(r.Context(), core.Account{
		UserID:    user.ID,
		Name:      req.Name,
		Type:      accountType,
		Balance:   req.Balance,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toAccountPayload(created))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	accounts, err := s.accounts.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := make([]accountPayload, 0, len(accounts))
	for _, a := range accounts {
		payload = append(payload, toAccountPayload(a))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeBadRequest(w, "malformed account id")
		return
	}

	account, err := s.accounts.Get(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountPayload(account))
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeBadRequest(w, "malformed account id")
		return
	}

	// Ownership check before listing; a foreign account must 404.
	if _, err := s.accounts.Get(r.Context(), id, user.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	transactions, err := s.transactions.ListByAccount(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := make([]transactionPayload, 0, len(transactions))
	for _, t := range transactions {
		payload = append(payload, toTransactionPayload(t))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeBadRequest(w, "malformed account id")
		return
	}

	account, err := s.accounts.SetDefault(r.Context(), user.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccountPayload(account))
}
