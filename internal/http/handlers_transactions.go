package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	maxReceiptBytes    = 5 << 20
)

type transactionPayload struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"accountId"`
	Type              string          `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	Date              string          `json:"date"`
	Category          string          `json:"category"`
	ReceiptURL        string          `json:"receiptUrl,omitempty"`
	IsRecurring       bool            `json:"isRecurring"`
	RecurringInterval string          `json:"recurringInterval,omitempty"`
	NextRecurringDate *time.Time      `json:"nextRecurringDate,omitempty"`
	LastProcessed     *time.Time      `json:"lastProcessed,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func toTransactionPayload(t core.Transaction) transactionPayload {
	return transactionPayload{
		ID:                t.ID.String(),
		AccountID:         t.AccountID.String(),
		Type:              string(t.Type),
		Amount:            t.Amount,
		Description:       t.Description,
		Date:              t.Date.Format("2006-01-02"),
		Category:          t.Category,
		ReceiptURL:        t.ReceiptURL,
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.RecurringInterval),
		NextRecurringDate: t.NextRecurringDate,
		LastProcessed:     t.LastProcessed,
		Status:            string(t.Status),
		CreatedAt:         t.CreatedAt,
	}
}

type transactionRequest struct {
	AccountID         string          `json:"accountId"`
	Type              string          `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	Date              string          `json:"date"`
	Category          string          `json:"category"`
	ReceiptURL        string          `json:"receiptUrl"`
	IsRecurring       bool            `json:"isRecurring"`
	RecurringInterval string          `json:"recurringInterval"`
}

// toDomain builds the core transaction; field validation beyond shape
// is left to the domain.
func (req transactionRequest) toDomain(userID uuid.UUID) (core.Transaction, string) {
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return core.Transaction{}, "malformed account id"
	}

	var date time.Time
	if req.Date != "" {
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if date, err = time.Parse(layout, req.Date); err == nil {
				break
			}
		}
		if err != nil {
			return core.Transaction{}, "date must be YYYY-MM-DD or RFC 3339"
		}
	}

	return core.Transaction{
		UserID:            userID,
		AccountID:         accountID,
		Type:              core.TransactionType(req.Type),
		Amount:            req.Amount,
		Description:       req.Description,
		Date:              date.UTC(),
		Category:          req.Category,
		ReceiptURL:        req.ReceiptURL,
		IsRecurring:       req.IsRecurring,
		RecurringInterval: core.Interval(req.RecurringInterval),
	}, ""
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed json body")
		return
	}

	t, msg := req.toDomain(user.ID)
	if msg != "" {
		s.writeBadRequest(w, msg)
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toTransactionPayload(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeBadRequest(w, "malformed transaction id")
		return
	}

	t, err := s.transactions.Get(r.Context(), id, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTransactionPayload(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeBadRequest(w, "malformed transaction id")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed json body")
		return
	}

	t, msg := req.toDomain(user.ID)
	if msg != "" {
		s.writeBadRequest(w, msg)
		return
	}
	t.ID = id

	updated, err := s.transactions.Update(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTransactionPayload(updated))
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	limit := defaultRecentLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	transactions, err := s.transactions.ListRecent(r.Context(), user.ID, limit)
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

type deleteTransactionsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req deleteTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "malformed json body")
		return
	}
	if len(req.IDs) == 0 {
		s.writeBadRequest(w, "ids must not be empty")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeBadRequest(w, "malformed transaction id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	deleted, err := s.transactions.DeleteBulk(r.Context(), user.ID, ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// handleScanReceipt accepts a raw image body and returns a draft
// transaction extracted from it. Nothing is persisted.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	mimeType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		s.writeBadRequest(w, "body must be an image")
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBytes+1))
	if err != nil {
		s.writeBadRequest(w, "failed to read body")
		return
	}
	if len(image) == 0 {
		s.writeBadRequest(w, "empty body")
		return
	}
	if len(image) > maxReceiptBytes {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "image larger than 5MB"})
		return
	}

	data, err := s.transactions.ScanReceipt(r.Context(), image, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := map[string]any{
		"amount":       data.Amount,
		"description":  data.Description,
		"category":     data.Category,
		"merchantName": data.MerchantName,
	}
	if !data.Date.IsZero() {
		payload["date"] = data.Date.Format("2006-01-02")
	}
	s.writeJSON(w, http.StatusOK, payload)
}
