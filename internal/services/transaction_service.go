package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soldi/internal/core"
	"soldi/internal/insights"
	"soldi/internal/log"
	"soldi/internal/storage"
)

// TransactionService orchestrates transaction operations on top of the
// repository's atomic units.
type TransactionService struct {
	storage *storage.Repository
	scanner insights.ReceiptScanner
	logger  *log.Logger
}

func NewTransactionService(repo *storage.Repository, scanner insights.ReceiptScanner, logger *log.Logger) *TransactionService {
	return &TransactionService{
		storage: repo,
		scanner: scanner,
		logger:  logger,
	}
}

// Create validates and persists a transaction. For recurring templates
// the first due date is derived from the transaction date, so a
// template dated in the past is picked up by the next daily run.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if t.IsRecurring {
		next := core.NextOccurrence(t.Date, t.RecurringInterval)
		t.NextRecurringDate = &next
	} else {
		t.NextRecurringDate = nil
		t.RecurringInterval = ""
	}

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction created",
		log.FieldTransactionID, t.ID.String(),
		log.FieldUserID, t.UserID.String(),
		log.FieldAccountID, t.AccountID.String(),
		"type", string(t.Type),
		log.FieldAmountCents, core.Cents(t.Amount),
		"recurring", t.IsRecurring,
	)
	return t, nil
}

// Update validates and applies changes to an existing transaction,
// recomputing the recurrence schedule when it changes.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if t.IsRecurring {
		next := core.NextOccurrence(t.Date, t.RecurringInterval)
		t.NextRecurringDate = &next
	} else {
		t.NextRecurringDate = nil
		t.RecurringInterval = ""
	}

	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction updated",
		log.FieldTransactionID, t.ID.String(),
		log.FieldUserID, t.UserID.String(),
	)
	return s.storage.GetTransaction(ctx, t.ID, t.UserID)
}

func (s *TransactionService) Get(ctx context.Context, id, userID uuid.UUID) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id, userID)
}

func (s *TransactionService) ListByAccount(ctx context.Context, accountID, userID uuid.UUID) ([]core.Transaction, error) {
	return s.storage.ListTransactionsByAccount(ctx, accountID, userID)
}

func (s *TransactionService) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]core.Transaction, error) {
	return s.storage.ListRecentTransactions(ctx, userID, limit)
}

// DeleteBulk removes the given transactions and reverses their balance
// contributions in one atomic unit. Ids not owned by the user are
// silently skipped.
func (s *TransactionService) DeleteBulk(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := s.storage.DeleteTransactions(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}

	s.logger.InfoContext(ctx, "transactions deleted",
		log.FieldUserID, userID.String(),
		"requested", len(ids),
		"deleted", deleted,
	)
	return deleted, nil
}

// ScanReceipt extracts a draft transaction from a receipt image. The
// draft is not persisted; the client reviews it first.
func (s *TransactionService) ScanReceipt(ctx context.Context, image []byte, mimeType string) (insights.ReceiptData, error) {
	if s.scanner == nil {
		return insights.ReceiptData{}, core.ErrInsightsDisabled
	}

	started := time.Now()
	data, err := s.scanner.ScanReceipt(ctx, image, mimeType)
	if err != nil {
		return insights.ReceiptData{}, err
	}

	s.logger.InfoContext(ctx, "receipt scanned",
		"merchant", data.MerchantName,
		log.FieldAmountCents, core.Cents(data.Amount),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return data, nil
}
