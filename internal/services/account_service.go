package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"soldi/internal/core"
	"soldi/internal/log"
	"soldi/internal/storage"
)

// AccountService orchestrates account operations.
type AccountService struct {
	storage *storage.Repository
	logger  *log.Logger
}

func NewAccountService(repo *storage.Repository, logger *log.Logger) *AccountService {
	return &AccountService{storage: repo, logger: logger}
}

func (s *AccountService) Create(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	if err := s.storage.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account created",
		log.FieldAccountID, a.ID.String(),
		log.FieldUserID, a.UserID.String(),
		"type", string(a.Type),
	)
	// Re-read: the repository may have promoted this account to default.
	return s.storage.GetAccount(ctx, a.ID, a.UserID)
}

func (s *AccountService) Get(ctx context.Context, id, userID uuid.UUID) (core.Account, error) {
	return s.storage.GetAccount(ctx, id, userID)
}

func (s *AccountService) List(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	return s.storage.ListAccounts(ctx, userID)
}

// SetDefault promotes the account to the user's single default.
func (s *AccountService) SetDefault(ctx context.Context, userID, accountID uuid.UUID) (core.Account, error) {
	if err := s.storage.SetDefaultAccount(ctx, userID, accountID); err != nil {
		return core.Account{}, err
	}

	s.logger.InfoContext(ctx, "default account changed",
		log.FieldUserID, userID.String(),
		log.FieldAccountID, accountID.String(),
	)
	return s.storage.GetAccount(ctx, accountID, userID)
}
