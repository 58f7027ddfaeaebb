package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soldi/internal/amqp"
	"soldi/internal/core"
	"soldi/internal/log"
	"soldi/internal/ratelimit"
	"soldi/internal/storage"
)

// RecurringProcessor materializes due recurring templates. The database
// unit it calls re-checks dueness, so duplicate or stale deliveries
// collapse into no-ops.
type RecurringProcessor struct {
	storage     *storage.Repository
	limiter     *ratelimit.Limiter
	logger      *log.Logger
	maxAttempts int
	backoff     time.Duration
}

func NewRecurringProcessor(repo *storage.Repository, limiter *ratelimit.Limiter, logger *log.Logger, maxAttempts int, backoff time.Duration) *RecurringProcessor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &RecurringProcessor{
		storage:     repo,
		limiter:     limiter,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// HandleMessage adapts a queue delivery to Process.
func (p *RecurringProcessor) HandleMessage(ctx context.Context, msg *amqp.RecurringProcessMessage) error {
	transactionID, err := uuid.Parse(msg.TransactionID)
	if err != nil {
		p.logger.ErrorContext(ctx, "malformed transaction id in message", log.FieldError, err)
		return nil // unparseable, never retryable
	}
	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		p.logger.ErrorContext(ctx, "malformed user id in message", log.FieldError, err)
		return nil
	}
	return p.Process(ctx, transactionID, userID)
}

// Process runs one template through the atomic processing unit. Each
// user is throttled so a user with many templates cannot starve the
// worker. Transient failures are retried with exponential backoff;
// a template that is gone or no longer due is a success.
func (p *RecurringProcessor) Process(ctx context.Context, transactionID, userID uuid.UUID) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, userID.String()); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := retryDelay(p.backoff, attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		created, err := p.storage.ProcessDueTransaction(ctx, transactionID, userID, time.Now().UTC())
		switch {
		case err == nil:
			p.logger.InfoContext(ctx, "recurring transaction processed",
				log.FieldTransactionID, transactionID.String(),
				log.FieldUserID, userID.String(),
				"created_id", created.ID.String(),
				log.FieldAmountCents, core.Cents(created.Amount),
			)
			return nil
		case errors.Is(err, core.ErrNotDue):
			p.logger.InfoContext(ctx, "recurring transaction no longer due, skipping",
				log.FieldTransactionID, transactionID.String(),
				log.FieldUserID, userID.String(),
			)
			return nil
		case errors.Is(err, core.ErrNotFound):
			p.logger.WarnContext(ctx, "recurring transaction gone, skipping",
				log.FieldTransactionID, transactionID.String(),
				log.FieldUserID, userID.String(),
			)
			return nil
		default:
			lastErr = err
			p.logger.WarnContext(ctx, "recurring processing attempt failed",
				log.FieldTransactionID, transactionID.String(),
				"attempt", attempt+1,
				log.FieldError, err,
			)
		}
	}
	return fmt.Errorf("process recurring transaction %s after %d attempts: %w", transactionID, p.maxAttempts, lastErr)
}

// retryDelay doubles the base backoff per attempt. The shift is capped
// so a large configured attempt count cannot overflow the duration.
func retryDelay(base time.Duration, attempt int) time.Duration {
	return base << min(attempt-1, 5)
}
