package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// Repository is the store-handle contract the ledger operations run against.
// *storage.SQLiteRepository satisfies it; tests substitute fakes.
type Repository interface {
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) error
	DeleteExpense(ctx context.Context, id int64) error
	Summarize(ctx context.Context) (core.Summary, error)
	Close() error
}

// EventPublisher emits ledger events after successful mutations. A nil
// publisher disables eventing without touching the operation contract.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error
	Close() error
}

// LedgerService implements the five ledger operations. Every mutation outcome
// is a structured result; no input ever takes the process down.
type LedgerService struct {
	storage   Repository
	publisher EventPublisher
}

func NewLedgerService(storage Repository, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		storage:   storage,
		publisher: publisher,
	}
}

// AddExpense validates and inserts a new record, returning the assigned id.
func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) core.Result {
	if err := e.Validate(); err != nil {
		return core.Invalid(err)
	}

	id, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.StoreError(err)
	}

	e.ID = id
	s.publishEvent(ctx, amqp.NewExpenseEvent(amqp.ExpenseCreated, id, &e))

	return core.Created(id)
}

// ListExpenses returns every record in ascending id order.
func (s *LedgerService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx)
}

// EditExpense applies a partial update. The outcome is three-way: not-found
// when the id is absent, a no-changes warning when zero fields were supplied,
// success after the mutation. Callers depend on the distinction.
func (s *LedgerService) EditExpense(ctx context.Context, id int64, u core.ExpenseUpdate) core.Result {
	if err := u.Validate(); err != nil {
		return core.Invalid(err)
	}

	if u.IsEmpty() {
		// Existence still decides the outcome: an empty update of a missing
		// record is not-found, not a no-op.
		if _, err := s.storage.GetExpense(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return core.NotFound(id)
			}
			return core.StoreError(err)
		}
		return core.NoChanges()
	}

	if err := s.storage.UpdateExpense(ctx, id, u); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.NotFound(id)
		}
		return core.StoreError(err)
	}

	if updated, err := s.storage.GetExpense(ctx, id); err == nil {
		s.publishEvent(ctx, amqp.NewExpenseEvent(amqp.ExpenseUpdated, id, &updated))
	} else {
		s.publishEvent(ctx, amqp.NewExpenseEvent(amqp.ExpenseUpdated, id, nil))
	}

	return core.Updated(id)
}

// DeleteExpense permanently removes a record.
func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) core.Result {
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.NotFound(id)
		}
		return core.StoreError(err)
	}

	s.publishEvent(ctx, amqp.NewExpenseEvent(amqp.ExpenseDeleted, id, nil))

	return core.Deleted(id)
}

// Summarize aggregates the full ledger. It never fails on an empty store.
func (s *LedgerService) Summarize(ctx context.Context) (core.Summary, error) {
	return s.storage.Summarize(ctx)
}

// publishEvent is best-effort: a missing or failing broker never fails the
// operation, the record is already durable in the store.
func (s *LedgerService) publishEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", msg.Type,
			"id", msg.ID,
			"error", err)
	}
}

// Close releases the store and, when configured, the event publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
