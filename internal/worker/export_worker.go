package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// SheetAppender is the slice of the sheets client the worker needs.
type SheetAppender interface {
	AppendExpense(ctx context.Context, e core.Expense) error
}

// ExportWorker consumes ledger events and mirrors created records into the
// spreadsheet. The mirror is append-only: updates and deletes are logged but
// not replayed, the durable store remains the source of truth.
type ExportWorker struct {
	sheets SheetAppender
}

func NewExportWorker(sheets SheetAppender) *ExportWorker {
	return &ExportWorker{sheets: sheets}
}

// Handler returns the event callback for amqp.Client.ConsumeExpenseEvents.
// Returning an error requeues the event.
func (w *ExportWorker) Handler(ctx context.Context) func(*amqp.ExpenseEventMessage) error {
	return func(msg *amqp.ExpenseEventMessage) error {
		switch msg.Type {
		case amqp.ExpenseCreated:
			if msg.Expense == nil {
				// Without a snapshot there is nothing to mirror and a retry
				// cannot help; drop it.
				slog.WarnContext(ctx, "Created event without snapshot, skipping", "id", msg.ID)
				return nil
			}
			if err := w.sheets.AppendExpense(ctx, *msg.Expense); err != nil {
				return fmt.Errorf("mirror expense %d: %w", msg.ID, err)
			}
			return nil
		case amqp.ExpenseUpdated, amqp.ExpenseDeleted:
			slog.InfoContext(ctx, "Mutation event acknowledged, mirror is append-only",
				"type", msg.Type,
				"id", msg.ID)
			return nil
		default:
			slog.WarnContext(ctx, "Unknown event type, skipping", "type", msg.Type, "id", msg.ID)
			return nil
		}
	}
}
