package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an operation references an id that no record
// carries. Callers translate it into a structured not-found result.
var ErrNotFound = errors.New("expense not found")

const (
	insertExpenseSQL = `INSERT INTO expenses (date, amount, category, subcategory, note) VALUES (?, ?, ?, ?, ?)`

	selectExpenseSQL = `SELECT id, date, amount, category, subcategory, note FROM expenses WHERE id = ?`

	listExpensesSQL = `SELECT id, date, amount, category, subcategory, note FROM expenses ORDER BY id ASC`

	// Statement shape is static: absent fields arrive as NULL and COALESCE
	// keeps the stored value. No SQL is ever assembled at runtime.
	updateExpenseSQL = `UPDATE expenses SET
		date = COALESCE(?, date),
		amount = COALESCE(?, amount),
		category = COALESCE(?, category),
		subcategory = COALESCE(?, subcategory),
		note = COALESCE(?, note)
	WHERE id = ?`

	deleteExpenseSQL = `DELETE FROM expenses WHERE id = ?`

	existsExpenseSQL = `SELECT EXISTS(SELECT 1 FROM expenses WHERE id = ?)`

	sumExpensesSQL = `SELECT COALESCE(SUM(amount), 0) FROM expenses`

	// Equal totals fall back to lexical category order so the breakdown is
	// deterministic across runs.
	sumByCategorySQL = `SELECT category, SUM(amount) AS total
		FROM expenses
		GROUP BY category
		ORDER BY total DESC, category ASC`
)

// SQLiteRepository owns the connection to the durable expense store. It is
// the sole owner of persisted record state: every operation reads or writes
// the database directly, with no record cache in between.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the SQLite database at
// dbPath and ensures the schema exists.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL keeps readers unblocked by the single writer; busy_timeout makes
	// concurrent writers queue instead of failing immediately.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// newRepository wraps an existing database handle. Used by tests that supply
// their own connection.
func newRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense inserts a validated record and returns the store-assigned id.
// Ids are monotonically increasing and never reused.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertExpenseSQL,
		e.Date, e.Amount, e.Category, e.Subcategory, e.Note)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"date", e.Date,
		"amount", e.Amount,
		"category", e.Category)

	return id, nil
}

// GetExpense retrieves a single record by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	err := r.db.QueryRowContext(ctx, selectExpenseSQL, id).
		Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.Subcategory, &e.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return e, nil
}

// ListExpenses returns every record in ascending id order. An empty store
// yields an empty slice, not an error.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, listExpensesSQL)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.Subcategory, &e.Note); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense rows: %w", err)
	}

	return expenses, nil
}

// UpdateExpense applies the supplied fields of u to the record with the given
// id, leaving unsupplied fields untouched. The existence check and the
// mutation run in one transaction so a concurrent delete cannot slip between
// them. Returns ErrNotFound if no record carries the id.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := expenseExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	res, err := tx.ExecContext(ctx, updateExpenseSQL,
		nullString(u.Date),
		nullFloat(u.Amount),
		nullString(u.Category),
		nullString(u.Subcategory),
		nullString(u.Note),
		id)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The check above passed inside this transaction, so this only
		// happens if the row vanished underneath us.
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated", "id", id)
	return nil
}

// DeleteExpense permanently removes the record with the given id. There is no
// soft delete and no tombstone. Returns ErrNotFound if the id is absent.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := expenseExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	res, err := tx.ExecContext(ctx, deleteExpenseSQL, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// Summarize computes the full-ledger total and the per-category breakdown in
// descending-total order. Both queries run in one transaction so the total
// always matches the breakdown.
func (r *SQLiteRepository) Summarize(ctx context.Context) (core.Summary, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Summary{}, fmt.Errorf("begin summary transaction: %w", err)
	}
	defer tx.Rollback()

	var summary core.Summary
	if err := tx.QueryRowContext(ctx, sumExpensesSQL).Scan(&summary.Total); err != nil {
		return core.Summary{}, fmt.Errorf("sum expenses: %w", err)
	}

	rows, err := tx.QueryContext(ctx, sumByCategorySQL)
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum expenses by category: %w", err)
	}
	defer rows.Close()

	summary.ByCategory = core.ByCategory{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return core.Summary{}, fmt.Errorf("scan category total: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return core.Summary{}, fmt.Errorf("iterate category totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Summary{}, fmt.Errorf("commit summary: %w", err)
	}

	return summary, nil
}

func expenseExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, existsExpenseSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check expense exists: %w", err)
	}
	return exists, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
