package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// fakeRepository is an in-memory stand-in for the SQLite store.
type fakeRepository struct {
	expenses map[int64]core.Expense
	nextID   int64
	failWith error
	closed   bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{expenses: make(map[int64]core.Expense), nextID: 1}
}

func (f *fakeRepository) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	id := f.nextID
	f.nextID++
	e.ID = id
	f.expenses[id] = e
	return id, nil
}

func (f *fakeRepository) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	if f.failWith != nil {
		return core.Expense{}, f.failWith
	}
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeRepository) ListExpenses(_ context.Context) ([]core.Expense, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	ids := make([]int64, 0, len(f.expenses))
	for id := range f.expenses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]core.Expense, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.expenses[id])
	}
	return out, nil
}

func (f *fakeRepository) UpdateExpense(_ context.Context, id int64, u core.ExpenseUpdate) error {
	if f.failWith != nil {
		return f.failWith
	}
	e, ok := f.expenses[id]
	if !ok {
		return storage.ErrNotFound
	}
	f.expenses[id] = u.Apply(e)
	return nil
}

func (f *fakeRepository) DeleteExpense(_ context.Context, id int64) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.expenses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.expenses, id)
	return nil
}

func (f *fakeRepository) Summarize(_ context.Context) (core.Summary, error) {
	if f.failWith != nil {
		return core.Summary{}, f.failWith
	}
	s := core.Summary{ByCategory: core.ByCategory{}}
	totals := make(map[string]float64)
	for _, e := range f.expenses {
		s.Total += e.Amount
		totals[e.Category] += e.Amount
	}
	for c, t := range totals {
		s.ByCategory = append(s.ByCategory, core.CategoryTotal{Category: c, Total: t})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if s.ByCategory[i].Total != s.ByCategory[j].Total {
			return s.ByCategory[i].Total > s.ByCategory[j].Total
		}
		return s.ByCategory[i].Category < s.ByCategory[j].Category
	})
	return s, nil
}

func (f *fakeRepository) Close() error {
	f.closed = true
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	events   []*amqp.ExpenseEventMessage
	failWith error
}

func (f *fakePublisher) PublishExpenseEvent(_ context.Context, msg *amqp.ExpenseEventMessage) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.events = append(f.events, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestAddExpense(t *testing.T) {
	repo := newFakeRepository()
	pub := &fakePublisher{}
	svc := NewLedgerService(repo, pub)
	ctx := context.Background()

	res := svc.AddExpense(ctx, core.Expense{Date: "2024-01-01", Amount: 50.0, Category: "Food"})
	if res.Status != core.StatusSuccess || res.ID != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = svc.AddExpense(ctx, core.Expense{Date: "2024-01-02", Amount: 20.0, Category: "Food"})
	if res.ID != 2 {
		t.Fatalf("ids should increase: %+v", res)
	}

	if len(pub.events) != 2 || pub.events[0].Type != amqp.ExpenseCreated || pub.events[0].Expense == nil {
		t.Fatalf("expected created events with snapshots, got %+v", pub.events)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	svc := NewLedgerService(newFakeRepository(), nil)

	cases := []core.Expense{
		{Date: "", Amount: 1, Category: "Food"},
		{Date: "2024-01-01", Amount: 1, Category: ""},
		{Date: "2024-01-01", Amount: math.NaN(), Category: "Food"},
	}
	for i, e := range cases {
		res := svc.AddExpense(context.Background(), e)
		if res.Status != core.StatusError || res.Message == "" {
			t.Fatalf("case %d: expected validation error result, got %+v", i, res)
		}
	}
}

func TestAddExpenseStoreFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.failWith = errors.New("disk full")
	svc := NewLedgerService(repo, nil)

	res := svc.AddExpense(context.Background(), core.Expense{Date: "2024-01-01", Amount: 1, Category: "Food"})
	if res.Status != core.StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
}

func TestEditExpenseThreeWayOutcome(t *testing.T) {
	repo := newFakeRepository()
	pub := &fakePublisher{}
	svc := NewLedgerService(repo, pub)
	ctx := context.Background()

	svc.AddExpense(ctx, core.Expense{Date: "2024-01-02", Amount: 20.0, Category: "Food", Subcategory: "Lunch", Note: "sandwich"})
	pub.events = nil

	// 1. Missing id wins over everything, even an empty update.
	if res := svc.EditExpense(ctx, 99, core.ExpenseUpdate{}); res.Status != core.StatusError || res.Message != "Expense with ID 99 not found" {
		t.Fatalf("expected not-found, got %+v", res)
	}

	// 2. Present id with zero fields is a warning, not an error, and mutates
	// nothing.
	res := svc.EditExpense(ctx, 1, core.ExpenseUpdate{})
	if res.Status != core.StatusWarning || res.Message != "No changes made - no fields provided" {
		t.Fatalf("expected no-changes warning, got %+v", res)
	}
	if repo.expenses[1].Amount != 20.0 {
		t.Fatalf("no-op update mutated the store: %+v", repo.expenses[1])
	}
	if len(pub.events) != 0 {
		t.Fatalf("no-op update should publish nothing, got %+v", pub.events)
	}

	// 3. A supplied field is applied; the rest stay put.
	amount := 25.0
	res = svc.EditExpense(ctx, 1, core.ExpenseUpdate{Amount: &amount})
	if res.Status != core.StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	got := repo.expenses[1]
	if got.Amount != 25.0 || got.Date != "2024-01-02" || got.Category != "Food" || got.Subcategory != "Lunch" || got.Note != "sandwich" {
		t.Fatalf("partial update wrong: %+v", got)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.ExpenseUpdated {
		t.Fatalf("expected one updated event, got %+v", pub.events)
	}
}

func TestEditExpenseRejectsNonFiniteAmount(t *testing.T) {
	repo := newFakeRepository()
	svc := NewLedgerService(repo, nil)
	ctx := context.Background()

	svc.AddExpense(ctx, core.Expense{Date: "2024-01-01", Amount: 10, Category: "Food"})

	nan := math.NaN()
	res := svc.EditExpense(ctx, 1, core.ExpenseUpdate{Amount: &nan})
	if res.Status != core.StatusError {
		t.Fatalf("expected validation error, got %+v", res)
	}
	if repo.expenses[1].Amount != 10 {
		t.Fatalf("invalid update mutated the store: %+v", repo.expenses[1])
	}
}

func TestDeleteExpense(t *testing.T) {
	repo := newFakeRepository()
	pub := &fakePublisher{}
	svc := NewLedgerService(repo, pub)
	ctx := context.Background()

	svc.AddExpense(ctx, core.Expense{Date: "2024-01-01", Amount: 50, Category: "Food"})
	svc.AddExpense(ctx, core.Expense{Date: "2024-01-02", Amount: 20, Category: "Food"})
	svc.AddExpense(ctx, core.Expense{Date: "2024-01-03", Amount: 30, Category: "Transport"})
	pub.events = nil

	if res := svc.DeleteExpense(ctx, 1); res.Status != core.StatusSuccess {
		t.Fatalf("first delete: %+v", res)
	}

	left, err := svc.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 || left[0].ID != 2 || left[1].ID != 3 {
		t.Fatalf("expected ids {2,3}, got %+v", left)
	}

	res := svc.DeleteExpense(ctx, 1)
	if res.Status != core.StatusError || res.Message != "Expense with ID 1 not found" {
		t.Fatalf("second delete expected not-found, got %+v", res)
	}

	if len(pub.events) != 1 || pub.events[0].Type != amqp.ExpenseDeleted || pub.events[0].ID != 1 {
		t.Fatalf("expected one deleted event, got %+v", pub.events)
	}
}

func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	repo := newFakeRepository()
	pub := &fakePublisher{failWith: errors.New("broker down")}
	svc := NewLedgerService(repo, pub)

	res := svc.AddExpense(context.Background(), core.Expense{Date: "2024-01-01", Amount: 1, Category: "Food"})
	if res.Status != core.StatusSuccess {
		t.Fatalf("publish failure must not fail the operation: %+v", res)
	}
}

func TestSummarizeScenario(t *testing.T) {
	svc := NewLedgerService(newFakeRepository(), nil)
	ctx := context.Background()

	svc.AddExpense(ctx, core.Expense{Date: "2024-01-01", Amount: 50.0, Category: "Food"})
	svc.AddExpense(ctx, core.Expense{Date: "2024-01-02", Amount: 20.0, Category: "Food"})
	svc.AddExpense(ctx, core.Expense{Date: "2024-01-03", Amount: 30.0, Category: "Transport"})

	s, err := svc.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Total != 100.0 {
		t.Fatalf("expected total 100, got %v", s.Total)
	}
	if len(s.ByCategory) != 2 || s.ByCategory[0] != (core.CategoryTotal{Category: "Food", Total: 70.0}) || s.ByCategory[1] != (core.CategoryTotal{Category: "Transport", Total: 30.0}) {
		t.Fatalf("unexpected breakdown: %+v", s.ByCategory)
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	svc := NewLedgerService(newFakeRepository(), nil)

	s, err := svc.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Total != 0 || len(s.ByCategory) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestCloseClosesStorage(t *testing.T) {
	repo := newFakeRepository()
	svc := NewLedgerService(repo, nil)

	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !repo.closed {
		t.Fatal("storage not closed")
	}
}
