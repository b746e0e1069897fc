package tools

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ledger/internal/core"
)

// Every tool answers with a JSON body carrying a `status` discriminator.
// Protocol-level outcomes (validation failures, not-found, the no-changes
// warning) are HTTP 200: the call itself succeeded, the result describes the
// ledger outcome. Only malformed requests (400) and store failures (500) use
// the transport status code.

type addExpenseRequest struct {
	Date        string   `json:"date"`
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Note        string   `json:"note"`
}

type editExpenseRequest struct {
	ExpenseID   *int64   `json:"expense_id"`
	Date        *string  `json:"date"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Subcategory *string  `json:"subcategory"`
	Note        *string  `json:"note"`
}

type deleteExpenseRequest struct {
	ExpenseID *int64 `json:"expense_id"`
}

type listExpensesResponse struct {
	Status   core.Status    `json:"status"`
	Expenses []core.Expense `json:"expenses"`
}

type summarizeResponse struct {
	Status     core.Status     `json:"status"`
	Total      float64         `json:"total"`
	ByCategory core.ByCategory `json:"by_category"`
}

var (
	errMissingAmount    = errors.New("missing required field: amount")
	errMissingExpenseID = errors.New("missing required field: expense_id")
)

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if !decodeParams(w, r, &req) {
		return
	}
	if req.Amount == nil {
		writeResult(w, r, core.Invalid(errMissingAmount))
		return
	}

	res := s.ledger.AddExpense(r.Context(), core.Expense{
		Date:        req.Date,
		Amount:      *req.Amount,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Note:        req.Note,
	})
	writeResult(w, r, res)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ListExpenses(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "error", err)
		writeJSON(w, http.StatusInternalServerError, core.StoreError(err))
		return
	}
	writeJSON(w, http.StatusOK, listExpensesResponse{Status: core.StatusSuccess, Expenses: expenses})
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	var req editExpenseRequest
	if !decodeParams(w, r, &req) {
		return
	}
	if req.ExpenseID == nil {
		writeResult(w, r, core.Invalid(errMissingExpenseID))
		return
	}

	update := core.ExpenseUpdate{
		Date:        req.Date,
		Amount:      req.Amount,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Note:        req.Note,
	}
	writeResult(w, r, s.ledger.EditExpense(r.Context(), *req.ExpenseID, update))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	var req deleteExpenseRequest
	if !decodeParams(w, r, &req) {
		return
	}
	if req.ExpenseID == nil {
		writeResult(w, r, core.Invalid(errMissingExpenseID))
		return
	}

	writeResult(w, r, s.ledger.DeleteExpense(r.Context(), *req.ExpenseID))
}

func (s *Server) handleSummarizeExpenses(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summarize(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to summarize expenses", "error", err)
		writeJSON(w, http.StatusInternalServerError, core.StoreError(err))
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{
		Status:     core.StatusSuccess,
		Total:      summary.Total,
		ByCategory: summary.ByCategory,
	})
}

// decodeParams parses the JSON parameter body. An empty body decodes as the
// zero request so tools without parameters can be called bare.
func decodeParams(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	slog.ErrorContext(r.Context(), "Failed to decode tool parameters",
		"error", err, "tool", r.URL.Path)
	writeJSON(w, http.StatusBadRequest, core.Result{
		Status:  core.StatusError,
		Message: "invalid JSON parameters",
	})
	return false
}

// writeResult maps a structured result onto the wire. Store failures keep
// their 500 so infrastructure problems stay visible to proxies; every other
// outcome, including not-found and validation errors, is a 200 with the
// status discriminator in the body.
func writeResult(w http.ResponseWriter, r *http.Request, res core.Result) {
	status := http.StatusOK
	if res.Err != nil {
		status = http.StatusInternalServerError
		slog.ErrorContext(r.Context(), "Tool call failed on store", "error", res.Err)
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
