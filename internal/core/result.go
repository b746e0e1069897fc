package core

import "fmt"

// Status discriminates every operation outcome. Callers branch on it, never
// on payload shape.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Result is the structured outcome of a mutating ledger operation. The
// constructors below are the closed set of variants the service produces:
// created, updated, deleted, no-changes, not-found, invalid, store-error.
type Result struct {
	Status  Status `json:"status"`
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message,omitempty"`

	// Err carries the underlying store failure, when there is one. It stays
	// off the wire; transports use it to pick an HTTP status.
	Err error `json:"-"`
}

func Created(id int64) Result {
	return Result{Status: StatusSuccess, ID: id}
}

func Updated(id int64) Result {
	return Result{Status: StatusSuccess, Message: fmt.Sprintf("Expense %d updated successfully", id)}
}

func Deleted(id int64) Result {
	return Result{Status: StatusSuccess, Message: fmt.Sprintf("Expense %d deleted successfully", id)}
}

// NoChanges is the no-op outcome of an update that supplied zero fields.
// It is success-adjacent: nothing was invalid and nothing was mutated.
func NoChanges() Result {
	return Result{Status: StatusWarning, Message: "No changes made - no fields provided"}
}

func NotFound(id int64) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf("Expense with ID %d not found", id)}
}

func Invalid(err error) Result {
	return Result{Status: StatusError, Message: err.Error()}
}

func StoreError(err error) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf("store failure: %v", err), Err: err}
}
