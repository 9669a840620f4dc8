package sync

import (
	"context"
)

// Condition is one predicate of an ERP domain filter, expressed as the ERP's
// native [field, operator, value] triplet.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// Filter is a conjunction of conditions applied server-side by the ERP
type Filter []Condition

// Eq is shorthand for an equality condition
func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: "=", Value: value}
}

// Gt is shorthand for a greater-than condition
func Gt(field string, value any) Condition {
	return Condition{Field: field, Operator: ">", Value: value}
}

// In is shorthand for a membership condition
func In(field string, values ...any) Condition {
	return Condition{Field: field, Operator: "in", Value: values}
}

// SearchQuery describes one paginated record pull from the ERP
type SearchQuery struct {
	// Model is the ERP model name (e.g. "res.partner")
	Model string
	// Filter restricts the result set server-side
	Filter Filter
	// Fields lists the field names to fetch; empty fetches everything
	Fields []string
	// Limit caps the total number of records across pages; 0 means no cap
	Limit int
	// Order is the ERP-side sort clause; pages must not be reordered locally
	Order string
}

// RecordFunc receives one external record during a search. Returning an error
// stops the iteration and propagates the error to the SearchRead caller;
// per-record processing failures must be handled inside the callback so one
// bad record never aborts the pull.
type RecordFunc func(record ExternalRecord) error

// ERPClient is the port over the remote ERP's RPC protocol. Implementations
// authenticate lazily, cache the session for the run, retry transport
// failures with bounded backoff, and re-authenticate once when a call fails
// with an authorization error mid-run.
type ERPClient interface {
	// Authenticate validates credentials and returns the ERP session ID.
	// Fails with ErrAuth on bad credentials.
	Authenticate(ctx context.Context) (int64, error)

	// CheckCapabilities verifies the execute RPC this engine depends on is
	// reachable. Called once at startup; failure is a fatal configuration
	// error, never a silent fallback.
	CheckCapabilities(ctx context.Context) error

	// SearchRead streams records matching the query, fetching successive
	// pages transparently until exhaustion or the query limit. Records are
	// delivered in ERP order.
	SearchRead(ctx context.Context, query SearchQuery, fn RecordFunc) error

	// Create inserts a record on the ERP and returns its external ID.
	// Used only by reverse-direction flows such as link repair.
	Create(ctx context.Context, model string, fields map[string]any) (int64, error)

	// Write updates existing ERP records in place
	Write(ctx context.Context, model string, ids []int64, fields map[string]any) error
}
