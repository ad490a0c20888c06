package core

import "fmt"

// ValidationError reports a record that cannot be aggregated under the
// strict coercion policy.
type ValidationError struct {
	Record string // "payments" or "expenses"
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s[%d].%s: %s", e.Record, e.Index, e.Field, e.Reason)
}

// FetchError wraps a failed read from the backing store. The dashboard is
// not aggregated when any fetch fails.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return "fetch " + e.Op + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
