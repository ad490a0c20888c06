package sheets

import (
	"context"

	"travelx/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors saved records into an external ledger. Appends
	// are idempotent per record ID so redelivered sync messages do not
	// duplicate rows.
	LedgerExporter interface {
		AppendPayment(ctx context.Context, p core.Payment, c core.Client) (rowRef string, err error)
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)
