// Package store declares the persistence ports the services depend on.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"travelx/internal/auth"
	"travelx/internal/core"
)

var ErrNotFound = errors.New("record not found")

// Ports for the ledger store.
type (
	ClientWriter interface {
		InsertClient(ctx context.Context, c core.Client) (core.Client, error)
	}

	PaymentWriter interface {
		InsertPayment(ctx context.Context, p core.Payment) error
	}

	ExpenseWriter interface {
		InsertExpense(ctx context.Context, e core.Expense) error
	}

	// DashboardReader returns the raw rows the aggregator consumes.
	DashboardReader interface {
		CountClients(ctx context.Context) (int, error)
		ListPayments(ctx context.Context) ([]core.PaymentRecord, error)
		// ListExpenses returns only amount and date per expense.
		ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	}

	// RecordReader loads single records for the sync worker.
	RecordReader interface {
		GetClient(ctx context.Context, id uuid.UUID) (core.Client, error)
		GetPayment(ctx context.Context, id uuid.UUID) (core.Payment, error)
		GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error)
	}

	// UserWriter provisions operator accounts.
	UserWriter interface {
		UpsertUser(ctx context.Context, u core.AppUser) error
	}

	Store interface {
		ClientWriter
		PaymentWriter
		ExpenseWriter
		DashboardReader
		RecordReader
		UserWriter
		auth.UserStore
	}
)
