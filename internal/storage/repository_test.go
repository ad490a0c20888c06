package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelx/internal/auth"
	"travelx/internal/core"
	"travelx/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "travelx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_EntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	c, err := repo.InsertClient(ctx, core.Client{
		Name:          "Ravi Kumar",
		FatherName:    "Mohan Kumar",
		MobileNumber:  "9876543210",
		IDProofType:   core.ProofAadhar,
		IDProofNumber: "1234 5678 9012",
	})
	require.NoError(t, err)

	p := core.Payment{
		ID:            uuid.New(),
		ClientID:      c.ID,
		ServiceType:   core.ServiceSelfDrive,
		PaymentMode:   core.ModeBankTransfer,
		BankName:      "SBI",
		TransactionID: "TXN42",
		Amount:        decimal.RequireFromString("999.99"),
		Status:        core.StatusAdvance,
		BookingDate:   core.NewDate(2024, 3, 15),
	}
	p.ApplyGST()
	require.NoError(t, repo.InsertPayment(ctx, p))

	got, err := repo.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ClientID)
	assert.Equal(t, "SBI", got.BankName)
	assert.Equal(t, "2024-03-15", got.BookingDate.String())
	assert.True(t, got.GSTAmount.Equal(decimal.RequireFromString("179.9982")), "gst %s", got.GSTAmount)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("1179.9882")), "total %s", got.TotalAmount)
	assert.NoError(t, got.Validate(), "stored payment keeps the GST invariant")

	gotClient, err := repo.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mohan Kumar", gotClient.FatherName)
	assert.Equal(t, core.ProofAadhar, gotClient.IDProofType)

	n, err := repo.CountClients(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "self_drive", records[0].ServiceType)
	assert.Equal(t, "advance", records[0].Status)
	assert.True(t, records[0].Amount.Valid)
}

func TestSQLiteRepository_Expenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	e := core.Expense{
		ID:            uuid.New(),
		Category:      "fuel",
		Description:   "Diesel",
		Amount:        decimal.RequireFromString("2500.50"),
		PaymentMethod: core.MethodUPI,
		ExpenseDate:   core.NewDate(2024, 3, 1),
		Notes:         "Innova",
	}
	require.NoError(t, repo.InsertExpense(ctx, e))

	got, err := repo.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Innova", got.Notes)
	assert.True(t, got.Amount.Equal(e.Amount))

	records, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-03-01", records[0].ExpenseDate.String())
}

func TestSQLiteRepository_MalformedRowsComeBackMissing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.db.ExecContext(ctx, `INSERT INTO expenses (id, category, description, amount, payment_method, expense_date)
		VALUES ('x1', 'fuel', 'bad', 'twelve', 'cash', NULL), ('x2', 'fuel', 'null', NULL, 'cash', '2024-02-30')`)
	require.NoError(t, err)

	records, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.False(t, r.Amount.Valid, r.ID)
		assert.True(t, r.ExpenseDate.IsZero(), r.ID)
	}

	sum, err := core.Aggregate(core.AggregateInput{Expenses: records, Now: time.Now()}, core.AggregateOptions{})
	require.NoError(t, err)
	assert.True(t, sum.TotalExpenses.IsZero())

	_, err = core.Aggregate(core.AggregateInput{Expenses: records, Now: time.Now()}, core.AggregateOptions{Policy: core.Strict})
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSQLiteRepository_PaymentNeedsClient(t *testing.T) {
	repo := newTestRepo(t)
	p := core.Payment{
		ID:          uuid.New(),
		ClientID:    uuid.New(),
		ServiceType: core.ServiceTaxi,
		PaymentMode: core.ModeCash,
		Amount:      decimal.NewFromInt(10),
		Status:      core.StatusPending,
		BookingDate: core.NewDate(2024, 1, 1),
	}
	p.ApplyGST()
	assert.Error(t, repo.InsertPayment(context.Background(), p))
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.GetPayment(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetExpense(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetClient(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.FindActiveUser(ctx, "admin")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	require.NoError(t, repo.UpsertUser(ctx, core.AppUser{Username: "admin", FullName: "Admin", Role: "admin", PasswordHash: "h1", IsActive: true}))
	u, err := repo.FindActiveUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "h1", u.PasswordHash)
	assert.True(t, u.IsActive)

	require.NoError(t, repo.UpsertUser(ctx, core.AppUser{Username: "admin", PasswordHash: "h2", IsActive: false}))
	_, err = repo.FindActiveUser(ctx, "admin")
	assert.ErrorIs(t, err, auth.ErrUserNotFound, "deactivated user cannot log in")
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
