package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"travelx/internal/auth"
	"travelx/internal/core"
	"travelx/internal/store"
)

func newPayment(clientID uuid.UUID, amount string) core.Payment {
	p := core.Payment{
		ID:          uuid.New(),
		ClientID:    clientID,
		ServiceType: core.ServiceTaxi,
		PaymentMode: core.ModeCash,
		Amount:      decimal.RequireFromString(amount),
		Status:      core.StatusPending,
		BookingDate: core.NewDate(2024, 3, 15),
	}
	p.ApplyGST()
	return p
}

func TestMemoryStoreInsertAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	c, err := s.InsertClient(ctx, core.Client{Name: "Ravi", MobileNumber: "98", IDProofType: core.ProofPAN})
	if err != nil || c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		t.Fatalf("unexpected insert: client=%+v err=%v", c, err)
	}
	if err := s.InsertPayment(ctx, newPayment(c.ID, "2000")); err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	if err := s.InsertExpense(ctx, core.Expense{
		ID:            uuid.New(),
		Category:      "fuel",
		Description:   "diesel",
		Amount:        decimal.NewFromInt(40),
		PaymentMethod: core.MethodUPI,
		ExpenseDate:   core.NewDate(2024, 3, 1),
	}); err != nil {
		t.Fatalf("insert expense: %v", err)
	}

	n, _ := s.CountClients(ctx)
	pays, _ := s.ListPayments(ctx)
	exps, _ := s.ListExpenses(ctx)
	if n != 1 || len(pays) != 1 || len(exps) != 1 {
		t.Fatalf("unexpected counts: clients=%d payments=%d expenses=%d", n, len(pays), len(exps))
	}
	if !pays[0].GSTAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("gst = %s, want 100", pays[0].GSTAmount.Decimal)
	}
	if got, err := s.GetClient(ctx, c.ID); err != nil || got.Name != "Ravi" {
		t.Errorf("GetClient = %+v, %v", got, err)
	}
}

func TestMemoryStoreRejects(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.InsertPayment(ctx, newPayment(uuid.New(), "10")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("payment for unknown client: err=%v", err)
	}
	if _, err := s.InsertClient(ctx, core.Client{MobileNumber: "1", IDProofType: core.ProofPAN}); !errors.Is(err, core.ErrEmptyClientName) {
		t.Errorf("client without name: err=%v", err)
	}
	if _, err := s.GetPayment(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetPayment unknown: err=%v", err)
	}
}

func TestNewFromFilesSeedsUsers(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("no seed file: %v", err)
	}
	if _, err := s.FindActiveUser(context.Background(), "admin"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected no users, got err=%v", err)
	}

	content := "# operators\nadmin:s3cret:Office Admin:admin\n\nclerk:pw\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_users.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	u, err := s.FindActiveUser(context.Background(), "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if u.FullName != "Office Admin" || u.Role != "admin" {
		t.Errorf("unexpected user: %+v", u)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")) != nil {
		t.Errorf("password hash does not match")
	}
	clerk, err := s.FindActiveUser(context.Background(), "clerk")
	if err != nil || clerk.Role != "staff" {
		t.Errorf("clerk = %+v, %v", clerk, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_users.txt"), []byte("broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFiles(dir); err == nil {
		t.Errorf("expected error for malformed seed line")
	}
}
