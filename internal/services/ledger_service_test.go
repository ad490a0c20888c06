package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelx/internal/amqp"
	"travelx/internal/core"
	"travelx/internal/store/memory"
)

type published struct {
	kind amqp.RecordKind
	id   uuid.UUID
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) PublishRecordSync(_ context.Context, kind amqp.RecordKind, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{kind, id})
	return nil
}

func validClientInput() ClientInput {
	return ClientInput{
		Name:         " Ravi Kumar ",
		FatherName:   "Mohan",
		MobileNumber: "9876543210",
		IDProofType:  core.ProofAadhar,
	}
}

func TestLedgerService_CreateEntry(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	pub := &fakePublisher{}
	writes := 0
	svc := NewLedgerService(st, nil, WithPublisher(pub), WithWriteHook(func() { writes++ }))

	entry, err := svc.CreateEntry(ctx, validClientInput(), PaymentInput{
		ServiceType: core.ServiceSelfDrive,
		PaymentMode: core.ModeUPI,
		Amount:      decimal.NewFromInt(1000),
		BookingDate: core.NewDate(2024, 3, 15),
	})
	require.NoError(t, err)

	assert.Equal(t, "Ravi Kumar", entry.Client.Name)
	assert.Equal(t, entry.Client.ID, entry.Payment.ClientID)
	assert.Equal(t, core.StatusPending, entry.Payment.Status, "status defaults to pending")
	assert.True(t, entry.Payment.GSTRate.Equal(decimal.NewFromInt(18)))
	assert.True(t, entry.Payment.GSTAmount.Equal(decimal.NewFromInt(180)))
	assert.True(t, entry.Payment.TotalAmount.Equal(decimal.NewFromInt(1180)))

	stored, err := st.GetPayment(ctx, entry.Payment.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.Validate())

	require.Len(t, pub.sent, 1)
	assert.Equal(t, published{amqp.KindPayment, entry.Payment.ID}, pub.sent[0])
	assert.Equal(t, 1, writes)
}

func TestLedgerService_CreateEntryDefaultsBookingDateToToday(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	svc := NewLedgerService(memory.New(), nil, WithLocation(ist))
	// 20:00 UTC on 31 May is 1 June in India.
	svc.now = func() time.Time { return time.Date(2024, time.May, 31, 20, 0, 0, 0, time.UTC) }

	entry, err := svc.CreateEntry(context.Background(), validClientInput(), PaymentInput{
		ServiceType: core.ServiceTaxi,
		PaymentMode: core.ModeCash,
		Amount:      decimal.NewFromInt(2000),
		Status:      core.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", entry.Payment.BookingDate.String())
	assert.True(t, entry.Payment.GSTAmount.Equal(decimal.NewFromInt(100)))
}

func TestLedgerService_CreateEntryRejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	pub := &fakePublisher{}
	svc := NewLedgerService(st, nil, WithPublisher(pub))

	tests := []struct {
		name   string
		client ClientInput
		pay    PaymentInput
		want   error
	}{
		{
			name:   "bad service",
			client: validClientInput(),
			pay:    PaymentInput{ServiceType: "boat", PaymentMode: core.ModeCash, Amount: decimal.NewFromInt(1)},
			want:   core.ErrInvalidService,
		},
		{
			name:   "zero amount",
			client: validClientInput(),
			pay:    PaymentInput{ServiceType: core.ServiceTour, PaymentMode: core.ModeCash},
			want:   core.ErrInvalidAmount,
		},
		{
			name:   "missing client name",
			client: ClientInput{MobileNumber: "1", IDProofType: core.ProofPAN},
			pay:    PaymentInput{ServiceType: core.ServiceTour, PaymentMode: core.ModeCash, Amount: decimal.NewFromInt(1)},
			want:   core.ErrEmptyClientName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEntry(ctx, tt.client, tt.pay)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, _ := st.CountClients(ctx)
	assert.Zero(t, n, "no orphan clients")
	assert.Empty(t, pub.sent)
}

func TestLedgerService_PublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewLedgerService(st, nil, WithPublisher(&fakePublisher{err: errors.New("broker down")}))

	e, err := svc.CreateExpense(ctx, ExpenseInput{
		Category:      "fuel",
		Description:   "Diesel",
		Amount:        decimal.RequireFromString("2500.50"),
		PaymentMethod: core.MethodCash,
		ExpenseDate:   core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	got, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Diesel", got.Description)
}

func TestLedgerService_CreateExpense(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), nil, WithPublisher(pub))
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

	e, err := svc.CreateExpense(context.Background(), ExpenseInput{
		Category:      "maintenance",
		Description:   "Tyres",
		Amount:        decimal.NewFromInt(8000),
		PaymentMethod: core.MethodBank,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", e.ExpenseDate.String())
	require.Len(t, pub.sent, 1)
	assert.Equal(t, amqp.KindExpense, pub.sent[0].kind)

	_, err = svc.CreateExpense(context.Background(), ExpenseInput{Category: "fuel", Amount: decimal.NewFromInt(1), PaymentMethod: core.MethodCash})
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
}
