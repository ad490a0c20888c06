package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travelx/internal/amqp"
	"travelx/internal/core"
	"travelx/internal/log"
	"travelx/internal/store"
)

// Publisher announces stored records to the sync worker.
type Publisher interface {
	PublishRecordSync(ctx context.Context, kind amqp.RecordKind, id uuid.UUID) error
}

// LedgerStore is the write side of the store.
type LedgerStore interface {
	store.ClientWriter
	store.PaymentWriter
	store.ExpenseWriter
}

type (
	ClientInput struct {
		Name          string
		FatherName    string
		MobileNumber  string
		IDProofType   core.IDProofType
		IDProofNumber string
	}

	PaymentInput struct {
		ServiceType   core.ServiceCategory
		PaymentMode   core.PaymentMode
		BankName      string
		TransactionID string
		Amount        decimal.Decimal
		Status        core.PaymentStatus // pending when empty
		BookingDate   core.Date          // today when zero
	}

	ExpenseInput struct {
		Category      string
		Description   string
		Amount        decimal.Decimal
		PaymentMethod core.PaymentMethod
		ExpenseDate   core.Date // today when zero
		Notes         string
	}

	// Entry is the result of the master entry form.
	Entry struct {
		Client  core.Client
		Payment core.Payment
	}
)

// LedgerService stores clients, payments and expenses and announces them
// for export.
type LedgerService struct {
	store     LedgerStore
	publisher Publisher
	onWrite   func()
	logger    *log.StructuredLogger
	loc       *time.Location
	now       func() time.Time
}

type LedgerOption func(*LedgerService)

// WithPublisher enables record sync messages. Without it the service only
// writes to the store.
func WithPublisher(p Publisher) LedgerOption {
	return func(s *LedgerService) { s.publisher = p }
}

// WithWriteHook registers a callback run after every successful write;
// used to invalidate dashboard caches.
func WithWriteHook(fn func()) LedgerOption {
	return func(s *LedgerService) { s.onWrite = fn }
}

func WithLocation(loc *time.Location) LedgerOption {
	return func(s *LedgerService) { s.loc = loc }
}

func NewLedgerService(st LedgerStore, logger *log.Logger, opts ...LedgerOption) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &LedgerService{
		store:  st,
		logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEntry stores a new client and its first payment. GST is computed
// here, once, from the rate table.
func (s *LedgerService) CreateEntry(ctx context.Context, ci ClientInput, pi PaymentInput) (Entry, error) {
	client := core.Client{
		Name:          strings.TrimSpace(ci.Name),
		FatherName:    strings.TrimSpace(ci.FatherName),
		MobileNumber:  strings.TrimSpace(ci.MobileNumber),
		IDProofType:   ci.IDProofType,
		IDProofNumber: strings.TrimSpace(ci.IDProofNumber),
	}
	if err := client.Validate(); err != nil {
		return Entry{}, err
	}

	payment := core.Payment{
		ID:            uuid.New(),
		ServiceType:   pi.ServiceType,
		PaymentMode:   pi.PaymentMode,
		BankName:      strings.TrimSpace(pi.BankName),
		TransactionID: strings.TrimSpace(pi.TransactionID),
		Amount:        pi.Amount,
		Status:        pi.Status,
		BookingDate:   pi.BookingDate,
	}
	if payment.Status == "" {
		payment.Status = core.StatusPending
	}
	if payment.BookingDate.IsZero() {
		payment.BookingDate = s.today()
	}
	payment.ApplyGST()
	// Checked before the client insert so a bad payment leaves no orphan.
	payment.ClientID = uuid.New()
	if err := payment.Validate(); err != nil {
		return Entry{}, err
	}

	client.ID = payment.ClientID
	stored, err := s.store.InsertClient(ctx, client)
	if err != nil {
		return Entry{}, fmt.Errorf("save client: %w", err)
	}
	payment.ClientID = stored.ID
	if err := s.store.InsertPayment(ctx, payment); err != nil {
		return Entry{}, fmt.Errorf("save payment: %w", err)
	}

	s.logger.LogPaymentCreated(ctx, payment.ID.String(), stored.ID.String(), string(payment.ServiceType),
		payment.Amount.String(), payment.GSTAmount.String())
	s.afterWrite(ctx, amqp.KindPayment, payment.ID)

	return Entry{Client: stored, Payment: payment}, nil
}

// CreateExpense validates and stores an expense.
func (s *LedgerService) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		ID:            uuid.New(),
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		ExpenseDate:   in.ExpenseDate,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = s.today()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.InsertExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.logger.LogExpenseCreated(ctx, e.ID.String(), e.Category, e.Amount.String())
	s.afterWrite(ctx, amqp.KindExpense, e.ID)

	return e, nil
}

func (s *LedgerService) afterWrite(ctx context.Context, kind amqp.RecordKind, id uuid.UUID) {
	if s.onWrite != nil {
		s.onWrite()
	}
	if s.publisher == nil {
		return
	}
	// The record is saved locally; a lost sync message must not fail the request.
	if err := s.publisher.PublishRecordSync(ctx, kind, id); err != nil {
		s.logger.LogError(ctx, "Failed to publish sync message", err, log.ComponentAMQP, log.OpSync,
			log.LogFields{log.FieldRecordKind: string(kind), log.FieldRecordID: id.String()})
	}
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}
