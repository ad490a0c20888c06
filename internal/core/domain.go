package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ServiceSelfDrive ServiceCategory = "self_drive"
	ServiceTaxi      ServiceCategory = "taxi"
	ServiceTour      ServiceCategory = "tour"
)

const (
	ModeUPI          PaymentMode = "upi"
	ModeCash         PaymentMode = "cash"
	ModeBankTransfer PaymentMode = "bank_transfer"
)

const (
	StatusAdvance   PaymentStatus = "advance"
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
)

const (
	MethodCash PaymentMethod = "cash"
	MethodUPI  PaymentMethod = "upi"
	MethodBank PaymentMethod = "bank"
)

const (
	ProofAadhar   IDProofType = "aadhar"
	ProofPAN      IDProofType = "pan"
	ProofLicense  IDProofType = "license"
	ProofPassport IDProofType = "passport"
	ProofVoterID  IDProofType = "voter_id"
)

type (
	// ServiceCategory is the kind of travel service a payment is for. It
	// decides the GST rate.
	ServiceCategory string

	// PaymentMode is how a client paid.
	PaymentMode string

	// PaymentStatus tracks whether a payment is settled.
	PaymentStatus string

	// PaymentMethod is how the business paid an expense.
	PaymentMethod string

	// IDProofType is the identity document a client presented.
	IDProofType string

	// Date is a civil date. Only year, month and day are meaningful.
	Date struct {
		time.Time
	}

	Client struct {
		ID            uuid.UUID
		Name          string
		FatherName    string
		MobileNumber  string
		IDProofType   IDProofType
		IDProofNumber string
		CreatedAt     time.Time
	}

	Payment struct {
		ID            uuid.UUID
		ClientID      uuid.UUID
		ServiceType   ServiceCategory
		PaymentMode   PaymentMode
		BankName      string // optional
		TransactionID string // optional
		Amount        decimal.Decimal
		Status        PaymentStatus
		BookingDate   Date
		GSTRate       decimal.Decimal
		GSTAmount     decimal.Decimal
		TotalAmount   decimal.Decimal
		CreatedAt     time.Time
	}

	Expense struct {
		ID            uuid.UUID
		Category      string
		Description   string
		Amount        decimal.Decimal
		PaymentMethod PaymentMethod
		ExpenseDate   Date
		Notes         string // optional
		CreatedAt     time.Time
	}

	// AppUser is a dashboard operator allowed to log in.
	AppUser struct {
		ID           string
		Username     string
		FullName     string
		Role         string
		PasswordHash string
		IsActive     bool
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyClientName    = errors.New("empty client name")
	ErrEmptyMobileNumber  = errors.New("empty mobile number")
	ErrInvalidIDProof     = errors.New("invalid id proof type")
	ErrInvalidService     = errors.New("invalid service type")
	ErrInvalidPaymentMode = errors.New("invalid payment mode")
	ErrInvalidStatus      = errors.New("invalid payment status")
	ErrInvalidMethod      = errors.New("invalid payment method")
	ErrEmptyCategory      = errors.New("empty expense category")
	ErrEmptyDescription   = errors.New("empty description")
	ErrMissingClient      = errors.New("payment has no client")
	ErrGSTInvariantBroken = errors.New("gst fields do not match amount and rate")
)

// ExpenseCategories is the suggested category list shown on the expense form.
// The stored category is free text.
var ExpenseCategories = []string{
	"fuel",
	"maintenance",
	"insurance",
	"office_rent",
	"utilities",
	"marketing",
	"staff_salary",
	"food_accommodation",
	"permits_licenses",
	"office_supplies",
	"other",
}

// ServiceCategories returns the closed set in display order.
func ServiceCategories() []ServiceCategory {
	return []ServiceCategory{ServiceSelfDrive, ServiceTaxi, ServiceTour}
}

func (s ServiceCategory) IsValid() bool {
	switch s {
	case ServiceSelfDrive, ServiceTaxi, ServiceTour:
		return true
	default:
		return false
	}
}

// Label returns the name used on dashboard cards and charts.
func (s ServiceCategory) Label() string {
	switch s {
	case ServiceSelfDrive:
		return "Self Drive"
	case ServiceTaxi:
		return "Taxi"
	case ServiceTour:
		return "Tour"
	default:
		return string(s)
	}
}

func ParseServiceCategory(v string) (ServiceCategory, error) {
	s := ServiceCategory(strings.TrimSpace(v))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidService, v)
	}
	return s, nil
}

func (m PaymentMode) IsValid() bool {
	switch m {
	case ModeUPI, ModeCash, ModeBankTransfer:
		return true
	default:
		return false
	}
}

func ParsePaymentMode(v string) (PaymentMode, error) {
	m := PaymentMode(strings.TrimSpace(v))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMode, v)
	}
	return m, nil
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case StatusAdvance, StatusPending, StatusCompleted:
		return true
	default:
		return false
	}
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	s := PaymentStatus(strings.TrimSpace(v))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodBank:
		return true
	default:
		return false
	}
}

func ParsePaymentMethod(v string) (PaymentMethod, error) {
	m := PaymentMethod(strings.TrimSpace(v))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, v)
	}
	return m, nil
}

func (p IDProofType) IsValid() bool {
	switch p {
	case ProofAadhar, ProofPAN, ProofLicense, ProofPassport, ProofVoterID:
		return true
	default:
		return false
	}
}

func ParseIDProofType(v string) (IDProofType, error) {
	p := IDProofType(strings.TrimSpace(v))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidIDProof, v)
	}
	return p, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Longer ISO timestamps are accepted
// and truncated to their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// SameMonth reports whether d falls in the given calendar year and month.
func (d Date) SameMonth(year int, month time.Month) bool {
	return !d.IsZero() && d.Year() == year && d.Month() == month
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyClientName
	}
	if len(c.Name) > 200 {
		return errors.New("client name too long (max 200 characters)")
	}
	if strings.TrimSpace(c.MobileNumber) == "" {
		return ErrEmptyMobileNumber
	}
	if !c.IDProofType.IsValid() {
		return ErrInvalidIDProof
	}
	return nil
}

func (p Payment) Validate() error {
	if p.ClientID == uuid.Nil {
		return ErrMissingClient
	}
	if !p.ServiceType.IsValid() {
		return ErrInvalidService
	}
	if !p.PaymentMode.IsValid() {
		return ErrInvalidPaymentMode
	}
	if !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.BookingDate.IsZero() {
		return ErrInvalidDate
	}
	if !p.GSTAmount.Equal(TaxAmount(p.Amount, p.GSTRate)) || !p.TotalAmount.Equal(p.Amount.Add(p.GSTAmount)) {
		return ErrGSTInvariantBroken
	}
	return nil
}

// ApplyGST fills GSTRate, GSTAmount and TotalAmount from the rate table.
// It is called once at creation; stored payments keep the rate they were
// created with.
func (p *Payment) ApplyGST() {
	b := ComputeTax(p.Amount, p.ServiceType)
	p.GSTRate = b.Rate
	p.GSTAmount = b.TaxAmount
	p.TotalAmount = b.Total
}

// Record returns the aggregation view of the payment.
func (p Payment) Record() PaymentRecord {
	return PaymentRecord{
		ID:          p.ID.String(),
		ServiceType: string(p.ServiceType),
		Status:      string(p.Status),
		Amount:      decimal.NewNullDecimal(p.Amount),
		GSTAmount:   decimal.NewNullDecimal(p.GSTAmount),
		BookingDate: p.BookingDate,
	}
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.PaymentMethod.IsValid() {
		return ErrInvalidMethod
	}
	if e.ExpenseDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Record returns the aggregation view of the expense.
func (e Expense) Record() ExpenseRecord {
	return ExpenseRecord{
		ID:          e.ID.String(),
		Amount:      decimal.NewNullDecimal(e.Amount),
		ExpenseDate: e.ExpenseDate,
	}
}
