// Package http provides HTTP server and handler implementations.
//
// This file decodes request bodies into form DTOs and validates them.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"travelx/internal/core"
	"travelx/internal/services"
)

// maxBodyBytes caps form and JSON bodies.
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// EntryForm is the master entry form: a new client and their first payment.
type EntryForm struct {
	ClientName    string `form:"client_name" validate:"required,max=200"`
	FatherName    string `form:"father_name" validate:"max=200"`
	MobileNumber  string `form:"mobile_number" validate:"required,max=20"`
	IDProofType   string `form:"id_proof_type" validate:"required,oneof=aadhar pan license passport voter_id"`
	IDProofNumber string `form:"id_proof_number" validate:"max=50"`
	ServiceType   string `form:"service_type" validate:"required,oneof=self_drive taxi tour"`
	PaymentMode   string `form:"payment_mode" validate:"required,oneof=upi cash bank_transfer"`
	BankName      string `form:"received_bank_name" validate:"max=100"`
	TransactionID string `form:"transaction_id" validate:"max=100"`
	Amount        string `form:"amount" validate:"required"`
	PaymentStatus string `form:"payment_status" validate:"omitempty,oneof=advance pending completed"`
	BookingDate   string `form:"booking_date" validate:"omitempty,datetime=2006-01-02"`
}

// ExpenseForm is the expense entry form.
type ExpenseForm struct {
	Category      string `form:"category" validate:"required,max=100"`
	Description   string `form:"description" validate:"required,max=500"`
	Amount        string `form:"amount" validate:"required"`
	PaymentMethod string `form:"payment_method" validate:"required,oneof=cash upi bank"`
	ExpenseDate   string `form:"expense_date" validate:"omitempty,datetime=2006-01-02"`
	Notes         string `form:"notes" validate:"max=1000"`
}

// LoginForm is the operator sign-in form.
type LoginForm struct {
	Username   string `form:"username" validate:"required,max=100"`
	Password   string `form:"password" validate:"required,max=200"`
	RememberMe bool   `form:"remember_me"`
}

// GSTQuery is the live tax preview request. Unknown service types are
// allowed; they preview at rate 0.
type GSTQuery struct {
	Amount      string `form:"amount" validate:"required"`
	ServiceType string `form:"service_type" validate:"max=50"`
}

// Inputs converts a validated entry form into service inputs.
func (f EntryForm) Inputs() (services.ClientInput, services.PaymentInput, error) {
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return services.ClientInput{}, services.PaymentInput{}, err
	}
	var booking core.Date
	if f.BookingDate != "" {
		if booking, err = core.ParseDate(f.BookingDate); err != nil {
			return services.ClientInput{}, services.PaymentInput{}, err
		}
	}
	ci := services.ClientInput{
		Name:          f.ClientName,
		FatherName:    f.FatherName,
		MobileNumber:  f.MobileNumber,
		IDProofType:   core.IDProofType(f.IDProofType),
		IDProofNumber: f.IDProofNumber,
	}
	pi := services.PaymentInput{
		ServiceType:   core.ServiceCategory(f.ServiceType),
		PaymentMode:   core.PaymentMode(f.PaymentMode),
		BankName:      f.BankName,
		TransactionID: f.TransactionID,
		Amount:        amount,
		Status:        core.PaymentStatus(f.PaymentStatus),
		BookingDate:   booking,
	}
	return ci, pi, nil
}

// Input converts a validated expense form into a service input.
func (f ExpenseForm) Input() (services.ExpenseInput, error) {
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	var date core.Date
	if f.ExpenseDate != "" {
		if date, err = core.ParseDate(f.ExpenseDate); err != nil {
			return services.ExpenseInput{}, err
		}
	}
	return services.ExpenseInput{
		Category:      f.Category,
		Description:   f.Description,
		Amount:        amount,
		PaymentMethod: core.PaymentMethod(f.PaymentMethod),
		ExpenseDate:   date,
		Notes:         f.Notes,
	}, nil
}

// Breakdown parses the amount and computes the preview.
func (q GSTQuery) Breakdown() (core.TaxBreakdown, decimal.Decimal, error) {
	amount, err := core.ParseAmount(q.Amount)
	if err != nil {
		return core.TaxBreakdown{}, decimal.Zero, err
	}
	return core.ComputeTax(amount, core.ServiceCategory(q.ServiceType)), amount, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if p.err == nil && len(p.body) > maxBodyBytes {
			p.err = errors.New("request body too large")
		}
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.IsJSON() || p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool treats "on", "true" and "1" as set.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// IsJSON reports whether the request declared a JSON body.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil || strings.HasPrefix(p.contentType, "application/json")
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Decode fills the string and bool fields of dst, a pointer to a form DTO,
// from the parsed body using their form tags, then validates it.
func (p *RequestBodyParser) Decode(dst any) error {
	if err := p.Parse(); err != nil {
		return err
	}
	return decodeValues(dst, p.Get, p.Bool)
}

// DecodeQuery is Decode for URL query parameters.
func DecodeQuery(q url.Values, dst any) error {
	get := func(k string) string { return sanitizeInput(q.Get(k)) }
	on := func(k string) bool { return q.Get(k) != "" }
	return decodeValues(dst, get, on)
}

func decodeValues(dst any, get func(string) string, on func(string) bool) error {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("form"), ",")
		if name == "" || name == "-" {
			continue
		}
		switch f := v.Field(i); f.Kind() {
		case reflect.String:
			f.SetString(get(name))
		case reflect.Bool:
			f.SetBool(on(name))
		}
	}
	return validate.Struct(dst)
}

// describeValidation turns validator errors into one line per field.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s is too long (max %s)", fe.Field(), fe.Param()))
		case "datetime":
			msgs = append(msgs, fe.Field()+" must be a date (YYYY-MM-DD)")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}
