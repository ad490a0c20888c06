package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"travelx/internal/core"
	"travelx/internal/log"
)

// inputErrors are the domain validation failures reported back to the
// operator as 422.
var inputErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyClientName,
	core.ErrEmptyMobileNumber,
	core.ErrInvalidIDProof,
	core.ErrInvalidService,
	core.ErrInvalidPaymentMode,
	core.ErrInvalidStatus,
	core.ErrInvalidMethod,
	core.ErrEmptyCategory,
	core.ErrEmptyDescription,
}

func isInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

const amountHint = "amount must be a positive number with at most two decimals"

type option struct {
	Value, Label string
}

type entryPage struct {
	pageData
	Today     string
	Services  []option
	Modes     []option
	Statuses  []option
	IDProofs  []option
	NoPreview gstPreview
}

func (s *Server) newEntryPage(r *http.Request) entryPage {
	p := entryPage{pageData: s.page(r, "New entry"), Today: s.today().String()}
	for _, sc := range core.ServiceCategories() {
		p.Services = append(p.Services, option{string(sc), sc.Label()})
	}
	p.Modes = []option{
		{string(core.ModeUPI), "UPI"},
		{string(core.ModeCash), "Cash"},
		{string(core.ModeBankTransfer), "Bank transfer"},
	}
	p.Statuses = []option{
		{string(core.StatusPending), "Pending"},
		{string(core.StatusAdvance), "Advance"},
		{string(core.StatusCompleted), "Completed"},
	}
	p.IDProofs = []option{
		{string(core.ProofAadhar), "Aadhar"},
		{string(core.ProofPAN), "PAN"},
		{string(core.ProofLicense), "Driving licence"},
		{string(core.ProofPassport), "Passport"},
		{string(core.ProofVoterID), "Voter ID"},
	}
	return p
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "entry.html", s.newEntryPage(r))
	case http.MethodPost:
		s.createEntry(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentLedger)
	parser := NewRequestBodyParser(r)

	var form EntryForm
	if err := parser.Decode(&form); err != nil {
		s.rejectInput(w, parser, describeValidation(err))
		return
	}
	ci, pi, err := form.Inputs()
	if err != nil {
		msg := err.Error()
		if errors.Is(err, core.ErrInvalidAmount) {
			msg = amountHint
		}
		s.rejectInput(w, parser, msg)
		return
	}

	entry, err := s.ledger.CreateEntry(r.Context(), ci, pi)
	if err != nil {
		if isInputError(err) {
			s.rejectInput(w, parser, err.Error())
			return
		}
		logger.ErrorContext(r.Context(), "Entry creation failed",
			log.FieldError, err,
			log.FieldServiceType, form.ServiceType,
			log.FieldOperation, log.OpCreate)
		if parser.IsJSON() {
			writeJSONError(w, http.StatusInternalServerError, "could not save entry")
			return
		}
		InternalServerError("Could not save the entry. Please try again.").Write(w)
		return
	}
	atomic.AddInt64(&s.metrics.entriesCreated, 1)

	p := entry.Payment
	if parser.IsJSON() {
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"client_id":    entry.Client.ID,
			"payment_id":   p.ID,
			"service_type": p.ServiceType,
			"amount":       p.Amount,
			"gst_rate":     p.GSTRate,
			"gst_amount":   p.GSTAmount,
			"total_amount": p.TotalAmount,
			"booking_date": p.BookingDate.String(),
		})
		return
	}

	body, err := s.renderString("entry-result", entry)
	if err != nil {
		logger.ErrorContext(r.Context(), "Entry result render failed", log.FieldError, err)
		body = `<div class="success">Entry saved.</div>`
	}
	NewHTMXResponse().
		TriggerEntryCreated(p.ID.String(), p.BookingDate.Year(), int(p.BookingDate.Month())).
		TriggerDashboardRefresh().
		TriggerFormReset().
		TriggerSuccessNotification("Entry saved for " + entry.Client.Name).
		BodyHTML(body).
		Write(w)
}

// rejectInput answers 422 in the format the caller sent.
func (s *Server) rejectInput(w http.ResponseWriter, parser *RequestBodyParser, msg string) {
	if parser.IsJSON() {
		writeJSONError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	UnprocessableEntityError(msg).Write(w)
}

type gstPreview struct {
	Valid   bool
	Amount  decimal.Decimal
	Service core.ServiceCategory
	core.TaxBreakdown
}

func (s *Server) handleGST(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	var q GSTQuery
	if err := DecodeQuery(r.URL.Query(), &q); err != nil {
		writeJSONError(w, http.StatusBadRequest, describeValidation(err))
		return
	}
	b, amount, err := q.Breakdown()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, amountHint)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":       amount,
		"service_type": q.ServiceType,
		"rate":         b.Rate,
		"tax_amount":   b.TaxAmount,
		"total":        b.Total,
	})
}

// handleGSTPreview renders the live tax preview under the entry form. Bad
// input renders an empty preview rather than an error.
func (s *Server) handleGSTPreview(w http.ResponseWriter, r *http.Request) {
	var q GSTQuery
	var data gstPreview
	if err := DecodeQuery(r.URL.Query(), &q); err == nil {
		if b, amount, err := q.Breakdown(); err == nil {
			data = gstPreview{Valid: true, Amount: amount, Service: core.ServiceCategory(q.ServiceType), TaxBreakdown: b}
		}
	}
	s.render(w, r, http.StatusOK, "gst-preview", data)
}
