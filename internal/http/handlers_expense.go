package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"travelx/internal/core"
	"travelx/internal/log"
)

type expensePage struct {
	pageData
	Today      string
	Categories []string
	Methods    []option
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "expense.html", expensePage{
			pageData:   s.page(r, "New expense"),
			Today:      s.today().String(),
			Categories: core.ExpenseCategories,
			Methods: []option{
				{string(core.MethodCash), "Cash"},
				{string(core.MethodUPI), "UPI"},
				{string(core.MethodBank), "Bank"},
			},
		})
	case http.MethodPost:
		s.createExpense(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentLedger)
	parser := NewRequestBodyParser(r)

	var form ExpenseForm
	if err := parser.Decode(&form); err != nil {
		s.rejectInput(w, parser, describeValidation(err))
		return
	}
	in, err := form.Input()
	if err != nil {
		msg := err.Error()
		if errors.Is(err, core.ErrInvalidAmount) {
			msg = amountHint
		}
		s.rejectInput(w, parser, msg)
		return
	}

	e, err := s.ledger.CreateExpense(r.Context(), in)
	if err != nil {
		if isInputError(err) {
			s.rejectInput(w, parser, err.Error())
			return
		}
		logger.ErrorContext(r.Context(), "Expense creation failed",
			log.FieldError, err,
			log.FieldCategory, form.Category,
			log.FieldOperation, log.OpCreate)
		if parser.IsJSON() {
			writeJSONError(w, http.StatusInternalServerError, "could not save expense")
			return
		}
		InternalServerError("Could not save the expense. Please try again.").Write(w)
		return
	}
	atomic.AddInt64(&s.metrics.expensesCreated, 1)

	if parser.IsJSON() {
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id":             e.ID,
			"category":       e.Category,
			"amount":         e.Amount,
			"payment_method": e.PaymentMethod,
			"expense_date":   e.ExpenseDate.String(),
		})
		return
	}

	body, err := s.renderString("expense-result", e)
	if err != nil {
		logger.ErrorContext(r.Context(), "Expense result render failed", log.FieldError, err)
		body = `<div class="success">Expense saved.</div>`
	}
	NewHTMXResponse().
		TriggerExpenseCreated(e.ID.String(), e.ExpenseDate.Year(), int(e.ExpenseDate.Month())).
		TriggerDashboardRefresh().
		TriggerFormReset().
		TriggerSuccessNotification("Expense saved").
		BodyHTML(body).
		Write(w)
}
