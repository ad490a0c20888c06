package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"travelx/internal/core"
	ports "travelx/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	paymentsIDColumn = "M"
	expensesIDColumn = "G"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base names without year; the record's year is prefixed on append.
	paymentsBase string
	expensesBase string
}

var _ ports.LedgerExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_PAYMENTS_SHEET_NAME (default "Payments"),
// GOOGLE_EXPENSES_SHEET_NAME (default "Expenses").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		paymentsBase:  envOr("GOOGLE_PAYMENTS_SHEET_NAME", "Payments"),
		expensesBase:  envOr("GOOGLE_EXPENSES_SHEET_NAME", "Expenses"),
	}, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling is the transport used for the unauthenticated
// metadata probe; the Sheets service itself uses the oauth2 transport built
// from the credentials.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Reachable reports whether the Sheets API endpoint answers at all. It is
// used by the worker's readiness probe and does not authenticate.
func Reachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://sheets.googleapis.com/", nil)
	if err != nil {
		return err
	}
	resp, err := newHTTPClientWithPooling().Do(req)
	if err != nil {
		return fmt.Errorf("sheets endpoint: %w", err)
	}
	resp.Body.Close()
	return nil
}

// AppendPayment writes one row to "<year> Payments" unless a row with the
// same payment ID already exists.
func (c *Client) AppendPayment(ctx context.Context, p core.Payment, cl core.Client) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	sheet := yearPrefixedName(c.paymentsBase, p.BookingDate.Year())
	return c.appendOnce(ctx, sheet, paymentsIDColumn, p.ID.String(), paymentRow(p, cl))
}

// AppendExpense writes one row to "<year> Expenses" unless a row with the
// same expense ID already exists.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	sheet := yearPrefixedName(c.expensesBase, e.ExpenseDate.Year())
	return c.appendOnce(ctx, sheet, expensesIDColumn, e.ID.String(), expenseRow(e))
}

func (c *Client) appendOnce(ctx context.Context, sheet, idCol, id string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	ids, err := c.readCol(ctx, sheet, idCol+":"+idCol)
	if err != nil {
		return "", err
	}
	if n := indexOf(ids, id); n >= 0 {
		slog.InfoContext(ctx, "Row already exported", "sheet", sheet, "id", id)
		return fmt.Sprintf("%s!A%d", sheet, n+1), nil
	}

	rng := fmt.Sprintf("%s!A:%s", sheet, idCol)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// readCol returns the trimmed cell values of a single column, keeping blank
// cells so indexes line up with row numbers.
func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		out[i] = toStrings(row)[0]
	}
	return out, nil
}

// paymentRow lays out columns A..M:
// date, client, mobile, service, mode, bank, txn, amount, gst%, gst, total, status, id.
func paymentRow(p core.Payment, cl core.Client) []any {
	return []any{
		p.BookingDate.String(),
		cl.Name,
		cl.MobileNumber,
		p.ServiceType.Label(),
		string(p.PaymentMode),
		p.BankName,
		p.TransactionID,
		p.Amount.StringFixed(2),
		p.GSTRate.String(),
		p.GSTAmount.StringFixed(2),
		p.TotalAmount.StringFixed(2),
		string(p.Status),
		p.ID.String(),
	}
}

// expenseRow lays out columns A..G: date, category, description, method,
// amount, notes, id.
func expenseRow(e core.Expense) []any {
	return []any{
		e.ExpenseDate.String(),
		e.Category,
		e.Description,
		string(e.PaymentMethod),
		e.Amount.StringFixed(2),
		e.Notes,
		e.ID.String(),
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}
