package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travelx/internal/auth"
	"travelx/internal/core"
	"travelx/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers; used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertClient implements store.ClientWriter
func (r *SQLiteRepository) InsertClient(ctx context.Context, c core.Client) (core.Client, error) {
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, client_name, father_name, mobile_number, id_proof_type, id_proof_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, c.FatherName, c.MobileNumber, string(c.IDProofType), c.IDProofNumber, c.CreatedAt)
	if err != nil {
		return core.Client{}, fmt.Errorf("insert client: %w", err)
	}

	slog.InfoContext(ctx, "Client saved to SQLite", "id", c.ID, "name", c.Name)
	return c, nil
}

// InsertPayment implements store.PaymentWriter
func (r *SQLiteRepository) InsertPayment(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, client_id, service_type, payment_mode, received_bank_name, transaction_id,
			amount, payment_status, booking_date, gst_rate, gst_amount, total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.ClientID.String(), string(p.ServiceType), string(p.PaymentMode),
		nullString(p.BankName), nullString(p.TransactionID),
		p.Amount.String(), string(p.Status), p.BookingDate.String(),
		p.GSTRate.String(), p.GSTAmount.String(), p.TotalAmount.String(), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		"id", p.ID,
		"client_id", p.ClientID,
		"service_type", p.ServiceType,
		"amount", p.Amount.String(),
		"gst_amount", p.GSTAmount.String())
	return nil
}

// InsertExpense implements store.ExpenseWriter
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, description, amount, payment_method, expense_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Category, e.Description, e.Amount.String(), string(e.PaymentMethod),
		e.ExpenseDate.String(), nullString(e.Notes), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"category", e.Category,
		"amount", e.Amount.String(),
		"expense_date", e.ExpenseDate.String())
	return nil
}

// CountClients implements store.DashboardReader
func (r *SQLiteRepository) CountClients(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

// ListPayments implements store.DashboardReader. Unparseable amounts and
// dates come back as missing so the aggregator's coercion policy applies.
func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, service_type, payment_status, amount, gst_amount, booking_date
		FROM payments
		ORDER BY booking_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentRecord
	for rows.Next() {
		var (
			rec                     core.PaymentRecord
			amount, gst, bookedDate sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ServiceType, &rec.Status, &amount, &gst, &bookedDate); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		rec.Amount = parseNullDecimal(amount)
		rec.GSTAmount = parseNullDecimal(gst)
		rec.BookingDate = parseNullDate(bookedDate)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

// ListExpenses implements store.DashboardReader
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, amount, expense_date FROM expenses ORDER BY expense_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		var (
			rec          core.ExpenseRecord
			amount, date sql.NullString
		)
		if err := rows.Scan(&rec.ID, &amount, &date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		rec.Amount = parseNullDecimal(amount)
		rec.ExpenseDate = parseNullDate(date)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// GetClient implements store.RecordReader
func (r *SQLiteRepository) GetClient(ctx context.Context, id uuid.UUID) (core.Client, error) {
	var (
		c              core.Client
		rawID, idProof string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_name, father_name, mobile_number, id_proof_type, id_proof_number, created_at
		FROM clients WHERE id = ?`, id.String()).
		Scan(&rawID, &c.Name, &c.FatherName, &c.MobileNumber, &idProof, &c.IDProofNumber, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, store.ErrNotFound
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("get client by id: %w", err)
	}
	c.ID = id
	c.IDProofType = core.IDProofType(idProof)
	return c, nil
}

// GetPayment implements store.RecordReader
func (r *SQLiteRepository) GetPayment(ctx context.Context, id uuid.UUID) (core.Payment, error) {
	var (
		p                               core.Payment
		clientID, service, mode, status string
		bank, txn, date                 sql.NullString
		amount, rate, gst, total        sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT client_id, service_type, payment_mode, received_bank_name, transaction_id,
			amount, payment_status, booking_date, gst_rate, gst_amount, total_amount, created_at
		FROM payments WHERE id = ?`, id.String()).
		Scan(&clientID, &service, &mode, &bank, &txn, &amount, &status, &date, &rate, &gst, &total, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, store.ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment by id: %w", err)
	}

	p.ID = id
	p.ClientID, err = uuid.Parse(clientID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment %s: bad client id: %w", id, err)
	}
	p.ServiceType = core.ServiceCategory(service)
	p.PaymentMode = core.PaymentMode(mode)
	p.Status = core.PaymentStatus(status)
	p.BankName = bank.String
	p.TransactionID = txn.String
	p.Amount = parseNullDecimal(amount).Decimal
	p.GSTRate = parseNullDecimal(rate).Decimal
	p.GSTAmount = parseNullDecimal(gst).Decimal
	p.TotalAmount = parseNullDecimal(total).Decimal
	p.BookingDate = parseNullDate(date)
	return p, nil
}

// GetExpense implements store.RecordReader
func (r *SQLiteRepository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	var (
		e            core.Expense
		method       string
		amount, date sql.NullString
		notes        sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT category, description, amount, payment_method, expense_date, notes, created_at
		FROM expenses WHERE id = ?`, id.String()).
		Scan(&e.Category, &e.Description, &amount, &method, &date, &notes, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	e.ID = id
	e.Amount = parseNullDecimal(amount).Decimal
	e.PaymentMethod = core.PaymentMethod(method)
	e.ExpenseDate = parseNullDate(date)
	e.Notes = notes.String
	return e, nil
}

// FindActiveUser implements auth.UserStore
func (r *SQLiteRepository) FindActiveUser(ctx context.Context, username string) (core.AppUser, error) {
	var u core.AppUser
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, role, password_hash, is_active
		FROM app_users WHERE username = ? AND is_active = 1`, username).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.PasswordHash, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AppUser{}, auth.ErrUserNotFound
	}
	if err != nil {
		return core.AppUser{}, fmt.Errorf("find active user: %w", err)
	}
	return u, nil
}

// UpsertUser creates or replaces an operator account by username.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, u core.AppUser) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, full_name, role, password_hash, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			full_name = excluded.full_name,
			role = excluded.role,
			password_hash = excluded.password_hash,
			is_active = excluded.is_active`,
		u.ID, u.Username, u.FullName, u.Role, u.PasswordHash, u.IsActive)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Username, err)
	}

	slog.InfoContext(ctx, "Operator account stored", "username", u.Username, "role", u.Role)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseNullDecimal(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func parseNullDate(s sql.NullString) core.Date {
	if !s.Valid || s.String == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return core.Date{}
	}
	return d
}
