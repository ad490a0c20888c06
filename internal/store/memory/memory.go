package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"travelx/internal/auth"
	"travelx/internal/core"
	"travelx/internal/store"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]core.AppUser
	clients  []core.Client
	payments []core.Payment
	expenses []core.Expense
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(users ...core.AppUser) *Store {
	s := &Store{users: make(map[string]core.AppUser, len(users)), now: time.Now}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

// NewFromFiles seeds operators from base/seed_users.txt. Each line is
// "username:password[:full name[:role]]"; passwords are hashed on load.
func NewFromFiles(base string) (*Store, error) {
	var users []core.AppUser
	for i, line := range readLines(filepath.Join(base, "seed_users.txt")) {
		parts := strings.SplitN(line, ":", 4)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("seed_users.txt line %d: want username:password", i+1)
		}
		hash, err := auth.HashPassword(parts[1])
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", parts[0], err)
		}
		u := core.AppUser{
			ID:           uuid.NewString(),
			Username:     parts[0],
			FullName:     parts[0],
			Role:         "staff",
			PasswordHash: hash,
			IsActive:     true,
		}
		if len(parts) > 2 && parts[2] != "" {
			u.FullName = parts[2]
		}
		if len(parts) > 3 && parts[3] != "" {
			u.Role = parts[3]
		}
		users = append(users, u)
	}
	return New(users...), nil
}

func (s *Store) InsertClient(_ context.Context, c core.Client) (core.Client, error) {
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = append(s.clients, c)
	return c, nil
}

func (s *Store) InsertPayment(_ context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findClient(p.ClientID); !ok {
		return fmt.Errorf("insert payment: client %s: %w", p.ClientID, store.ErrNotFound)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.payments = append(s.payments, p)
	return nil
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return nil
}

func (s *Store) CountClients(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients), nil
}

func (s *Store) ListPayments(_ context.Context) ([]core.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PaymentRecord, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p.Record())
	}
	return out, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExpenseRecord, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e.Record())
	}
	return out, nil
}

func (s *Store) GetClient(_ context.Context, id uuid.UUID) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findClient(id)
	if !ok {
		return core.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetPayment(_ context.Context, id uuid.UUID) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Payment{}, store.ErrNotFound
}

func (s *Store) GetExpense(_ context.Context, id uuid.UUID) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, store.ErrNotFound
}

func (s *Store) FindActiveUser(_ context.Context, username string) (core.AppUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok || !u.IsActive {
		return core.AppUser{}, auth.ErrUserNotFound
	}
	return u, nil
}

// UpsertUser creates or replaces an operator account by username.
func (s *Store) UpsertUser(_ context.Context, u core.AppUser) error {
	if u.Username == "" {
		return fmt.Errorf("upsert user: empty username")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
	return nil
}

func (s *Store) findClient(id uuid.UUID) (core.Client, bool) {
	for _, c := range s.clients {
		if c.ID == id {
			return c, true
		}
	}
	return core.Client{}, false
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
