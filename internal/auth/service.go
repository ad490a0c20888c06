package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"travelx/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound is returned by a UserStore when no active user matches.
	ErrUserNotFound = errors.New("user not found")
)

// UserStore finds login candidates.
type UserStore interface {
	FindActiveUser(ctx context.Context, username string) (core.AppUser, error)
}

type Service struct {
	users UserStore
	now   func() time.Time
}

func NewService(users UserStore) *Service {
	return &Service{users: users, now: time.Now}
}

// Login checks the credentials of an active user and opens a session.
func (s *Service) Login(ctx context.Context, username, password string, rememberMe bool) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindActiveUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return NewSession(User{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}, s.now(), rememberMe), nil
}

// HashPassword returns a bcrypt hash suitable for AppUser.PasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
