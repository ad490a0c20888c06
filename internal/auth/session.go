// Package auth holds the operator session and login flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CookieName is the cookie carrying the signed session.
const CookieName = "travel_auth_session"

const (
	DefaultMaxAge  = 24 * time.Hour
	RememberMaxAge = 30 * 24 * time.Hour
)

var ErrInvalidSession = errors.New("invalid session")

// User is the subset of an app user kept in the session.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Session is an authenticated operator. It is passed explicitly through the
// request context; there is no process-wide current user.
type Session struct {
	User       User
	IssuedAt   time.Time
	RememberMe bool
}

func NewSession(u User, now time.Time, rememberMe bool) *Session {
	return &Session{User: u, IssuedAt: now.Truncate(time.Second), RememberMe: rememberMe}
}

// MaxAge is 24h, or 30 days when the operator asked to be remembered.
func (s *Session) MaxAge() time.Duration {
	if s.RememberMe {
		return RememberMaxAge
	}
	return DefaultMaxAge
}

func (s *Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(s.MaxAge())
}

// Valid reports whether the session is still usable at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.User.ID != "" && !now.After(s.ExpiresAt())
}

type sessionClaims struct {
	User       User `json:"user"`
	RememberMe bool `json:"remember_me,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

func (c *Codec) Encode(s *Session) (string, error) {
	claims := sessionClaims{
		User:       s.User,
		RememberMe: s.RememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

func (c *Codec) Decode(token string) (*Session, error) {
	var claims sessionClaims
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	tok, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !tok.Valid || claims.IssuedAt == nil {
		return nil, ErrInvalidSession
	}
	s := &Session{User: claims.User, IssuedAt: claims.IssuedAt.Time, RememberMe: claims.RememberMe}
	if !s.Valid(c.now()) {
		return nil, ErrInvalidSession
	}
	return s, nil
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by the HTTP middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
