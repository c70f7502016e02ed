// Package auth resolves bearer tokens into a Principal and holds the
// authorization rules shared by the marketplace services.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrUnauthorized means the caller has no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is known but may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// Principal is the resolved identity of a caller. The zero value is the
// anonymous caller.
type Principal struct {
	SubjectID string      `json:"subjectId"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
}

// Anonymous is the principal of a request without credentials.
var Anonymous = Principal{}

func (p Principal) Authenticated() bool { return p.SubjectID != "" }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.Role.IsAdmin() }

func (p Principal) Is(role models.Role) bool { return p.Authenticated() && p.Role == role }

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and resolves HS256 identity tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the user.
func (t *Tokens) Issue(u *models.User) (string, error) {
	if u == nil {
		return "", fmt.Errorf("user is nil")
	}

	issued := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(t.ttl)),
		},
	})

	return token.SignedString(t.secret)
}

// Resolve validates the token and returns its principal. Any defect in the
// token yields ErrUnauthorized.
func (t *Tokens) Resolve(tokenString string) (Principal, error) {
	if tokenString == "" {
		return Anonymous, ErrUnauthorized
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Anonymous, ErrUnauthorized
	}

	if _, err := uuid.Parse(c.Subject); err != nil {
		return Anonymous, ErrUnauthorized
	}
	role, err := models.ParseRole(c.Role)
	if err != nil {
		return Anonymous, ErrUnauthorized
	}

	return Principal{SubjectID: c.Subject, Email: c.Email, Role: role}, nil
}

type ctxKey struct{}

// WithPrincipal stores the resolved principal on a request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
