package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/garnizeh/jobmarket/internal/models"
	"github.com/garnizeh/jobmarket/pkg/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when an account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidAccount is returned for missing or malformed account fields.
	ErrInvalidAccount = errors.New("invalid account data")
)

// Accounts registers users and exchanges credentials for tokens.
type Accounts struct {
	users  repository.UserRepo
	tokens *Tokens
	cost   int
}

func NewAccounts(users repository.UserRepo, tokens *Tokens) *Accounts {
	return &Accounts{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Tokens exposes the resolver used by the transport layer.
func (a *Accounts) Tokens() *Tokens { return a.tokens }

// SignUp registers a self-service account. Only jobseeker and employer
// accounts can be created this way.
func (a *Accounts) SignUp(ctx context.Context, name, email, password string, role models.Role) (*models.User, string, error) {
	if role != models.RoleJobseeker && role != models.RoleEmployer {
		return nil, "", fmt.Errorf("%w: role must be jobseeker or employer", ErrInvalidAccount)
	}
	u, err := a.create(ctx, name, email, password, role)
	if err != nil {
		return nil, "", err
	}
	token, err := a.tokens.Issue(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}
	return u, token, nil
}

// SignIn checks the password and issues a token.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	u, err := a.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := a.tokens.Issue(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}
	return u, token, nil
}

// CreateAdmin lets a superadmin add an admin account.
func (a *Accounts) CreateAdmin(ctx context.Context, p Principal, name, email, password string) (*models.User, error) {
	if err := RequireRole(p, models.RoleSuperadmin); err != nil {
		return nil, err
	}
	return a.create(ctx, name, email, password, models.RoleAdmin)
}

// EnsureSuperadmin creates the bootstrap superadmin unless the email is
// already registered. It reports whether an account was created.
func (a *Accounts) EnsureSuperadmin(ctx context.Context, name, email, password string) (bool, error) {
	existing, err := a.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if strings.TrimSpace(name) == "" {
		name = "Superadmin"
	}
	if _, err := a.create(ctx, name, email, password, models.RoleSuperadmin); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Accounts) create(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidAccount)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidAccount)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidAccount)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := a.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
