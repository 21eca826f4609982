package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pinworld/internal/apperror"
	"pinworld/internal/model"
	"pinworld/internal/repository"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator verifies a credential pair.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.Identity, error)
}

// PasswordAuthenticator checks bcrypt hashes stored in the users table.
type PasswordAuthenticator struct {
	users repository.UserRepository
	cost  int
}

func NewPasswordAuthenticator(users repository.UserRepository) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, cost: bcrypt.DefaultCost}
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.Validation("email", "email and password are required")
	}

	u, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &model.Identity{UserID: u.ID, Email: u.Email}, nil
}

// Register creates an account with a bcrypt hash of password.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.Validation("email", "email is required")
	}
	if len(password) < 8 {
		return nil, apperror.Validation("password", "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return a.users.Create(ctx, &model.User{Email: email, PasswordHash: string(hash)})
}
