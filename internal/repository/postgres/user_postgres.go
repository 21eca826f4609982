package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"pinworld/internal/apperror"
	"pinworld/internal/model"
	"pinworld/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

// Create inserts a user, assigning an ID when the caller left it empty.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, created_at
	`
	var out model.User
	if err := r.db.QueryRowContext(ctx, q, u.ID, strings.ToLower(u.Email), u.PasswordHash).
		Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByEmail looks a user up case-insensitively.
func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`
	var u model.User
	err := r.db.QueryRowContext(ctx, q, strings.ToLower(email)).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, err
	}
	return &u, nil
}
