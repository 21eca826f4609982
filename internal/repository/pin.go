package repository

import (
	"context"

	"pinworld/internal/model"
)

// PinRepository is the remote document collection behind the pin store.
// Implementations only persist; timestamps and id stripping are decided by the caller.
type PinRepository interface {
	// Insert writes a new record with an auto-assigned id and returns that id.
	Insert(ctx context.Context, fields model.Fields, createdAt string) (string, error)

	// Merge shallow-merges fields into the stored payload and sets updatedAt.
	// It returns an error wrapping apperror.ErrNotFound when id does not exist.
	Merge(ctx context.Context, id string, fields model.Fields, updatedAt string) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every record ordered by createdAt descending. Records with
	// equal createdAt keep the backend's native order.
	List(ctx context.Context) ([]model.Pin, error)
}

// UserRepository stores accounts allowed to edit pins.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByEmail returns an error wrapping apperror.ErrNotFound when no user matches.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}
