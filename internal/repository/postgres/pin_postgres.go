package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"pinworld/internal/apperror"
	"pinworld/internal/model"
	"pinworld/internal/repository"
)

// PinPostgres is a PostgreSQL implementation of repository.PinRepository.
// The caller-owned fields live in a JSONB column; id and timestamps are columns.
type PinPostgres struct {
	db *sql.DB
}

// NewPinPostgres creates a new PinPostgres repository.
func NewPinPostgres(db *sql.DB) *PinPostgres {
	return &PinPostgres{db: db}
}

var _ repository.PinRepository = (*PinPostgres)(nil)

// Insert stores a new pin under a fresh UUID.
func (r *PinPostgres) Insert(ctx context.Context, fields model.Fields, createdAt string) (string, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	const q = `INSERT INTO pins (id, data, created_at) VALUES ($1, $2::jsonb, $3)`
	if _, err := r.db.ExecContext(ctx, q, id, data, createdAt); err != nil {
		return "", err
	}
	return id, nil
}

// Merge applies a JSONB shallow merge to an existing pin.
func (r *PinPostgres) Merge(ctx context.Context, id string, fields model.Fields, updatedAt string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.NotFound("pin", id)
	}
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	const q = `UPDATE pins SET data = data || $2::jsonb, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, data, updatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("pin", id)
	}
	return nil
}

// Delete removes a pin by ID. It does not return an error if the row does not exist.
func (r *PinPostgres) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	const q = `DELETE FROM pins WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// List returns the whole collection, newest first.
func (r *PinPostgres) List(ctx context.Context) ([]model.Pin, error) {
	const q = `
		SELECT id, data, created_at, updated_at
		FROM pins
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pins := make([]model.Pin, 0)
	for rows.Next() {
		var (
			p         model.Pin
			data      []byte
			updatedAt sql.NullString
		)
		if err := rows.Scan(&p.ID, &data, &p.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &p.Fields); err != nil {
			return nil, fmt.Errorf("decode pin %s: %w", p.ID, err)
		}
		p.UpdatedAt = updatedAt.String
		pins = append(pins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pins, nil
}

func encodeFields(fields model.Fields) (string, error) {
	if fields == nil {
		fields = model.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode pin fields: %w", err)
	}
	return string(raw), nil
}
