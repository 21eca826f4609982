package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the ISO-8601 form used for createdAt/updatedAt. It sorts
// lexically in chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Keys managed by the store. Callers may send them but they are never written.
const (
	KeyID        = "id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// Timestamp formats t in TimeLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Fields are the caller-owned domain fields of a pin (position, title, image
// URLs, ...). The store does not interpret them.
type Fields map[string]any

// Clean returns a JSON-normalized copy of f with the store-managed keys
// removed. Values that cannot be encoded as JSON are rejected.
func (f Fields) Clean() (Fields, error) {
	out := Fields{}
	if len(f) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("pin fields are not JSON-serializable: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	delete(out, KeyID)
	delete(out, KeyCreatedAt)
	delete(out, KeyUpdatedAt)
	return out, nil
}

// Pin is a map marker record. ID is always the store-derived key.
type Pin struct {
	ID        string
	Fields    Fields
	CreatedAt string
	UpdatedAt string
}

// MarshalJSON flattens the pin into a single object. The store-managed keys
// are written last so they win over same-named payload fields.
func (p Pin) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+3)
	for k, v := range p.Fields {
		out[k] = v
	}
	out[KeyCreatedAt] = p.CreatedAt
	if p.UpdatedAt != "" {
		out[KeyUpdatedAt] = p.UpdatedAt
	} else {
		delete(out, KeyUpdatedAt)
	}
	out[KeyID] = p.ID
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object back into managed keys and fields.
func (p *Pin) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _ := raw[KeyID].(string)
	createdAt, _ := raw[KeyCreatedAt].(string)
	updatedAt, _ := raw[KeyUpdatedAt].(string)
	delete(raw, KeyID)
	delete(raw, KeyCreatedAt)
	delete(raw, KeyUpdatedAt)

	*p = Pin{ID: id, Fields: raw, CreatedAt: createdAt, UpdatedAt: updatedAt}
	return nil
}
