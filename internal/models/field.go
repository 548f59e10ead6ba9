package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldType is the value type of a structured listing attribute.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
)

// Valid returns true for the three supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeBoolean:
		return true
	}
	return false
}

// Field is a global attribute definition such as "Mileage" or "Color".
type Field struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      FieldType `json:"field_type"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryField attaches a Field to a Category. Each (category, field) pair
// exists at most once.
type CategoryField struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
	FieldID    uuid.UUID `json:"field_id"`
	IsRequired bool      `json:"is_required"`
	CreatedAt  time.Time `json:"created_at"`

	// Field is populated by joined lookups.
	Field *Field `json:"field,omitempty"`
}
