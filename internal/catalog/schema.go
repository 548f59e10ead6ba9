package catalog

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"marketplace/internal/models"
)

// Schema is what a listing in a category may declare.
type Schema struct {
	Category *models.Category `json:"category"`
	Fields   []SchemaField    `json:"fields"`
}

// SchemaField is one attribute of a Schema.
type SchemaField struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Type     models.FieldType `json:"field_type"`
	Required bool             `json:"is_required"`
}

// Schema returns the category and its attached fields. It fails with
// ErrNotFound when the category does not exist, which is how listings
// validate their declared category.
func (s *Service) Schema(ctx context.Context, categoryID uuid.UUID) (*Schema, error) {
	c, err := s.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	attached, err := s.repo.CategoryFields(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	schema := &Schema{Category: c, Fields: make([]SchemaField, 0, len(attached))}
	for _, cf := range attached {
		sf := SchemaField{ID: cf.FieldID, Required: cf.IsRequired}
		if cf.Field != nil {
			sf.Name = cf.Field.Name
			sf.Type = cf.Field.Type
		}
		schema.Fields = append(schema.Fields, sf)
	}
	return schema, nil
}

// ValidateAttributes checks listing attribute values against the schema.
// Required fields must be present and non-empty, numbers and booleans must
// parse, and unknown attributes are rejected.
func (sc *Schema) ValidateAttributes(attrs map[string]string) error {
	problems := make(map[string]string)
	known := make(map[string]bool, len(sc.Fields))

	for _, f := range sc.Fields {
		known[f.Name] = true
		v, ok := attrs[f.Name]
		if !ok || v == "" {
			if f.Required {
				problems[f.Name] = "is required"
			}
			continue
		}
		switch f.Type {
		case models.FieldTypeNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				problems[f.Name] = "must be a number"
			}
		case models.FieldTypeBoolean:
			if _, err := strconv.ParseBool(v); err != nil {
				problems[f.Name] = "must be true or false"
			}
		}
	}
	for name := range attrs {
		if !known[name] {
			problems[name] = "is not defined for this category"
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Message: "invalid attributes", Fields: problems}
	}
	return nil
}
