package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

// CreateField defines a new global attribute.
func (s *Service) CreateField(ctx context.Context, name string, typ models.FieldType) (*models.Field, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, invalid("field_type", "must be one of text, number, boolean")
	}

	f := &models.Field{Name: name, Type: typ}
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.FindFieldByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{Field: "field", Value: name}
		}
		if err := tx.InsertField(ctx, f); err != nil {
			return conflictFromStore(err, name, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpFieldCreate)
	return f, nil
}

// ListFields returns every field definition ordered by name.
func (s *Service) ListFields(ctx context.Context) ([]models.Field, error) {
	fields, err := s.repo.ListFields(ctx)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []models.Field{}
	}
	return fields, nil
}

// DeleteField removes a field definition and detaches it from every category.
func (s *Service) DeleteField(ctx context.Context, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.DeleteField(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("field %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.changed(ctx, OpFieldDelete)
	return nil
}

// AttachField adds a field to a category's schema. Each field can be
// attached to a category once.
func (s *Service) AttachField(ctx context.Context, categoryID, fieldID uuid.UUID, required bool) (*models.CategoryField, error) {
	var cf *models.CategoryField
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.FindCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
		}
		f, err := tx.FindField(ctx, fieldID)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("field %s: %w", fieldID, ErrNotFound)
		}

		existing, err := tx.FindCategoryField(ctx, categoryID, fieldID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{Field: "category_field", Value: f.Name}
		}

		cf = &models.CategoryField{CategoryID: categoryID, FieldID: fieldID, IsRequired: required}
		if err := tx.InsertCategoryField(ctx, cf); err != nil {
			return conflictFromStore(err, f.Name, "")
		}
		cf.Field = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpFieldAttach)
	return cf, nil
}

// DetachField removes a field from a category's schema.
func (s *Service) DetachField(ctx context.Context, categoryID, fieldID uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.DeleteCategoryField(ctx, categoryID, fieldID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("field %s on category %s: %w", fieldID, categoryID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.changed(ctx, OpFieldDetach)
	return nil
}

// CategoryFields returns the fields attached to a category.
func (s *Service) CategoryFields(ctx context.Context, categoryID uuid.UUID) ([]models.CategoryField, error) {
	if _, err := s.Get(ctx, categoryID); err != nil {
		return nil, err
	}
	fields, err := s.repo.CategoryFields(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []models.CategoryField{}
	}
	return fields, nil
}
