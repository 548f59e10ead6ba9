package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"marketplace/internal/models"
)

const fieldColumns = `id, name, field_type, created_at`

func scanField(scanner interface{ Scan(...any) error }) (*models.Field, error) {
	var f models.Field
	if err := scanner.Scan(&f.ID, &f.Name, &f.Type, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFields returns all field definitions ordered by name.
func (q *queries) ListFields(ctx context.Context) ([]models.Field, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+fieldColumns+` FROM fields ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	var items []models.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		items = append(items, *f)
	}
	return items, rows.Err()
}

// FindField retrieves a field definition by ID. Returns nil if not found.
func (q *queries) FindField(ctx context.Context, id uuid.UUID) (*models.Field, error) {
	f, err := scanField(q.db.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find field by id: %w", err)
	}
	return f, nil
}

// FindFieldByName retrieves a field definition by name. Returns nil if not found.
func (q *queries) FindFieldByName(ctx context.Context, name string) (*models.Field, error) {
	f, err := scanField(q.db.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE name = $1`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find field by name: %w", err)
	}
	return f, nil
}

// InsertField inserts f and fills in its generated ID and timestamp.
func (q *queries) InsertField(ctx context.Context, f *models.Field) error {
	created, err := scanField(q.db.QueryRowContext(ctx, `
		INSERT INTO fields (name, field_type) VALUES ($1, $2)
		RETURNING `+fieldColumns, f.Name, f.Type))
	if err != nil {
		return fmt.Errorf("create field: %w", asDuplicate(err))
	}
	*f = *created
	return nil
}

// DeleteField removes a field definition; its category attachments cascade.
func (q *queries) DeleteField(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM fields WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete field: %w", err)
	}
	return res.RowsAffected()
}

const categoryFieldSelect = `
	SELECT cf.id, cf.category_id, cf.field_id, cf.is_required, cf.created_at,
	       f.id, f.name, f.field_type, f.created_at
	FROM category_fields cf
	JOIN fields f ON f.id = cf.field_id`

func scanCategoryField(scanner interface{ Scan(...any) error }) (*models.CategoryField, error) {
	var cf models.CategoryField
	var f models.Field
	err := scanner.Scan(
		&cf.ID, &cf.CategoryID, &cf.FieldID, &cf.IsRequired, &cf.CreatedAt,
		&f.ID, &f.Name, &f.Type, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	cf.Field = &f
	return &cf, nil
}

// CategoryFields returns the fields attached to a category, ordered by
// field name, with Field populated.
func (q *queries) CategoryFields(ctx context.Context, categoryID uuid.UUID) ([]models.CategoryField, error) {
	rows, err := q.db.QueryContext(ctx, categoryFieldSelect+`
		WHERE cf.category_id = $1
		ORDER BY f.name`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list category fields: %w", err)
	}
	defer rows.Close()

	var items []models.CategoryField
	for rows.Next() {
		cf, err := scanCategoryField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category field: %w", err)
		}
		items = append(items, *cf)
	}
	return items, rows.Err()
}

// FindCategoryField retrieves one attachment. Returns nil if not found.
func (q *queries) FindCategoryField(ctx context.Context, categoryID, fieldID uuid.UUID) (*models.CategoryField, error) {
	cf, err := scanCategoryField(q.db.QueryRowContext(ctx, categoryFieldSelect+`
		WHERE cf.category_id = $1 AND cf.field_id = $2`, categoryID, fieldID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category field: %w", err)
	}
	return cf, nil
}

// InsertCategoryField attaches a field to a category.
func (q *queries) InsertCategoryField(ctx context.Context, cf *models.CategoryField) error {
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO category_fields (category_id, field_id, is_required)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		cf.CategoryID, cf.FieldID, cf.IsRequired,
	).Scan(&cf.ID, &cf.CreatedAt)
	if err != nil {
		return fmt.Errorf("attach field: %w", asDuplicate(err))
	}
	return nil
}

// DeleteCategoryField detaches a field from a category.
func (q *queries) DeleteCategoryField(ctx context.Context, categoryID, fieldID uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM category_fields WHERE category_id = $1 AND field_id = $2`, categoryID, fieldID)
	if err != nil {
		return 0, fmt.Errorf("detach field: %w", err)
	}
	return res.RowsAffected()
}
