// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/models"
)

// forestLockKey identifies the transaction-scoped advisory lock taken by
// every structural category mutation.
const forestLockKey int64 = 0x63617467 // "catg"

const categoryColumns = `id, name, slug, is_active, parent_id, sort_order, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Slug, &c.IsActive,
		&c.ParentID, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// queryCategories runs a query that selects categoryColumns.
func (q *queries) queryCategories(ctx context.Context, op, query string, args ...any) ([]models.Category, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// findCategory runs a single-row query. Returns nil if not found.
func (q *queries) findCategory(ctx context.Context, op, query string, arg any) (*models.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ListCategories returns every category in a single query.
func (q *queries) ListCategories(ctx context.Context) ([]models.Category, error) {
	return q.queryCategories(ctx, "list categories",
		`SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, name`)
}

// ListRoots returns the categories without a parent.
func (q *queries) ListRoots(ctx context.Context) ([]models.Category, error) {
	return q.queryCategories(ctx, "list root categories",
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id IS NULL ORDER BY sort_order, name`)
}

// Subtree returns the category with the given ID and all of its descendants
// in one recursive query. The result is empty if the category does not exist.
func (q *queries) Subtree(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	return q.queryCategories(ctx, "list category subtree", `
		WITH RECURSIVE subtree AS (
			SELECT `+categoryColumns+` FROM categories WHERE id = $1
			UNION
			SELECT c.id, c.name, c.slug, c.is_active, c.parent_id, c.sort_order,
			       c.created_at, c.updated_at
			FROM categories c
			JOIN subtree s ON c.parent_id = s.id
		)
		SELECT `+categoryColumns+` FROM subtree`, id)
}

// Siblings returns the direct children of parentID, or the roots when
// parentID is nil.
func (q *queries) Siblings(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	if parentID == nil {
		return q.ListRoots(ctx)
	}
	return q.queryCategories(ctx, "list child categories",
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id = $1 ORDER BY sort_order, name`, *parentID)
}

// Ancestors returns id followed by every ancestor up to its root.
func (q *queries) Ancestors(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, `
		WITH RECURSIVE path AS (
			SELECT id, parent_id, 0 AS depth FROM categories WHERE id = $1
			UNION
			SELECT c.id, c.parent_id, p.depth + 1
			FROM categories c
			JOIN path p ON c.id = p.parent_id
		)
		SELECT id FROM path ORDER BY depth`, id)
	if err != nil {
		return nil, fmt.Errorf("list category ancestors: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var ancestor uuid.UUID
		if err := rows.Scan(&ancestor); err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}
		ids = append(ids, ancestor)
	}
	return ids, rows.Err()
}

// FindCategory retrieves a category by ID. Returns nil if not found.
func (q *queries) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return q.findCategory(ctx, "find category by id",
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
}

// FindCategoryByName retrieves a category by exact name. Returns nil if not found.
func (q *queries) FindCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	return q.findCategory(ctx, "find category by name",
		`SELECT `+categoryColumns+` FROM categories WHERE name = $1`, name)
}

// FindCategoryBySlug retrieves a category by slug. Returns nil if not found.
func (q *queries) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return q.findCategory(ctx, "find category by slug",
		`SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug)
}

// CountCategories returns the total number of categories.
func (q *queries) CountCategories(ctx context.Context) (int, error) {
	var count int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return count, nil
}

// LockForest takes the transaction-scoped advisory lock that serializes
// structural mutations. It is released when the transaction ends.
func (q *queries) LockForest(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, forestLockKey); err != nil {
		return fmt.Errorf("lock category forest: %w", err)
	}
	return nil
}

// InsertCategory inserts c and fills in its generated ID and timestamps.
func (q *queries) InsertCategory(ctx context.Context, c *models.Category) error {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, is_active, parent_id, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+categoryColumns,
		c.Name, c.Slug, c.IsActive, c.ParentID, c.SortOrder,
	)
	created, err := scanCategory(row)
	if err != nil {
		return fmt.Errorf("create category: %w", asDuplicate(err))
	}
	*c = *created
	return nil
}

// UpdateCategory writes name, slug, active flag and parent of c.
func (q *queries) UpdateCategory(ctx context.Context, c *models.Category) error {
	err := q.db.QueryRowContext(ctx, `
		UPDATE categories SET
			name = $1, slug = $2, is_active = $3, parent_id = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`, c.Name, c.Slug, c.IsActive, c.ParentID, c.ID).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update category: %w", asDuplicate(err))
	}
	return nil
}

// SetSortOrders updates sort_order for multiple categories with one
// prepared statement.
func (q *queries) SetSortOrders(ctx context.Context, items []SortItem) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := q.db.PrepareContext(ctx, `
		UPDATE categories SET sort_order = $1, updated_at = $2
		WHERE id = $3 AND sort_order <> $1`)
	if err != nil {
		return fmt.Errorf("prepare sort orders: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.Order, now, item.ID); err != nil {
			return fmt.Errorf("sort category %s: %w", item.ID, err)
		}
	}
	return nil
}

// DeleteSubtree removes a category and all of its descendants and returns
// how many rows were deleted.
func (q *queries) DeleteSubtree(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM categories WHERE id = $1
			UNION
			SELECT c.id FROM categories c JOIN subtree s ON c.parent_id = s.id
		)
		DELETE FROM categories WHERE id IN (SELECT id FROM subtree)`, id)
	if err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete category rows affected: %w", err)
	}
	return n, nil
}
