// Package store provides database access methods for the marketplace
// catalog. Each store wraps a *sql.DB and exposes typed query methods;
// the category store additionally runs callers' work inside a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"marketplace/internal/models"
)

// Constraint names declared by the migrations. DuplicateError.Constraint
// carries one of these.
const (
	ConstraintCategoryName  = "categories_name_key"
	ConstraintCategorySlug  = "categories_slug_key"
	ConstraintFieldName     = "fields_name_key"
	ConstraintCategoryField = "category_fields_category_field_key"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// ErrDuplicate is matched by every DuplicateError.
var ErrDuplicate = errors.New("duplicate key")

// DuplicateError reports which unique constraint rejected a write.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate key violates %s", e.Constraint)
}

// Is makes errors.Is(err, ErrDuplicate) true.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// asDuplicate converts a Postgres unique violation into a DuplicateError.
// Other errors are returned unchanged.
func asDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &DuplicateError{Constraint: pgErr.ConstraintName}
	}
	return err
}

// DBTX is the subset of *sql.DB and *sql.Tx the queries need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SortItem assigns a sibling rank to one category.
type SortItem struct {
	ID    uuid.UUID `json:"id"`
	Order int       `json:"order"`
}

// Reader holds the catalog read queries. Lookups return (nil, nil) when
// the row does not exist.
type Reader interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListRoots(ctx context.Context) ([]models.Category, error)
	Subtree(ctx context.Context, id uuid.UUID) ([]models.Category, error)
	Siblings(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error)
	Ancestors(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindCategoryByName(ctx context.Context, name string) (*models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CountCategories(ctx context.Context) (int, error)

	ListFields(ctx context.Context) ([]models.Field, error)
	FindField(ctx context.Context, id uuid.UUID) (*models.Field, error)
	FindFieldByName(ctx context.Context, name string) (*models.Field, error)
	CategoryFields(ctx context.Context, categoryID uuid.UUID) ([]models.CategoryField, error)
	FindCategoryField(ctx context.Context, categoryID, fieldID uuid.UUID) (*models.CategoryField, error)
}

// Writer holds the catalog mutations. The service runs them through
// Repository.WithTx.
type Writer interface {
	LockForest(ctx context.Context) error
	InsertCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	SetSortOrders(ctx context.Context, items []SortItem) error
	DeleteSubtree(ctx context.Context, id uuid.UUID) (int64, error)

	InsertField(ctx context.Context, f *models.Field) error
	DeleteField(ctx context.Context, id uuid.UUID) (int64, error)
	InsertCategoryField(ctx context.Context, cf *models.CategoryField) error
	DeleteCategoryField(ctx context.Context, categoryID, fieldID uuid.UUID) (int64, error)
}

// Tx is a Reader and Writer bound to one database transaction.
type Tx interface {
	Reader
	Writer
}

// Repository is the catalog persistence used by the category service.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// queries implements Tx over either a pool or a transaction.
type queries struct {
	db DBTX
}

// CategoryStore manages categories, field definitions and category fields.
type CategoryStore struct {
	*queries
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{queries: &queries{db: db}, db: db}
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *CategoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
