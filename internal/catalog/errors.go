package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"marketplace/internal/store"
)

// ErrNotFound is returned when a category or field does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError reports a value that is already taken.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// CycleError reports a reparent that would make a category its own ancestor.
type CycleError struct {
	CategoryID uuid.UUID
	ParentID   uuid.UUID
}

func (e *CycleError) Error() string {
	if e.CategoryID == e.ParentID {
		return fmt.Sprintf("category %s cannot be its own parent", e.CategoryID)
	}
	return fmt.Sprintf("category %s is a descendant of %s", e.ParentID, e.CategoryID)
}

// ValidationError reports malformed input. Fields maps input names to
// messages when the problem is field specific.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Message: "invalid input", Fields: map[string]string{field: msg}}
}

// conflictFromStore turns a unique violation that slipped past the
// pre-checks into a ConflictError. Other errors pass through.
func conflictFromStore(err error, name, slug string) error {
	var dup *store.DuplicateError
	if !errors.As(err, &dup) {
		return err
	}
	switch dup.Constraint {
	case store.ConstraintCategoryName:
		return &ConflictError{Field: "name", Value: name}
	case store.ConstraintCategorySlug:
		return &ConflictError{Field: "slug", Value: slug}
	case store.ConstraintFieldName:
		return &ConflictError{Field: "field", Value: name}
	case store.ConstraintCategoryField:
		return &ConflictError{Field: "category_field", Value: name}
	}
	return &ConflictError{Field: dup.Constraint, Value: name}
}
