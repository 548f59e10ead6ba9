// Package catalog implements the marketplace category forest: creation,
// reparenting, deletion and the nested tree read model, plus the field
// schema attached to categories and bulk import/export.
//
// Every mutation runs in one store transaction guarded by the forest
// advisory lock, so uniqueness and cycle checks are atomic with the write.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"marketplace/internal/models"
	"marketplace/internal/slug"
	"marketplace/internal/store"
)

// MaxNameLen is the longest accepted category or field name, in characters.
const MaxNameLen = 100

// Operation names passed to change listeners.
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpReparent    = "reparent"
	OpDelete      = "delete"
	OpImport      = "import"
	OpFieldCreate = "field_create"
	OpFieldDelete = "field_delete"
	OpFieldAttach = "field_attach"
	OpFieldDetach = "field_detach"
)

// ChangeFunc is called after a mutation has been committed.
type ChangeFunc func(ctx context.Context, op string)

// Service owns the category forest.
type Service struct {
	repo      store.Repository
	listeners []ChangeFunc
}

// NewService returns a Service backed by repo.
func NewService(repo store.Repository) *Service {
	return &Service{repo: repo}
}

// OnChange registers fn to run after every committed mutation. Listeners
// must be registered before the service is shared between goroutines.
func (s *Service) OnChange(fn ChangeFunc) {
	s.listeners = append(s.listeners, fn)
}

func (s *Service) changed(ctx context.Context, op string) {
	for _, fn := range s.listeners {
		fn(ctx, op)
	}
}

// CreateInput holds the arguments of Create. An empty Slug is derived
// from Name.
type CreateInput struct {
	Name     string
	Slug     string
	ParentID *uuid.UUID
}

// UpdateInput holds the optional changes applied by Update. A non-nil
// empty Slug re-derives the slug from the (possibly new) name.
type UpdateInput struct {
	Name     *string
	Slug     *string
	IsActive *bool
}

// Create inserts a new category. The name and slug must be unique across
// the whole forest.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Category, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	sl, err := cleanSlug(in.Slug, name)
	if err != nil {
		return nil, err
	}

	var created *models.Category
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockForest(ctx); err != nil {
			return err
		}
		if in.ParentID != nil {
			parent, err := tx.FindCategory(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent category %s: %w", *in.ParentID, ErrNotFound)
			}
		}

		c, err := insert(ctx, tx, name, sl, in.ParentID)
		if err != nil {
			return err
		}
		orders, err := resort(ctx, tx, in.ParentID)
		if err != nil {
			return err
		}
		c.SortOrder = orders[c.ID]
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpCreate)
	return created, nil
}

// Reparent moves a category under parentID, or to the roots when parentID
// is nil. Moving a category under itself or one of its descendants fails
// with a CycleError.
func (s *Service) Reparent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*models.Category, error) {
	var moved *models.Category
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockForest(ctx); err != nil {
			return err
		}
		c, err := tx.FindCategory(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}

		if parentID != nil {
			if err := checkReparent(ctx, tx, id, *parentID); err != nil {
				return err
			}
		}
		if sameParent(c.ParentID, parentID) {
			moved = c
			return nil
		}

		oldParent := c.ParentID
		c.ParentID = parentID
		if err := tx.UpdateCategory(ctx, c); err != nil {
			return err
		}
		if _, err := resort(ctx, tx, oldParent); err != nil {
			return err
		}
		orders, err := resort(ctx, tx, parentID)
		if err != nil {
			return err
		}
		c.SortOrder = orders[c.ID]
		moved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpReparent)
	return moved, nil
}

// CheckReparent reports whether moving id under parentID is allowed,
// without changing anything. It returns a CycleError when parentID is id
// or one of its descendants and ErrNotFound when either does not exist.
func (s *Service) CheckReparent(ctx context.Context, id, parentID uuid.UUID) error {
	c, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return checkReparent(ctx, s.repo, id, parentID)
}

// checkReparent walks up from parentID and fails if it meets id.
func checkReparent(ctx context.Context, r store.Reader, id, parentID uuid.UUID) error {
	if id == parentID {
		return &CycleError{CategoryID: id, ParentID: parentID}
	}
	path, err := r.Ancestors(ctx, parentID)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return fmt.Errorf("parent category %s: %w", parentID, ErrNotFound)
	}
	if slices.Contains(path, id) {
		return &CycleError{CategoryID: id, ParentID: parentID}
	}
	return nil
}

// Update renames, re-slugs or toggles a category. Uniqueness is checked
// against every other category.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Category, error) {
	var updated *models.Category
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockForest(ctx); err != nil {
			return err
		}
		c, err := tx.FindCategory(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}

		renamed := false
		if in.Name != nil {
			name, err := cleanName(*in.Name)
			if err != nil {
				return err
			}
			renamed = name != c.Name
			c.Name = name
		}
		if in.Slug != nil {
			sl, err := cleanSlug(*in.Slug, c.Name)
			if err != nil {
				return err
			}
			c.Slug = sl
		}
		if in.IsActive != nil {
			c.IsActive = *in.IsActive
		}

		if err := checkUnique(ctx, tx, c.Name, c.Slug, c.ID); err != nil {
			return err
		}
		if err := tx.UpdateCategory(ctx, c); err != nil {
			return conflictFromStore(err, c.Name, c.Slug)
		}
		if renamed {
			orders, err := resort(ctx, tx, c.ParentID)
			if err != nil {
				return err
			}
			c.SortOrder = orders[c.ID]
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, OpUpdate)
	return updated, nil
}

// Delete removes a category and all of its descendants and returns how
// many categories were removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var removed int64
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockForest(ctx); err != nil {
			return err
		}
		c, err := tx.FindCategory(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}

		removed, err = tx.DeleteSubtree(ctx, id)
		if err != nil {
			return err
		}
		_, err = resort(ctx, tx, c.ParentID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.changed(ctx, OpDelete)
	return removed, nil
}

// Get returns one category.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	c, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// ListRoots returns the categories without a parent, ordered by name.
func (s *Service) ListRoots(ctx context.Context) ([]models.Category, error) {
	roots, err := s.repo.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	if roots == nil {
		roots = []models.Category{}
	}
	sortByName(roots)
	return roots, nil
}

// Count returns the number of categories in the forest.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.CountCategories(ctx)
}

// insert checks uniqueness and inserts a category with a provisional
// sort order. Callers hold the forest lock and resort the parent.
func insert(ctx context.Context, tx store.Tx, name, sl string, parentID *uuid.UUID) (*models.Category, error) {
	if err := checkUnique(ctx, tx, name, sl, uuid.Nil); err != nil {
		return nil, err
	}
	c := &models.Category{Name: name, Slug: sl, IsActive: true, ParentID: parentID}
	if err := tx.InsertCategory(ctx, c); err != nil {
		return nil, conflictFromStore(err, name, sl)
	}
	return c, nil
}

// checkUnique fails with a ConflictError when another category (any id
// other than self) already uses name or slug.
func checkUnique(ctx context.Context, r store.Reader, name, sl string, self uuid.UUID) error {
	byName, err := r.FindCategoryByName(ctx, name)
	if err != nil {
		return err
	}
	if byName != nil && byName.ID != self {
		return &ConflictError{Field: "name", Value: name}
	}
	bySlug, err := r.FindCategoryBySlug(ctx, sl)
	if err != nil {
		return err
	}
	if bySlug != nil && bySlug.ID != self {
		return &ConflictError{Field: "slug", Value: sl}
	}
	return nil
}

// resort recomputes the sort order of parentID's children by name and
// returns the new rank of each child.
func resort(ctx context.Context, tx store.Tx, parentID *uuid.UUID) (map[uuid.UUID]int, error) {
	siblings, err := tx.Siblings(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sortByName(siblings)

	orders := make(map[uuid.UUID]int, len(siblings))
	items := make([]store.SortItem, 0, len(siblings))
	for i, c := range siblings {
		orders[c.ID] = i
		if c.SortOrder != i {
			items = append(items, store.SortItem{ID: c.ID, Order: i})
		}
	}
	if err := tx.SetSortOrders(ctx, items); err != nil {
		return nil, err
	}
	return orders, nil
}

func sortByName(cats []models.Category) {
	slices.SortStableFunc(cats, func(a, b models.Category) int {
		return cmp.Compare(a.Name, b.Name)
	})
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", invalid("name", fmt.Sprintf("must be at most %d characters", MaxNameLen))
	}
	return name, nil
}

// cleanSlug validates an explicit slug or derives one from name.
func cleanSlug(sl, name string) (string, error) {
	sl = strings.TrimSpace(sl)
	if sl == "" {
		sl = slug.Generate(name)
		if sl == "" {
			return "", invalid("slug", "cannot be derived from name; provide one")
		}
		return sl, nil
	}
	if len(sl) > slug.MaxLen {
		return "", invalid("slug", fmt.Sprintf("must be at most %d characters", slug.MaxLen))
	}
	if !slug.Valid(sl) {
		return "", invalid("slug", "must contain only lowercase letters, digits and single hyphens")
	}
	return sl, nil
}
