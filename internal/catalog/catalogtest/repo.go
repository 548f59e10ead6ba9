// Package catalogtest provides an in-memory store.Repository for tests of
// the catalog service and the HTTP handlers built on it.
package catalogtest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

// Repo is an in-memory store.Repository. Transactions run one at a time on
// a copy of the data that replaces the original only when fn succeeds.
// Unique constraints and cascading deletes behave like the Postgres schema.
type Repo struct {
	mu      sync.Mutex
	st      *state
	commits int
	locks   int
}

var _ store.Repository = (*Repo)(nil)

// New returns an empty Repo.
func New() *Repo {
	return &Repo{st: newState()}
}

// Commits returns how many transactions have committed.
func (r *Repo) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// Locks returns how many times the forest lock was taken.
func (r *Repo) Locks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks
}

// WithTx runs fn against a private copy of the data.
func (r *Repo) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := r.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	r.st = work
	r.commits++
	r.locks += work.locks
	work.locks = 0
	return nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListCategories(ctx)
}

func (r *Repo) ListRoots(ctx context.Context) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListRoots(ctx)
}

func (r *Repo) Subtree(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Subtree(ctx, id)
}

func (r *Repo) Siblings(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Siblings(ctx, parentID)
}

func (r *Repo) Ancestors(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Ancestors(ctx, id)
}

func (r *Repo) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.FindCategory(ctx, id)
}

func (r *Repo) FindCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.FindCategoryByName(ctx, name)
}

func (r *Repo) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.FindCategoryBySlug(ctx, slug)
}

func (r *Repo) CountCategories(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.CountCategories(ctx)
}

func (r *Repo) ListFields(ctx context.Context) ([]models.Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ListFields(ctx)
}

func (r *Repo) FindField(ctx context.Context, id uuid.UUID) (*models.Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.FindField(ctx, id)
}

func (r *Repo) FindFieldByName(ctx context.Context, name string) (*models.Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.FindFieldByName(ctx, name)
}

func (r *Repo) CategoryFields(ctx context.Context, categoryID uuid.UUID) ([]models.CategoryField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.CategoryFields(ctx, categoryID)
}

func (r *Repo) FindCategoryField(ctx context.Context, categoryID, fieldID uuid.UUID) (*models.CategoryField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.FindCategoryField(ctx, categoryID, fieldID)
}

// errForeignKey mirrors a Postgres foreign key violation.
var errForeignKey = errors.New("foreign key violation")

type state struct {
	cats   map[uuid.UUID]models.Category
	fields map[uuid.UUID]models.Field
	cfs    map[uuid.UUID]models.CategoryField
	locks  int
}

func newState() *state {
	return &state{
		cats:   make(map[uuid.UUID]models.Category),
		fields: make(map[uuid.UUID]models.Field),
		cfs:    make(map[uuid.UUID]models.CategoryField),
	}
}

func (s *state) clone() *state {
	return &state{
		cats:   maps.Clone(s.cats),
		fields: maps.Clone(s.fields),
		cfs:    maps.Clone(s.cfs),
	}
}

func sorted(cats []models.Category) []models.Category {
	slices.SortFunc(cats, func(a, b models.Category) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return cats
}

func (s *state) filter(keep func(models.Category) bool) []models.Category {
	var out []models.Category
	for _, c := range s.cats {
		if keep(c) {
			out = append(out, c)
		}
	}
	return sorted(out)
}

func (s *state) ListCategories(context.Context) ([]models.Category, error) {
	return s.filter(func(models.Category) bool { return true }), nil
}

func (s *state) ListRoots(context.Context) ([]models.Category, error) {
	return s.filter(func(c models.Category) bool { return c.ParentID == nil }), nil
}

func (s *state) Siblings(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	if parentID == nil {
		return s.ListRoots(ctx)
	}
	return s.filter(func(c models.Category) bool {
		return c.ParentID != nil && *c.ParentID == *parentID
	}), nil
}

func (s *state) subtreeIDs(id uuid.UUID) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool)
	if _, ok := s.cats[id]; !ok {
		return ids
	}
	ids[id] = true
	for grew := true; grew; {
		grew = false
		for _, c := range s.cats {
			if c.ParentID != nil && ids[*c.ParentID] && !ids[c.ID] {
				ids[c.ID] = true
				grew = true
			}
		}
	}
	return ids
}

func (s *state) Subtree(_ context.Context, id uuid.UUID) ([]models.Category, error) {
	ids := s.subtreeIDs(id)
	return s.filter(func(c models.Category) bool { return ids[c.ID] }), nil
}

func (s *state) Ancestors(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var path []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for cur, ok := s.cats[id]; ok && !seen[cur.ID]; {
		seen[cur.ID] = true
		path = append(path, cur.ID)
		if cur.ParentID == nil {
			break
		}
		cur, ok = s.cats[*cur.ParentID]
	}
	return path, nil
}

func (s *state) FindCategory(_ context.Context, id uuid.UUID) (*models.Category, error) {
	if c, ok := s.cats[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *state) findCategoryBy(match func(models.Category) bool) *models.Category {
	for _, c := range s.cats {
		if match(c) {
			return &c
		}
	}
	return nil
}

func (s *state) FindCategoryByName(_ context.Context, name string) (*models.Category, error) {
	return s.findCategoryBy(func(c models.Category) bool { return c.Name == name }), nil
}

func (s *state) FindCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	return s.findCategoryBy(func(c models.Category) bool { return c.Slug == slug }), nil
}

func (s *state) CountCategories(context.Context) (int, error) {
	return len(s.cats), nil
}

func (s *state) ListFields(context.Context) ([]models.Field, error) {
	out := slices.Collect(maps.Values(s.fields))
	slices.SortFunc(out, func(a, b models.Field) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *state) FindField(_ context.Context, id uuid.UUID) (*models.Field, error) {
	if f, ok := s.fields[id]; ok {
		return &f, nil
	}
	return nil, nil
}

func (s *state) FindFieldByName(_ context.Context, name string) (*models.Field, error) {
	for _, f := range s.fields {
		if f.Name == name {
			return &f, nil
		}
	}
	return nil, nil
}

func (s *state) withField(cf models.CategoryField) models.CategoryField {
	f := s.fields[cf.FieldID]
	cf.Field = &f
	return cf
}

func (s *state) CategoryFields(_ context.Context, categoryID uuid.UUID) ([]models.CategoryField, error) {
	var out []models.CategoryField
	for _, cf := range s.cfs {
		if cf.CategoryID == categoryID {
			out = append(out, s.withField(cf))
		}
	}
	slices.SortFunc(out, func(a, b models.CategoryField) int { return cmp.Compare(a.Field.Name, b.Field.Name) })
	return out, nil
}

func (s *state) FindCategoryField(_ context.Context, categoryID, fieldID uuid.UUID) (*models.CategoryField, error) {
	for _, cf := range s.cfs {
		if cf.CategoryID == categoryID && cf.FieldID == fieldID {
			cf = s.withField(cf)
			return &cf, nil
		}
	}
	return nil, nil
}

func (s *state) LockForest(context.Context) error {
	s.locks++
	return nil
}

// uniqueCategory reports the constraint c would violate, ignoring itself.
func (s *state) uniqueCategory(c *models.Category) error {
	for _, other := range s.cats {
		if other.ID == c.ID {
			continue
		}
		if other.Name == c.Name {
			return &store.DuplicateError{Constraint: store.ConstraintCategoryName}
		}
		if other.Slug == c.Slug {
			return &store.DuplicateError{Constraint: store.ConstraintCategorySlug}
		}
	}
	if c.ParentID != nil {
		if _, ok := s.cats[*c.ParentID]; !ok {
			return fmt.Errorf("parent %s: %w", *c.ParentID, errForeignKey)
		}
		if *c.ParentID == c.ID {
			return errors.New("check constraint categories_not_own_parent")
		}
	}
	return nil
}

func (s *state) InsertCategory(_ context.Context, c *models.Category) error {
	c.ID = uuid.New()
	if err := s.uniqueCategory(c); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.cats[c.ID] = *c
	return nil
}

func (s *state) UpdateCategory(_ context.Context, c *models.Category) error {
	old, ok := s.cats[c.ID]
	if !ok {
		return fmt.Errorf("update category: %s not found", c.ID)
	}
	if err := s.uniqueCategory(c); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	old.Name, old.Slug, old.IsActive, old.ParentID = c.Name, c.Slug, c.IsActive, c.ParentID
	old.UpdatedAt = time.Now()
	c.UpdatedAt = old.UpdatedAt
	s.cats[c.ID] = old
	return nil
}

func (s *state) SetSortOrders(_ context.Context, items []store.SortItem) error {
	for _, item := range items {
		if c, ok := s.cats[item.ID]; ok {
			c.SortOrder = item.Order
			s.cats[item.ID] = c
		}
	}
	return nil
}

func (s *state) DeleteSubtree(_ context.Context, id uuid.UUID) (int64, error) {
	ids := s.subtreeIDs(id)
	for cid := range ids {
		delete(s.cats, cid)
	}
	for key, cf := range s.cfs {
		if ids[cf.CategoryID] {
			delete(s.cfs, key)
		}
	}
	return int64(len(ids)), nil
}

func (s *state) InsertField(_ context.Context, f *models.Field) error {
	for _, other := range s.fields {
		if other.Name == f.Name {
			return fmt.Errorf("create field: %w", &store.DuplicateError{Constraint: store.ConstraintFieldName})
		}
	}
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	s.fields[f.ID] = *f
	return nil
}

func (s *state) DeleteField(_ context.Context, id uuid.UUID) (int64, error) {
	if _, ok := s.fields[id]; !ok {
		return 0, nil
	}
	delete(s.fields, id)
	for key, cf := range s.cfs {
		if cf.FieldID == id {
			delete(s.cfs, key)
		}
	}
	return 1, nil
}

func (s *state) InsertCategoryField(_ context.Context, cf *models.CategoryField) error {
	if _, ok := s.cats[cf.CategoryID]; !ok {
		return fmt.Errorf("attach field: category %s: %w", cf.CategoryID, errForeignKey)
	}
	if _, ok := s.fields[cf.FieldID]; !ok {
		return fmt.Errorf("attach field: field %s: %w", cf.FieldID, errForeignKey)
	}
	for _, other := range s.cfs {
		if other.CategoryID == cf.CategoryID && other.FieldID == cf.FieldID {
			return fmt.Errorf("attach field: %w", &store.DuplicateError{Constraint: store.ConstraintCategoryField})
		}
	}
	cf.ID = uuid.New()
	cf.CreatedAt = time.Now()
	stored := *cf
	stored.Field = nil
	s.cfs[cf.ID] = stored
	return nil
}

func (s *state) DeleteCategoryField(_ context.Context, categoryID, fieldID uuid.UUID) (int64, error) {
	for key, cf := range s.cfs {
		if cf.CategoryID == categoryID && cf.FieldID == fieldID {
			delete(s.cfs, key)
			return 1, nil
		}
	}
	return 0, nil
}
