package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"marketplace/internal/models"
)

// Tree returns every root category with its full descendant tree. The
// whole forest is read in one query and assembled in memory. An empty
// forest yields an empty, non-nil slice.
func (s *Service) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return BuildForest(cats), nil
}

// Subtree returns the category with the given id and its descendants,
// read with a single recursive query.
func (s *Service) Subtree(ctx context.Context, id uuid.UUID) (*models.CategoryNode, error) {
	cats, err := s.repo.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, node := range BuildForest(cats) {
		if node.ID == id {
			return node, nil
		}
	}
	return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
}

// Flat returns every category in depth-first pre-order with Depth set,
// siblings ordered by name.
func (s *Service) Flat(ctx context.Context) ([]models.Category, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	roots, children := index(cats)

	out := make([]models.Category, 0, len(cats))
	var walk func(level []models.Category, depth int)
	walk = func(level []models.Category, depth int) {
		sortByName(level)
		for _, c := range level {
			c.Depth = depth
			out = append(out, c)
			walk(children[c.ID], depth+1)
		}
	}
	walk(roots, 0)
	return out, nil
}

// BuildForest assembles flat categories into nested nodes. A category
// whose parent is absent from cats becomes a root, so a subtree query
// result assembles around its starting node. Every level is ordered by
// name and leaves keep a nil Children slice.
func BuildForest(cats []models.Category) []*models.CategoryNode {
	roots, children := index(cats)
	nodes := assemble(roots, children)
	if nodes == nil {
		nodes = []*models.CategoryNode{}
	}
	return nodes
}

// index splits cats into roots and a parent id to children map.
func index(cats []models.Category) ([]models.Category, map[uuid.UUID][]models.Category) {
	present := make(map[uuid.UUID]bool, len(cats))
	for _, c := range cats {
		present[c.ID] = true
	}

	var roots []models.Category
	children := make(map[uuid.UUID][]models.Category)
	for _, c := range cats {
		if c.IsRoot() || !present[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}
	return roots, children
}

func assemble(level []models.Category, children map[uuid.UUID][]models.Category) []*models.CategoryNode {
	if len(level) == 0 {
		return nil
	}
	sortByName(level)

	nodes := make([]*models.CategoryNode, 0, len(level))
	for _, c := range level {
		nodes = append(nodes, &models.CategoryNode{
			ID:       c.ID,
			Name:     c.Name,
			Slug:     c.Slug,
			ParentID: c.ParentID,
			Children: assemble(children[c.ID], children),
		})
	}
	return nodes
}

func exportNodes(nodes []*models.CategoryNode) []ImportEntry {
	out := make([]ImportEntry, 0, len(nodes))
	for _, n := range nodes {
		e := ImportEntry{Name: n.Name, Slug: n.Slug}
		if !n.IsLeaf() {
			e.Children = exportNodes(n.Children)
		}
		out = append(out, e)
	}
	return out
}
