package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"marketplace/internal/store"
)

// ImportEntry is one category in the import/export document. Children may
// nest to any depth.
type ImportEntry struct {
	Name     string        `json:"name"`
	Slug     string        `json:"slug,omitempty"`
	Children []ImportEntry `json:"children,omitempty"`
}

// ImportResult counts what an import did.
type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// DecodeImport reads an import document: a JSON array of entries.
func DecodeImport(r io.Reader) ([]ImportEntry, error) {
	var entries []ImportEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed category import: %v", err)}
	}
	return entries, nil
}

// Import creates the categories described by entries. An entry whose exact
// name and slug already exist is skipped and its existing category is used
// as the parent of its children, so importing the same document twice
// creates nothing the second time. The whole import is one transaction.
func (s *Service) Import(ctx context.Context, entries []ImportEntry) (ImportResult, error) {
	var res ImportResult
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		res = ImportResult{}
		if err := tx.LockForest(ctx); err != nil {
			return err
		}

		imp := &importer{tx: tx, touched: make(map[uuid.UUID]bool)}
		if err := imp.level(ctx, entries, nil, "$"); err != nil {
			return err
		}

		if imp.rootsTouched {
			if _, err := resort(ctx, tx, nil); err != nil {
				return err
			}
		}
		for id := range imp.touched {
			if _, err := resort(ctx, tx, &id); err != nil {
				return err
			}
		}
		res = imp.res
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	if res.Created > 0 {
		s.changed(ctx, OpImport)
	}
	return res, nil
}

type importer struct {
	tx           store.Tx
	res          ImportResult
	touched      map[uuid.UUID]bool
	rootsTouched bool
}

func (imp *importer) level(ctx context.Context, entries []ImportEntry, parentID *uuid.UUID, path string) error {
	for i, e := range entries {
		at := fmt.Sprintf("%s[%d]", path, i)

		name, err := cleanName(e.Name)
		if err != nil {
			return atPath(err, at)
		}
		sl, err := cleanSlug(e.Slug, name)
		if err != nil {
			return atPath(err, at)
		}

		existing, err := imp.tx.FindCategoryByName(ctx, name)
		if err != nil {
			return err
		}
		var id uuid.UUID
		if existing != nil && existing.Slug == sl {
			imp.res.Skipped++
			id = existing.ID
		} else {
			c, err := insert(ctx, imp.tx, name, sl, parentID)
			if err != nil {
				return err
			}
			imp.res.Created++
			id = c.ID
			if parentID == nil {
				imp.rootsTouched = true
			} else {
				imp.touched[*parentID] = true
			}
		}

		if err := imp.level(ctx, e.Children, &id, at+".children"); err != nil {
			return err
		}
	}
	return nil
}

// atPath prefixes a validation error with the document location.
func atPath(err error, at string) error {
	if ve, ok := err.(*ValidationError); ok {
		return &ValidationError{Message: at + ": " + ve.Message, Fields: ve.Fields}
	}
	return err
}

// Export returns the forest in import document form. Importing the result
// into the same forest creates nothing.
func (s *Service) Export(ctx context.Context) ([]ImportEntry, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return exportNodes(tree), nil
}
