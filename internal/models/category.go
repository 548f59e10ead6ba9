// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is one node of the marketplace category forest.
// Name and Slug are unique across the whole forest, not only among siblings.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	IsActive  bool       `json:"is_active"`
	ParentID  *uuid.UUID `json:"parent_id"`
	SortOrder int        `json:"sort_order"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Depth is populated by flat tree listings.
	Depth int `json:"depth"`
}

// IsRoot returns true if the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryNode is the nested read representation of a category and its
// descendants. Children is nil for a leaf so it encodes as JSON null.
type CategoryNode struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	ParentID *uuid.UUID      `json:"parent_id"`
	Children []*CategoryNode `json:"children"`
}

// IsLeaf returns true if the node has no children.
func (n *CategoryNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *CategoryNode) Size() int {
	total := 1
	for _, child := range n.Children {
		total += child.Size()
	}
	return total
}
