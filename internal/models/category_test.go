package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCategoryNodeLeafEncodesNullChildren(t *testing.T) {
	leaf := &CategoryNode{ID: uuid.New(), Name: "Boats", Slug: "boats"}

	b, err := json.Marshal(leaf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"children":null`) {
		t.Errorf("leaf JSON = %s, want children:null", b)
	}
	if !strings.Contains(string(b), `"parent_id":null`) {
		t.Errorf("root JSON = %s, want parent_id:null", b)
	}
	if !leaf.IsLeaf() {
		t.Error("IsLeaf() = false for a node without children")
	}
}

func TestCategoryNodeSize(t *testing.T) {
	root := &CategoryNode{Name: "Vehicles", Children: []*CategoryNode{
		{Name: "Boats"},
		{Name: "Cars", Children: []*CategoryNode{{Name: "Electric"}, {Name: "Vintage"}}},
	}}

	if got := root.Size(); got != 5 {
		t.Errorf("Size() = %d, want 5", got)
	}
	if root.IsLeaf() {
		t.Error("IsLeaf() = true for a node with children")
	}
}

func TestCategoryIsRoot(t *testing.T) {
	parent := uuid.New()
	if !(&Category{}).IsRoot() {
		t.Error("category without parent should be a root")
	}
	if (&Category{ParentID: &parent}).IsRoot() {
		t.Error("category with parent should not be a root")
	}
}

func TestFieldTypeValid(t *testing.T) {
	tests := []struct {
		in   FieldType
		want bool
	}{
		{FieldTypeText, true},
		{FieldTypeNumber, true},
		{FieldTypeBoolean, true},
		{FieldType(""), false},
		{FieldType("date"), false},
		{FieldType("TEXT"), false},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("FieldType(%q).Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
