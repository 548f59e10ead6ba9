// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the marketplace
// category API. Handlers are grouped by concern (admin, public, auth),
// receive their dependencies through the handler struct and speak JSON.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/catalog"
	"marketplace/internal/models"
	"marketplace/internal/storage"
)

// SnapshotStore uploads category snapshots. *storage.Client satisfies it.
type SnapshotStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Admin groups the category management handlers.
type Admin struct {
	catalog   *catalog.Service
	snapshots SnapshotStore
	now       func() time.Time
}

// NewAdmin creates a new Admin handler group. snapshots may be nil if S3
// is not configured.
func NewAdmin(svc *catalog.Service, snapshots SnapshotStore) *Admin {
	return &Admin{catalog: svc, snapshots: snapshots, now: time.Now}
}

type createCategoryRequest struct {
	Name     string     `json:"name" validate:"required,max=100"`
	Slug     string     `json:"slug" validate:"omitempty,max=150"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type updateCategoryRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Slug     *string `json:"slug" validate:"omitempty,max=150"`
	IsActive *bool   `json:"is_active"`
}

type reparentRequest struct {
	ParentID nullableID `json:"parent_id"`
}

// nullableID is a UUID body field that may be null but must be present.
type nullableID struct {
	Present bool
	ID      *uuid.UUID
}

// UnmarshalJSON is also called for a JSON null, which marks the field
// present with a nil ID.
func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Present = true
	if string(b) == "null" {
		n.ID = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.ID = &id
	return nil
}

// ListCategories returns every category flattened depth-first with its
// depth, for parent pickers.
func (a *Admin) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.catalog.Flat(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// GetCategory returns one category.
func (a *Admin) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := a.catalog.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CategorySubtree returns a category with its descendants nested.
func (a *Admin) CategorySubtree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	node, err := a.catalog.Subtree(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// CreateCategory creates a category, optionally under a parent.
func (a *Admin) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := a.catalog.Create(r.Context(), catalog.CreateInput{
		Name:     req.Name,
		Slug:     req.Slug,
		ParentID: req.ParentID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCategory renames, re-slugs or toggles a category.
func (a *Admin) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := a.catalog.Update(r.Context(), id, catalog.UpdateInput{
		Name:     req.Name,
		Slug:     req.Slug,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ReparentCategory moves a category. An explicit null parent_id makes it a
// root; a body without parent_id is rejected.
func (a *Admin) ReparentCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reparentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.ParentID.Present {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Detail: "invalid input",
			Fields: map[string]string{"parent_id": "is required"},
		})
		return
	}
	c, err := a.catalog.Reparent(r.Context(), id, req.ParentID.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CheckReparent answers whether ?parent_id= is a valid new parent without
// moving anything. A cycle is reported as 409 like the move itself.
func (a *Admin) CheckReparent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	parentID, err := uuid.Parse(r.URL.Query().Get("parent_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid parent_id")
		return
	}
	if err := a.catalog.CheckReparent(r.Context(), id, parentID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}

// DeleteCategory removes a category and its whole subtree.
func (a *Admin) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	removed, err := a.catalog.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": removed})
}

// --- Fields ---

type createFieldRequest struct {
	Name string           `json:"name" validate:"required,max=100"`
	Type models.FieldType `json:"field_type" validate:"required,oneof=text number boolean"`
}

type attachFieldRequest struct {
	FieldID  uuid.UUID `json:"field_id" validate:"required"`
	Required bool      `json:"is_required"`
}

// ListFields returns every field definition.
func (a *Admin) ListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := a.catalog.ListFields(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

// CreateField defines a new listing attribute.
func (a *Admin) CreateField(w http.ResponseWriter, r *http.Request) {
	var req createFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := a.catalog.CreateField(r.Context(), req.Name, req.Type)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// DeleteField removes a field definition and all of its attachments.
func (a *Admin) DeleteField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "fieldID")
	if !ok {
		return
	}
	if err := a.catalog.DeleteField(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CategoryFields lists the fields attached to a category.
func (a *Admin) CategoryFields(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attached, err := a.catalog.CategoryFields(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attached)
}

// AttachField attaches a field to a category.
func (a *Admin) AttachField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req attachFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cf, err := a.catalog.AttachField(r.Context(), id, req.FieldID, req.Required)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cf)
}

// DetachField removes a field from a category.
func (a *Admin) DetachField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fieldID, ok := pathID(w, r, "fieldID")
	if !ok {
		return
	}
	if err := a.catalog.DetachField(r.Context(), id, fieldID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Import / export ---

// snapshotExpiry is how long a snapshot download link stays valid.
const snapshotExpiry = 1 * time.Hour

// ImportCategories creates the categories of an import document. Entries
// that already exist are skipped.
func (a *Admin) ImportCategories(w http.ResponseWriter, r *http.Request) {
	entries, err := catalog.DecodeImport(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.catalog.Import(r.Context(), entries)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportCategories returns the forest as an import document.
func (a *Admin) ExportCategories(w http.ResponseWriter, r *http.Request) {
	entries, err := a.catalog.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="categories.json"`)
	writeJSON(w, http.StatusOK, entries)
}

// CreateSnapshot uploads the current export to object storage and returns
// a time-limited download link.
func (a *Admin) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}
	ctx := r.Context()

	entries, err := a.catalog.Export(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	body, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	key := storage.SnapshotKey(a.now())
	if err := a.snapshots.Upload(ctx, key, "application/json", body); err != nil {
		slog.Error("snapshot upload failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "snapshot upload failed")
		return
	}
	url, err := a.snapshots.PresignedURL(ctx, key, snapshotExpiry)
	if err != nil {
		slog.Error("snapshot presign failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "snapshot link could not be created")
		return
	}

	slog.Info("category snapshot created", "key", key, "bytes", len(body))
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":        key,
		"url":        url,
		"expires_at": a.now().Add(snapshotExpiry).UTC(),
	})
}
