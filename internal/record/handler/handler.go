// Package handler is the thin HTTP layer over the record engine. It decodes
// request bodies, delegates, and translates domain errors into JSON
// responses; business logic stays in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"contactdir/internal/record/models"
	"contactdir/internal/record/validate"
	dErrors "contactdir/pkg/domain-errors"
)

type Handler struct {
	engine Engine
	log    *slog.Logger
}

// Engine is the record engine surface the HTTP layer depends on.
type Engine interface {
	Create(ctx context.Context, req models.CreateRequest) (models.Record, error)
	Patch(ctx context.Context, req models.PatchRequest) (models.Record, error)
	Delete(ctx context.Context, sel models.Selector) error
	List(ctx context.Context) ([]models.Record, error)
	CheckCreate(ctx context.Context, req models.CreateRequest, mode validate.Mode) error
	CheckEdit(ctx context.Context, req models.EditCheckRequest, mode validate.Mode) error
}

func NewHandler(engine Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, log: log}
}

// Routes wires the record API. Mount under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/record", h.handleCreate)
	r.Patch("/record", h.handlePatch)
	r.Delete("/record", h.handleDelete)
	r.Get("/records", h.handleList)
	r.Route("/validate", func(r chi.Router) {
		r.Post("/create", h.handleValidateCreate)
		r.Post("/edit", h.handleValidateEdit)
	})
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeFormat, "", "invalid request body"))
		return
	}

	stored, err := h.engine.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, stored)
}

// patchPayload mirrors the wire shape of a partial edit: "$id" selects the
// record, "$set" overwrites fields, "$unset" removes them. Unset values are
// flags; only key presence matters.
type patchPayload struct {
	Selector selectorPayload         `json:"$id"`
	Set      map[models.Field]string `json:"$set"`
	Unset    map[models.Field]any    `json:"$unset"`
}

type selectorPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (p selectorPayload) toSelector() (models.Selector, error) {
	sel := models.Selector{Email: p.Email, Phone: p.Phone}
	if p.ID != "" {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return models.Selector{}, dErrors.New(dErrors.CodeFormat, "selector", "malformed record id")
		}
		sel.ID = id
	}
	return sel, nil
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	var payload patchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeFormat, "", "invalid request body"))
		return
	}
	sel, err := payload.Selector.toSelector()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	unset := make(map[models.Field]bool, len(payload.Unset))
	for field := range payload.Unset {
		unset[field] = true
	}

	updated, err := h.engine.Patch(r.Context(), models.PatchRequest{
		Selector: sel,
		Set:      payload.Set,
		Unset:    unset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var payload selectorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeFormat, "", "invalid request body"))
		return
	}
	sel, err := payload.toSelector()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.engine.Delete(r.Context(), sel); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Record{}
	}
	h.writeJSON(w, http.StatusOK, docs)
}

// mode reads the ?full query flag the validate endpoints use: full means
// strict, anything else is the lenient incremental check.
func mode(r *http.Request) validate.Mode {
	if r.URL.Query().Get("full") != "" {
		return validate.Strict
	}
	return validate.Lenient
}

func (h *Handler) handleValidateCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeFormat, "", "invalid request body"))
		return
	}

	if err := h.engine.CheckCreate(r.Context(), req, mode(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleValidateEdit(w http.ResponseWriter, r *http.Request) {
	var req models.EditCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeFormat, "", "invalid request body"))
		return
	}

	if err := h.engine.CheckEdit(r.Context(), req, mode(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "error", err)
	}
}

// writeError translates domain errors into the JSON envelope clients render
// next to form fields. Internal errors stay opaque.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := dErrors.FromError(err)
	if !ok {
		de = dErrors.New(dErrors.CodeInternal, "", "internal error")
	}

	status := http.StatusBadRequest
	if de.Code == dErrors.CodeInternal {
		status = http.StatusInternalServerError
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.log.Debug("request rejected",
			"method", r.Method, "path", r.URL.Path, "code", de.Code, "field", de.Path)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(de.Code),
		"path":    de.Path,
		"message": de.Message,
	})
}
