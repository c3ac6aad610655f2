// Package service implements the record engine: the create, patch, and
// delete pipelines over a document store, a geo catalog, and the validators.
// The engine only computes whether a transition is legal; the store owns
// record lifetime.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contactdir/internal/record/merge"
	"contactdir/internal/record/metrics"
	"contactdir/internal/record/models"
	"contactdir/internal/record/store"
	"contactdir/internal/record/validate"
	dErrors "contactdir/pkg/domain-errors"
)

// Engine orchestrates validation, uniqueness checks, and store mutations.
// Every pipeline is fail-fast: later steps never run once a step rejects.
type Engine struct {
	store     store.Store
	validator *validate.Validator
	metrics   *metrics.Metrics
	log       *slog.Logger
	clock     func() time.Time
	tracer    trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the timestamp source for testability.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func New(st store.Store, validator *validate.Validator, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		validator: validator,
		log:       slog.Default(),
		clock:     time.Now,
		tracer:    otel.Tracer("contactdir/internal/record/service"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ValidateCreate checks a create candidate without touching the store. The
// email confirmation must match when supplied and is required in strict
// mode; it is never persisted.
func (e *Engine) ValidateCreate(req models.CreateRequest, mode validate.Mode) error {
	if req.EmailConfirmation != "" && req.Email != "" && req.EmailConfirmation != req.Email {
		return dErrors.New(dErrors.CodeFormat, "email_confirmation", "emails do not match")
	}
	if mode == validate.Strict && req.EmailConfirmation == "" {
		return dErrors.New(dErrors.CodeCompleteness, "email_confirmation", "you should confirm your email")
	}
	return e.validator.Record(req.RecordFields, mode)
}

// CheckCreate is the no-mutation create check used for client feedback. In
// strict mode it also verifies no stored record already uses the candidate
// PK values.
func (e *Engine) CheckCreate(ctx context.Context, req models.CreateRequest, mode validate.Mode) error {
	if err := e.ValidateCreate(req, mode); err != nil {
		return err
	}
	if mode != validate.Strict {
		return nil
	}
	candidate := recordFrom(req.RecordFields)
	return e.checkUnique(ctx, candidate, []models.Field{models.FieldEmail, models.FieldPhone})
}

// Create runs the full create pipeline: strict validation, uniqueness over
// all PK fields, timestamp stamping, then the insert. A unique-index
// violation raised by the store itself is translated into the same Conflict
// error as a pre-check failure.
func (e *Engine) Create(ctx context.Context, req models.CreateRequest) (models.Record, error) {
	ctx, span := e.tracer.Start(ctx, "record.create")
	defer span.End()

	stored, err := e.create(ctx, req)
	if err != nil {
		e.reject(span, err)
		return models.Record{}, err
	}
	e.metrics.IncrementCreated()
	return stored, nil
}

func (e *Engine) create(ctx context.Context, req models.CreateRequest) (models.Record, error) {
	if err := e.ValidateCreate(req, validate.Strict); err != nil {
		return models.Record{}, err
	}

	candidate := recordFrom(req.RecordFields)
	if err := e.checkUnique(ctx, candidate, []models.Field{models.FieldEmail, models.FieldPhone}); err != nil {
		return models.Record{}, err
	}

	now := e.clock()
	candidate.Created = now
	candidate.Updated = now

	stored, err := e.store.Insert(ctx, candidate)
	if err != nil {
		return models.Record{}, e.writeError("insert", err)
	}
	return stored, nil
}

// PatchOutcome is what an accepted patch hands to the caller: the resolved
// record identity and the final set/unset maps ready to persist.
type PatchOutcome struct {
	ExistingID uuid.UUID
	Set        map[models.Field]string
	Unset      []models.Field
	Updated    time.Time
}

// ValidatePatch resolves the selector, merges the edit onto the existing
// record, and validates the merged candidate in full strict mode. Only PK
// fields whose value actually changed are re-checked for uniqueness;
// unchanged ones are trusted from the resolved record.
func (e *Engine) ValidatePatch(ctx context.Context, req models.PatchRequest) (PatchOutcome, error) {
	existing, err := e.resolveSelector(ctx, req.Selector)
	if err != nil {
		return PatchOutcome{}, err
	}

	set := filterSet(req.Set)
	unset := filterUnset(req.Unset)

	candidate := merge.Apply(*existing, set, unset)
	if err := e.validator.Record(candidate.Fields(), validate.Strict); err != nil {
		return PatchOutcome{}, err
	}

	if err := e.checkUnique(ctx, candidate, changedPKFields(*existing, candidate)); err != nil {
		return PatchOutcome{}, err
	}

	return PatchOutcome{
		ExistingID: existing.ID,
		Set:        set,
		Unset:      unsetKeys(unset),
		Updated:    e.clock(),
	}, nil
}

// Patch validates and applies a partial edit to exactly one stored record.
func (e *Engine) Patch(ctx context.Context, req models.PatchRequest) (models.Record, error) {
	ctx, span := e.tracer.Start(ctx, "record.patch")
	defer span.End()

	updated, err := e.patch(ctx, req)
	if err != nil {
		e.reject(span, err)
		return models.Record{}, err
	}
	e.metrics.IncrementPatched()
	return updated, nil
}

func (e *Engine) patch(ctx context.Context, req models.PatchRequest) (models.Record, error) {
	outcome, err := e.ValidatePatch(ctx, req)
	if err != nil {
		return models.Record{}, err
	}

	updated, err := e.store.Update(ctx, store.Filter{ID: outcome.ExistingID}, store.Patch{
		Set:     outcome.Set,
		Unset:   outcome.Unset,
		Updated: outcome.Updated,
	})
	if err != nil {
		return models.Record{}, e.writeError("update", err)
	}
	if updated == nil {
		// The record vanished between validation and the write.
		return models.Record{}, e.internalError("update", errors.New("no document affected"))
	}
	return *updated, nil
}

// ValidateDelete resolves the selector to exactly one stored record and
// returns its identity.
func (e *Engine) ValidateDelete(ctx context.Context, sel models.Selector) (uuid.UUID, error) {
	existing, err := e.resolveSelector(ctx, sel)
	if err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

// Delete removes the single record the selector resolves to.
func (e *Engine) Delete(ctx context.Context, sel models.Selector) error {
	ctx, span := e.tracer.Start(ctx, "record.delete")
	defer span.End()

	id, err := e.ValidateDelete(ctx, sel)
	if err != nil {
		e.reject(span, err)
		return err
	}

	removed, err := e.store.Remove(ctx, store.Filter{ID: id})
	if err != nil {
		e.reject(span, err)
		return e.internalError("remove", err)
	}
	if removed != 1 {
		err := e.internalError("remove", errors.New("no document removed"))
		e.reject(span, err)
		return err
	}
	e.metrics.IncrementDeleted()
	return nil
}

// List returns every stored record.
func (e *Engine) List(ctx context.Context) ([]models.Record, error) {
	docs, err := e.store.Find(ctx, store.Filter{})
	if err != nil {
		return nil, e.internalError("find", err)
	}
	return docs, nil
}

// CheckEdit is the incremental edit check: the caller supplies the stored
// record's current PK values and the edited candidate. In strict mode a
// changed email or phone is re-checked against the store.
func (e *Engine) CheckEdit(ctx context.Context, req models.EditCheckRequest, mode validate.Mode) error {
	if req.Old.Email == "" {
		return dErrors.New(dErrors.CodeCompleteness, "old.email", "you should pass the old email value")
	}
	if req.Old.Phone == "" {
		return dErrors.New(dErrors.CodeCompleteness, "old.phone", "you should pass the old phone value")
	}
	if err := e.validator.Record(req.Upd, mode); err != nil {
		return err
	}
	if mode != validate.Strict {
		return nil
	}

	candidate := recordFrom(req.Upd)
	var changed []models.Field
	if req.Upd.Email != req.Old.Email {
		changed = append(changed, models.FieldEmail)
	}
	if req.Upd.Phone != req.Old.Phone {
		changed = append(changed, models.FieldPhone)
	}
	return e.checkUnique(ctx, candidate, changed)
}

func recordFrom(f models.RecordFields) models.Record {
	return models.Record{
		Name:    f.Name,
		Phone:   f.Phone,
		Email:   f.Email,
		Country: f.Country,
		State:   f.State,
		City:    f.City,
	}
}

func filterSet(set map[models.Field]string) map[models.Field]string {
	out := make(map[models.Field]string)
	for _, f := range models.SetFields {
		if value, ok := set[f]; ok {
			out[f] = value
		}
	}
	return out
}

func filterUnset(unset map[models.Field]bool) map[models.Field]bool {
	out := make(map[models.Field]bool)
	for _, f := range models.UnsetFields {
		if unset[f] {
			out[f] = true
		}
	}
	return out
}

func unsetKeys(unset map[models.Field]bool) []models.Field {
	var out []models.Field
	for _, f := range models.UnsetFields {
		if unset[f] {
			out = append(out, f)
		}
	}
	return out
}

func (e *Engine) reject(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	e.metrics.ObserveRejection(err)
}

// writeError translates a store write failure: a unique-index violation
// becomes the same Conflict class as a pre-check failure, anything else is
// an opaque internal error.
func (e *Engine) writeError(op string, err error) error {
	var dup *store.DuplicateKeyError
	if errors.As(err, &dup) {
		return dErrors.New(dErrors.CodeConflict, string(dup.Field), "value already exists")
	}
	return e.internalError(op, err)
}

func (e *Engine) internalError(op string, err error) error {
	e.log.Error("store failure", "op", op, "error", err)
	return dErrors.New(dErrors.CodeInternal, "", "internal error")
}
