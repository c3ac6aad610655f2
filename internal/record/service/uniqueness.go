package service

import (
	"context"

	"contactdir/internal/record/models"
	"contactdir/internal/record/store"
	dErrors "contactdir/pkg/domain-errors"
)

// resolveSelector finds the single stored record a selector points at. Zero
// matches, multiple matches, and an empty selector are each distinct
// rejections.
func (e *Engine) resolveSelector(ctx context.Context, sel models.Selector) (*models.Record, error) {
	if sel.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeSelectorEmpty, "selector",
			"you must supply at least one identifying field")
	}

	docs, err := e.store.Find(ctx, store.Filter{ID: sel.ID, Email: sel.Email, Phone: sel.Phone})
	if err != nil {
		return nil, e.internalError("find", err)
	}
	switch len(docs) {
	case 0:
		return nil, dErrors.New(dErrors.CodeSelectorNotFound, "selector",
			"no record matches the selector")
	case 1:
		return &docs[0], nil
	default:
		return nil, dErrors.New(dErrors.CodeSelectorAmbiguous, "selector",
			"selector matches more than one record")
	}
}

// checkUnique rejects with Conflict when any of the given candidate PK
// fields is non-empty and already stored. The caller decides which fields to
// check: all of them for create, only changed ones for patch.
func (e *Engine) checkUnique(ctx context.Context, candidate models.Record, fields []models.Field) error {
	for _, field := range fields {
		value := candidate.Value(field)
		if value == "" {
			continue
		}

		var filter store.Filter
		switch field {
		case models.FieldEmail:
			filter.Email = value
		case models.FieldPhone:
			filter.Phone = value
		default:
			continue
		}

		count, err := e.store.Count(ctx, filter)
		if err != nil {
			return e.internalError("count", err)
		}
		if count > 0 {
			return dErrors.New(dErrors.CodeConflict, string(field), "value already exists")
		}
	}
	return nil
}

// changedPKFields returns the PK fields whose value differs between the
// existing record and the merged candidate. Unchanged values are trusted
// from the resolved record and skipped by the uniqueness guard.
func changedPKFields(existing, candidate models.Record) []models.Field {
	var out []models.Field
	for _, field := range []models.Field{models.FieldEmail, models.FieldPhone} {
		if existing.Value(field) != candidate.Value(field) {
			out = append(out, field)
		}
	}
	return out
}
