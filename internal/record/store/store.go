// Package store defines the document-store contract the record engine
// consumes. Any backing engine works as long as it honors the filter
// semantics and enforces unique indexes on email and phone.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contactdir/internal/record/models"
	"contactdir/pkg/platform/sentinel"
)

// Filter selects stored records by primary-key fields. Set fields are
// combined with AND; the zero Filter matches every record.
type Filter struct {
	ID    uuid.UUID
	Email string
	Phone string
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return f.ID == uuid.Nil && f.Email == "" && f.Phone == ""
}

// Matches reports whether a record satisfies every set field of the filter.
func (f Filter) Matches(r models.Record) bool {
	if f.ID != uuid.Nil && r.ID != f.ID {
		return false
	}
	if f.Email != "" && r.Email != f.Email {
		return false
	}
	if f.Phone != "" && r.Phone != f.Phone {
		return false
	}
	return true
}

// Patch is a single-document update: Unset is applied before Set, and
// Updated stamps the record's updated timestamp. Upserts are never
// performed.
type Patch struct {
	Set     map[models.Field]string
	Unset   []models.Field
	Updated time.Time
}

// Store is the abstract contract over the backing document store. Insert and
// Update return sentinel.ErrConflict (wrapped in a DuplicateKeyError naming
// the index) when a unique index rejects the write.
type Store interface {
	Count(ctx context.Context, f Filter) (int, error)
	Find(ctx context.Context, f Filter) ([]models.Record, error)
	FindOne(ctx context.Context, f Filter) (*models.Record, error)
	Insert(ctx context.Context, r models.Record) (models.Record, error)
	Update(ctx context.Context, f Filter, p Patch) (*models.Record, error)
	Remove(ctx context.Context, f Filter) (int, error)
}

// DuplicateKeyError names the unique index that rejected a write. It wraps
// sentinel.ErrConflict so callers can match with errors.Is.
type DuplicateKeyError struct {
	Field models.Field
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on %s index", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	return sentinel.ErrConflict
}
