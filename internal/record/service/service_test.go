package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactdir/internal/geo"
	"contactdir/internal/record/models"
	"contactdir/internal/record/store"
	"contactdir/internal/record/store/memory"
	"contactdir/internal/record/validate"
	dErrors "contactdir/pkg/domain-errors"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *memory.InMemory) {
	t.Helper()
	catalog, err := geo.Load()
	require.NoError(t, err)
	st := memory.New()
	engine := New(st, validate.New(catalog), WithClock(func() time.Time { return fixedNow }))
	return engine, st
}

func createRequest() models.CreateRequest {
	return models.CreateRequest{
		RecordFields: models.RecordFields{
			Name:    "John",
			Phone:   "+16102347566",
			Email:   "j@mail.com",
			Country: "US",
			State:   "FL",
		},
		EmailConfirmation: "j@mail.com",
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid record accepted with equal timestamps", func(t *testing.T) {
		engine, _ := newEngine(t)
		stored, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, stored.ID)
		assert.Equal(t, fixedNow, stored.Created)
		assert.Equal(t, fixedNow, stored.Updated)
		assert.Equal(t, "FL", stored.State)
	})

	t.Run("same email rejected with conflict", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		dup := createRequest()
		dup.Phone = "+16105551234"
		_, err = engine.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "email", dErrors.PathOf(err))
	})

	t.Run("same phone rejected with conflict", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		dup := createRequest()
		dup.Email = "other@mail.com"
		dup.EmailConfirmation = "other@mail.com"
		_, err = engine.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "phone", dErrors.PathOf(err))
	})

	t.Run("unknown country rejected as reference error", func(t *testing.T) {
		engine, _ := newEngine(t)
		req := createRequest()
		req.Country = "ZZ"
		req.State = ""
		_, err := engine.Create(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeReference))
		assert.Equal(t, "country", dErrors.PathOf(err))
	})

	t.Run("email confirmation must match", func(t *testing.T) {
		engine, _ := newEngine(t)
		req := createRequest()
		req.EmailConfirmation = "other@mail.com"
		_, err := engine.Create(ctx, req)
		require.Error(t, err)
		assert.Equal(t, "email_confirmation", dErrors.PathOf(err))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFormat))
	})

	t.Run("email confirmation required in strict mode", func(t *testing.T) {
		engine, _ := newEngine(t)
		req := createRequest()
		req.EmailConfirmation = ""
		_, err := engine.Create(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCompleteness))
		assert.Equal(t, "email_confirmation", dErrors.PathOf(err))
	})

	t.Run("confirmation is never persisted", func(t *testing.T) {
		engine, st := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		docs, err := st.Find(ctx, store.Filter{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "j@mail.com", docs[0].Email)
	})
}

func TestPatch(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*Engine, models.Record) {
		t.Helper()
		engine, _ := newEngine(t)
		stored, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)
		return engine, stored
	}

	t.Run("set state and unset city on a record without city", func(t *testing.T) {
		engine, _ := seed(t)
		updated, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "j@mail.com"},
			Set:      map[models.Field]string{models.FieldState: "GA"},
			Unset:    map[models.Field]bool{models.FieldCity: true},
		})
		require.NoError(t, err)
		assert.Equal(t, "GA", updated.State)
		assert.Empty(t, updated.City)
		assert.Equal(t, fixedNow, updated.Updated)
		assert.Equal(t, fixedNow, updated.Created)
	})

	t.Run("merged candidate validated in full strict mode", func(t *testing.T) {
		engine, _ := seed(t)
		// Unsetting the state alone leaves a subdivided country without one.
		_, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "j@mail.com"},
			Unset:    map[models.Field]bool{models.FieldState: true},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCompleteness))
		assert.Equal(t, "state", dErrors.PathOf(err))
	})

	t.Run("untouched phone is re-validated against a new country", func(t *testing.T) {
		engine, _ := seed(t)
		_, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "j@mail.com"},
			Set:      map[models.Field]string{models.FieldCountry: "CA"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRegionMismatch))
		assert.Equal(t, "phone", dErrors.PathOf(err))
	})

	t.Run("unchanged PK fields are not re-checked", func(t *testing.T) {
		engine, _ := seed(t)
		// A name-only patch keeps email and phone equal to their own stored
		// values; re-checking them would self-conflict.
		updated, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "j@mail.com"},
			Set:      map[models.Field]string{models.FieldName: "Johnny"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Johnny", updated.Name)
	})

	t.Run("changing email to a taken value conflicts", func(t *testing.T) {
		engine, _ := seed(t)
		other := createRequest()
		other.Email = "taken@mail.com"
		other.EmailConfirmation = "taken@mail.com"
		other.Phone = "+16105551234"
		_, err := engine.Create(ctx, other)
		require.NoError(t, err)

		_, err = engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "j@mail.com"},
			Set:      map[models.Field]string{models.FieldEmail: "taken@mail.com"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "email", dErrors.PathOf(err))
	})

	t.Run("empty selector rejected", func(t *testing.T) {
		engine, _ := seed(t)
		_, err := engine.Patch(ctx, models.PatchRequest{
			Set: map[models.Field]string{models.FieldName: "Johnny"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSelectorEmpty))
	})

	t.Run("unresolved selector rejected", func(t *testing.T) {
		engine, _ := seed(t)
		_, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "nobody@mail.com"},
			Set:      map[models.Field]string{models.FieldName: "Johnny"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSelectorNotFound))
	})

	t.Run("disallowed set and unset keys are ignored", func(t *testing.T) {
		engine, stored := seed(t)
		updated, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{ID: stored.ID},
			Set:      map[models.Field]string{models.FieldName: "Johnny", models.FieldID: "override"},
			Unset:    map[models.Field]bool{models.FieldEmail: true},
		})
		require.NoError(t, err)
		assert.Equal(t, stored.ID, updated.ID)
		assert.Equal(t, stored.Email, updated.Email)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("empty selector rejected", func(t *testing.T) {
		engine, _ := newEngine(t)
		err := engine.Delete(ctx, models.Selector{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSelectorEmpty))
		assert.Equal(t, "selector", dErrors.PathOf(err))
	})

	t.Run("removes exactly the resolved record", func(t *testing.T) {
		engine, st := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		require.NoError(t, engine.Delete(ctx, models.Selector{Email: "j@mail.com"}))

		count, err := st.Count(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("unresolved selector rejected", func(t *testing.T) {
		engine, _ := newEngine(t)
		err := engine.Delete(ctx, models.Selector{Email: "nobody@mail.com"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSelectorNotFound))
	})
}

func TestCheckCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("lenient skips uniqueness and presence", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		err = engine.CheckCreate(ctx, models.CreateRequest{
			RecordFields: models.RecordFields{Email: "j@mail.com"},
		}, validate.Lenient)
		assert.NoError(t, err)
	})

	t.Run("strict re-checks stored PK values", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		req := createRequest()
		req.Phone = "+16105551234"
		err = engine.CheckCreate(ctx, req, validate.Strict)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "email", dErrors.PathOf(err))
	})
}

func TestCheckEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("old PK values are required", func(t *testing.T) {
		engine, _ := newEngine(t)
		var req models.EditCheckRequest
		req.Old.Phone = "+16102347566"
		err := engine.CheckEdit(ctx, req, validate.Lenient)
		require.Error(t, err)
		assert.Equal(t, "old.email", dErrors.PathOf(err))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCompleteness))
	})

	t.Run("unchanged email is trusted", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		var req models.EditCheckRequest
		req.Old.Email = "j@mail.com"
		req.Old.Phone = "+16102347566"
		req.Upd = createRequest().RecordFields
		err = engine.CheckEdit(ctx, req, validate.Strict)
		assert.NoError(t, err)
	})

	t.Run("changed email conflicting with another record", func(t *testing.T) {
		engine, _ := newEngine(t)
		_, err := engine.Create(ctx, createRequest())
		require.NoError(t, err)

		other := createRequest()
		other.Email = "taken@mail.com"
		other.EmailConfirmation = "taken@mail.com"
		other.Phone = "+16105551234"
		_, err = engine.Create(ctx, other)
		require.NoError(t, err)

		var req models.EditCheckRequest
		req.Old.Email = "j@mail.com"
		req.Old.Phone = "+16102347566"
		req.Upd = createRequest().RecordFields
		req.Upd.Email = "taken@mail.com"
		err = engine.CheckEdit(ctx, req, validate.Strict)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "email", dErrors.PathOf(err))
	})
}

// multiMatchStore reports several records for any filter, standing in for a
// backing store whose unique indexes have been lost or misconfigured.
type multiMatchStore struct {
	*memory.InMemory
}

func (s *multiMatchStore) Find(_ context.Context, _ store.Filter) ([]models.Record, error) {
	return []models.Record{
		{ID: uuid.New(), Email: "a@mail.com"},
		{ID: uuid.New(), Email: "a@mail.com"},
	}, nil
}

func TestSelectorAmbiguity(t *testing.T) {
	ctx := context.Background()
	catalog, err := geo.Load()
	require.NoError(t, err)
	engine := New(&multiMatchStore{InMemory: memory.New()}, validate.New(catalog))

	t.Run("patch rejects a selector matching several records", func(t *testing.T) {
		_, err := engine.Patch(ctx, models.PatchRequest{
			Selector: models.Selector{Email: "a@mail.com"},
			Set:      map[models.Field]string{models.FieldName: "Johnny"},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSelectorAmbiguous))
		assert.Equal(t, "selector", dErrors.PathOf(err))
	})

	t.Run("delete rejects a selector matching several records", func(t *testing.T) {
		err := engine.Delete(ctx, models.Selector{Email: "a@mail.com"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSelectorAmbiguous))
		assert.Equal(t, "selector", dErrors.PathOf(err))
	})
}

// failingStore wraps the in-memory store to simulate infrastructure faults.
type failingStore struct {
	*memory.InMemory
	insertErr error
	countErr  error
}

func (s *failingStore) Insert(ctx context.Context, r models.Record) (models.Record, error) {
	if s.insertErr != nil {
		return models.Record{}, s.insertErr
	}
	return s.InMemory.Insert(ctx, r)
}

func (s *failingStore) Count(ctx context.Context, f store.Filter) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.InMemory.Count(ctx, f)
}

func TestStoreFailureTranslation(t *testing.T) {
	ctx := context.Background()
	catalog, err := geo.Load()
	require.NoError(t, err)

	t.Run("unique index violation at write time becomes Conflict", func(t *testing.T) {
		st := &failingStore{
			InMemory:  memory.New(),
			insertErr: &store.DuplicateKeyError{Field: models.FieldPhone},
		}
		engine := New(st, validate.New(catalog))

		_, err := engine.Create(ctx, createRequest())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "phone", dErrors.PathOf(err))
	})

	t.Run("unexpected store failure becomes opaque internal error", func(t *testing.T) {
		st := &failingStore{
			InMemory: memory.New(),
			countErr: errors.New("connection reset by peer"),
		}
		engine := New(st, validate.New(catalog))

		_, err := engine.Create(ctx, createRequest())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
		assert.NotContains(t, err.Error(), "connection reset")
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t)

	docs, err := engine.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = engine.Create(ctx, createRequest())
	require.NoError(t, err)

	docs, err = engine.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
