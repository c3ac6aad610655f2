// Package postgres persists contact records in PostgreSQL. The unique
// indexes on email and phone are the authoritative backstop for the
// engine's pre-write uniqueness checks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"contactdir/internal/record/models"
	"contactdir/internal/record/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id      UUID PRIMARY KEY,
	name    TEXT NOT NULL,
	phone   TEXT NOT NULL,
	email   TEXT NOT NULL,
	country TEXT NOT NULL,
	state   TEXT NOT NULL DEFAULT '',
	city    TEXT NOT NULL DEFAULT '',
	created TIMESTAMPTZ NOT NULL,
	updated TIMESTAMPTZ NOT NULL,
	CONSTRAINT records_email_key UNIQUE (email),
	CONSTRAINT records_phone_key UNIQUE (phone)
)`

// PostgresStore is pure I/O; validation and uniqueness decisions belong to
// the record engine.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the records table and its unique constraints.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate records table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, f store.Filter) (int, error) {
	where, args := whereClause(f)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Find(ctx context.Context, f store.Filter) ([]models.Record, error) {
	where, args := whereClause(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, email, country, state, city, created, updated
		 FROM records`+where+` ORDER BY created, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindOne(ctx context.Context, f store.Filter) (*models.Record, error) {
	where, args := whereClause(f)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, email, country, state, city, created, updated
		 FROM records`+where+` ORDER BY created, id LIMIT 1`, args...)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find one record: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r models.Record) (models.Record, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, name, phone, email, country, state, city, created, updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Name, r.Phone, r.Email, r.Country, r.State, r.City, r.Created, r.Updated)
	if err != nil {
		if dup := duplicateKey(err); dup != nil {
			return models.Record{}, dup
		}
		return models.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return r, nil
}

// Update modifies at most one record matching the filter. Unset fields are
// cleared before set values are applied, so a key present in both ends up
// set.
func (s *PostgresStore) Update(ctx context.Context, f store.Filter, p store.Patch) (*models.Record, error) {
	assignments := []string{"updated = $1"}
	args := []any{p.Updated}

	for _, field := range p.Unset {
		if _, alsoSet := p.Set[field]; alsoSet {
			continue
		}
		switch field {
		case models.FieldState, models.FieldCity:
			assignments = append(assignments, fmt.Sprintf("%s = ''", field))
		}
	}
	for _, field := range models.SetFields {
		value, ok := p.Set[field]
		if !ok {
			continue
		}
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", field, len(args)))
	}

	where, whereArgs := whereClauseFrom(f, len(args))
	args = append(args, whereArgs...)

	row := s.db.QueryRowContext(ctx,
		`UPDATE records SET `+strings.Join(assignments, ", ")+
			` WHERE id = (SELECT id FROM records`+where+` ORDER BY created, id LIMIT 1)
			 RETURNING id, name, phone, email, country, state, city, created, updated`,
		args...)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if dup := duplicateKey(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("update record: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) Remove(ctx context.Context, f store.Filter) (int, error) {
	where, args := whereClause(f)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = (SELECT id FROM records`+where+` ORDER BY created, id LIMIT 1)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("remove record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove record affected rows: %w", err)
	}
	return int(affected), nil
}

func whereClause(f store.Filter) (string, []any) {
	return whereClauseFrom(f, 0)
}

func whereClauseFrom(f store.Filter, offset int) (string, []any) {
	var conds []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, offset+len(args)))
	}
	if f.ID != uuid.Nil {
		add("id", f.ID)
	}
	if f.Email != "" {
		add("email", f.Email)
	}
	if f.Phone != "" {
		add("phone", f.Phone)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.Record, error) {
	var r models.Record
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &r.Email, &r.Country, &r.State, &r.City, &r.Created, &r.Updated)
	return r, err
}

// duplicateKey translates a unique-violation (SQLSTATE 23505) into the
// store's DuplicateKeyError, naming the violated index.
func duplicateKey(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	field := models.FieldEmail
	if strings.Contains(pgErr.ConstraintName, "phone") {
		field = models.FieldPhone
	}
	return &store.DuplicateKeyError{Field: field}
}
