// Package repository implements the record store: a document-style
// find/create/update/delete API over relational tables, and the typed
// account, note and task stores built on it.
//
// Every column name that reaches SQL comes from a Table allow-list and
// every value is bound as a parameter.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/db"
	"github.com/google/uuid"
)

// Store executes generic record operations against one connection or transaction.
type Store struct {
	db      db.DBTX
	dialect db.Dialect
	clock   *clock
	newID   func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock.now = now }
}

// WithIDGenerator replaces the uuid v4 identifier source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a Store bound to conn.
func NewStore(conn db.DBTX, dialect db.Dialect, opts ...Option) *Store {
	s := &Store{
		db:      conn,
		dialect: dialect,
		clock:   &clock{now: time.Now},
		newID:   func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithTx returns a Store that runs on tx and shares this Store's clock.
func (s *Store) WithTx(tx db.DBTX) *Store {
	cp := *s
	cp.db = tx
	return &cp
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() db.Dialect { return s.dialect }

// FindByID returns the row with the given id. A missing row is reported
// as ok == false with a nil error.
func (s *Store) FindByID(ctx context.Context, t *Table, id string) (Record, bool, error) {
	recs, err := s.find(ctx, t, Filter{ColID: id}, Sort{}, 1)
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0], true, nil
}

// Find returns every row matching all filter entries, ordered by sort.
func (s *Store) Find(ctx context.Context, t *Table, f Filter, sort Sort) ([]Record, error) {
	return s.find(ctx, t, f, sort, 0)
}

// FindOne returns the first row matching f in the table's default order.
func (s *Store) FindOne(ctx context.Context, t *Table, f Filter) (Record, bool, error) {
	recs, err := s.find(ctx, t, f, Sort{}, 1)
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0], true, nil
}

// List returns up to limit rows in default order.
func (s *Store) List(ctx context.Context, t *Table, limit int) ([]Record, error) {
	return s.find(ctx, t, nil, Sort{}, limit)
}

func (s *Store) find(ctx context.Context, t *Table, f Filter, sort Sort, limit int) ([]Record, error) {
	q, args, err := t.selectQuery(s.dialect, f, sort, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select from %s: %w", common.ErrStorage, t.Name, err)
	}
	defer rows.Close()
	return scanRecords(t, rows)
}

// Count returns the number of rows in t.
func (s *Store) Count(ctx context.Context, t *Table) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", common.ErrStorage, t.Name, err)
	}
	return n, nil
}

// Create inserts fields as a new row. The store assigns id, createdAt and
// updatedAt (equal on creation) and, for versioned tables, version 1;
// caller values for those columns are ignored. Unknown fields are rejected.
func (s *Store) Create(ctx context.Context, t *Table, fields Record) (Record, error) {
	if err := t.checkColumns(fields); err != nil {
		return nil, err
	}
	for _, col := range t.Required {
		if isBlank(fields[col]) {
			return nil, fmt.Errorf("%w: %s is required", common.ErrValidation, col)
		}
	}

	now := FormatTime(s.clock.Next())
	rec := make(Record, len(t.Columns))
	for col, v := range t.Defaults {
		rec[col] = v
	}
	for col, v := range fields {
		switch col {
		case ColID, ColCreatedAt, ColUpdatedAt, t.VersionColumn:
			continue
		}
		rec[col] = bindValue(t, col, v)
	}
	rec[ColID] = s.newID()
	rec[ColCreatedAt] = now
	rec[ColUpdatedAt] = now
	if t.VersionColumn != "" {
		rec[t.VersionColumn] = int64(1)
	}

	q, args := t.insertQuery(s.dialect, rec)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s record already exists", common.ErrConflict, t.Name)
		}
		return nil, fmt.Errorf("%w: insert into %s: %w", common.ErrStorage, t.Name, err)
	}
	for _, col := range t.Columns {
		if _, ok := rec[col]; !ok {
			rec[col] = nil
		}
	}
	return rec, nil
}

// Update applies a partial update and returns the re-read row. Immutable
// columns in fields are dropped; updatedAt is always set, so an empty
// fields map still advances it. A missing id yields ok == false.
func (s *Store) Update(ctx context.Context, t *Table, id string, fields Record) (Record, bool, error) {
	q, args, err := t.updateQuery(s.dialect, id, fields, FormatTime(s.clock.Next()), nil)
	if err != nil {
		return nil, false, err
	}
	n, err := s.exec(ctx, t, "update", q, args)
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	return s.FindByID(ctx, t, id)
}

// CompareAndUpdate is Update guarded by the table's version column. When the
// stored version differs it fails with ErrConflict; a missing id fails with
// ErrNotFound.
func (s *Store) CompareAndUpdate(ctx context.Context, t *Table, id string, version int64, fields Record) (Record, error) {
	q, args, err := t.updateQuery(s.dialect, id, fields, FormatTime(s.clock.Next()), &version)
	if err != nil {
		return nil, err
	}
	n, err := s.exec(ctx, t, "update", q, args)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		_, ok, err := s.FindByID(ctx, t, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s %s: %w", t.Name, id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %s %s was modified concurrently", common.ErrConflict, t.Name, id)
	}
	rec, ok, err := s.FindByID(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", t.Name, id, common.ErrNotFound)
	}
	return rec, nil
}

// Delete removes the row with id and reports whether one existed.
func (s *Store) Delete(ctx context.Context, t *Table, id string) (bool, error) {
	q := s.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, s.dialect.Quote(ColID)))
	n, err := s.exec(ctx, t, "delete", q, []any{id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every row of t and returns the count.
func (s *Store) DeleteAll(ctx context.Context, t *Table) (int64, error) {
	return s.exec(ctx, t, "delete", "DELETE FROM "+t.Name, nil)
}

// Search returns the owner's rows whose search columns contain text,
// case-insensitively, most recently updated first.
func (s *Store) Search(ctx context.Context, t *Table, ownerID, text string) ([]Record, error) {
	if t.OwnerColumn == "" || len(t.SearchColumns) == 0 {
		return nil, fmt.Errorf("%w: %s is not searchable", common.ErrValidation, t.Name)
	}
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"

	likes := make([]string, len(t.SearchColumns))
	args := []any{ownerID}
	for i, c := range t.SearchColumns {
		likes[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, s.dialect.Quote(c))
		args = append(args, pattern)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND (%s) ORDER BY %s DESC",
		t.columnList(s.dialect), t.Name, s.dialect.Quote(t.OwnerColumn),
		strings.Join(likes, " OR "), s.dialect.Quote(ColUpdatedAt))

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", common.ErrStorage, t.Name, err)
	}
	defer rows.Close()
	return scanRecords(t, rows)
}

func (s *Store) exec(ctx context.Context, t *Table, op, q string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s %s violates a unique constraint", common.ErrConflict, op, t.Name)
		}
		return 0, fmt.Errorf("%w: %s %s: %w", common.ErrStorage, op, t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s rows affected: %w", common.ErrStorage, op, t.Name, err)
	}
	return n, nil
}

func scanRecords(t *Table, rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		vals := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", common.ErrStorage, t.Name, err)
		}
		rec := make(Record, len(t.Columns))
		for i, c := range t.Columns {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrStorage, t.Name, err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// clock hands out strictly increasing millisecond timestamps.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// Next returns the current instant truncated to milliseconds, bumped past
// the previously issued one on ties.
func (c *clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
