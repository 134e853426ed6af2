package repository

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/db"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Filter maps column names to expected values. Entries are ANDed.
type Filter map[string]any

// Sort is a caller-supplied (field, direction) pair. Recognized directions
// are asc/ascending/1 and desc/descending/-1, case-insensitive.
type Sort struct {
	Field     string
	Direction string
}

// Order is a resolved ORDER BY column.
type Order struct {
	Column string
	Desc   bool
}

// TimeLayout is the persisted timestamp form. Fixed precision keeps
// lexical order equal to chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// ParseTime parses a TimeLayout string.
func ParseTime(s string) (time.Time, error) { return time.Parse(TimeLayout, s) }

// resolveOrder applies the single-key sort rule.
func (t *Table) resolveOrder(s Sort) Order {
	if s.Field == "" || !t.Has(s.Field) {
		return t.DefaultSort
	}
	switch strings.ToLower(strings.TrimSpace(s.Direction)) {
	case "asc", "ascending", "1":
		return Order{Column: s.Field}
	case "desc", "descending", "-1":
		return Order{Column: s.Field, Desc: true}
	}
	return t.DefaultSort
}

func (t *Table) columnList(d db.Dialect) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.Quote(c)
	}
	return strings.Join(cols, ", ")
}

// whereClause emits one "col = ?" per filter key in lexical key order.
func (t *Table) whereClause(d db.Dialect, f Filter) (string, []any, error) {
	if err := t.checkColumns(f); err != nil {
		return "", nil, err
	}
	if len(f) == 0 {
		return "", nil, nil
	}
	keys := slices.Sorted(maps.Keys(f))
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v := f[k]
		if v == nil {
			clauses = append(clauses, d.Quote(k)+" IS NULL")
			continue
		}
		clauses = append(clauses, d.Quote(k)+" = ?")
		args = append(args, bindValue(t, k, v))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// selectQuery builds a filtered, ordered SELECT. limit <= 0 means no limit.
func (t *Table) selectQuery(d db.Dialect, f Filter, s Sort, limit int) (string, []any, error) {
	where, args, err := t.whereClause(d, f)
	if err != nil {
		return "", nil, err
	}
	order := t.resolveOrder(s)
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s",
		t.columnList(d), t.Name, where, d.Quote(order.Column), dir)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return d.Rebind(q), args, nil
}

// insertQuery inserts every allow-listed column present in rec.
func (t *Table) insertQuery(d db.Dialect, rec Record) (string, []any) {
	cols := make([]string, 0, len(rec))
	marks := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	for _, c := range t.Columns {
		v, ok := rec[c]
		if !ok {
			continue
		}
		cols = append(cols, d.Quote(c))
		marks = append(marks, "?")
		args = append(args, v)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return d.Rebind(q), args
}

// updateQuery builds the partial-update statement: one SET entry per
// mutable key in lexical order, then updatedAt, then the version bump.
// When expectVersion is non-nil the WHERE clause also pins the version.
func (t *Table) updateQuery(d db.Dialect, id string, fields Record, now string, expectVersion *int64) (string, []any, error) {
	if err := t.checkColumns(fields); err != nil {
		return "", nil, err
	}
	keys := slices.Sorted(maps.Keys(fields))
	sets := make([]string, 0, len(keys)+2)
	args := make([]any, 0, len(keys)+3)
	for _, k := range keys {
		if t.immutable(k) || k == ColUpdatedAt {
			continue
		}
		sets = append(sets, d.Quote(k)+" = ?")
		args = append(args, bindValue(t, k, fields[k]))
	}
	sets = append(sets, d.Quote(ColUpdatedAt)+" = ?")
	args = append(args, now)
	if t.VersionColumn != "" {
		v := d.Quote(t.VersionColumn)
		sets = append(sets, v+" = "+v+" + 1")
	}

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.Name, strings.Join(sets, ", "), d.Quote(ColID))
	args = append(args, id)
	if expectVersion != nil {
		if t.VersionColumn == "" {
			return "", nil, fmt.Errorf("%w: %s has no version column", common.ErrValidation, t.Name)
		}
		q += " AND " + d.Quote(t.VersionColumn) + " = ?"
		args = append(args, *expectVersion)
	}
	return d.Rebind(q), args, nil
}

// bindValue converts a Go value into its storage representation.
func bindValue(t *Table, col string, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return FormatTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return FormatTime(*x)
	case string:
		if t.isBool(col) {
			return boolFromText(x)
		}
		return x
	case int64:
		if t.isBool(col) && x != 0 {
			return int64(1)
		}
		return x
	case float64, []byte:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if t.isBool(col) && n != 0 {
			return int64(1)
		}
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.Bool:
		if rv.Bool() {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func boolFromText(s string) int64 {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return 1
	}
	return 0
}
