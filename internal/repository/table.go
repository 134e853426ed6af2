package repository

import (
	"fmt"
	"slices"

	"github.com/atinyakov/LittleHelper/internal/common"
)

// Column names shared by every table.
const (
	ColID        = "id"
	ColCreatedAt = "createdAt"
	ColUpdatedAt = "updatedAt"
	ColUserID    = "userId"
)

// Table describes one relational table: the only column names that may
// appear in generated SQL, and how its values are stored.
type Table struct {
	// Name is the SQL table name.
	Name string
	// Columns is the allow-list of column names, in schema order.
	Columns []string
	// Required columns must be present and non-empty on Create.
	Required []string
	// Immutable columns are never part of a SET clause.
	Immutable []string
	// Bools are stored as 0/1 integers.
	Bools []string
	// Defaults fill columns absent from a Create call.
	Defaults map[string]any
	// DefaultSort applies when the caller's sort is absent or unrecognized.
	DefaultSort Order
	// VersionColumn, when set, is incremented on every update.
	VersionColumn string
	// OwnerColumn and SearchColumns enable Search.
	OwnerColumn   string
	SearchColumns []string
}

// Users is the account table.
var Users = &Table{
	Name:        "users",
	Columns:     []string{ColID, "username", "email", "password", "name", "colorProfile", ColCreatedAt, ColUpdatedAt},
	Required:    []string{"username", "email", "password"},
	Immutable:   []string{ColID, ColCreatedAt},
	Defaults:    map[string]any{"name": "", "colorProfile": "blue"},
	DefaultSort: Order{Column: ColCreatedAt, Desc: true},
}

// Notes is the note table.
var Notes = &Table{
	Name:          "notes",
	Columns:       []string{ColID, ColUserID, "title", "content", "isPublic", ColCreatedAt, ColUpdatedAt},
	Required:      []string{ColUserID, "title", "content"},
	Immutable:     []string{ColID, ColUserID, ColCreatedAt},
	Bools:         []string{"isPublic"},
	Defaults:      map[string]any{"isPublic": int64(0)},
	DefaultSort:   Order{Column: ColUpdatedAt, Desc: true},
	OwnerColumn:   ColUserID,
	SearchColumns: []string{"title", "content"},
}

// Tasks is the task table.
var Tasks = &Table{
	Name: "tasks",
	Columns: []string{ColID, ColUserID, "title", "description", "status", "completed",
		"timeEntries", "totalTime", "version", ColCreatedAt, ColUpdatedAt},
	Required:  []string{ColUserID, "title"},
	Immutable: []string{ColID, ColUserID, ColCreatedAt, "version"},
	Bools:     []string{"completed"},
	Defaults: map[string]any{
		"description": "",
		"status":      "not_started",
		"completed":   int64(0),
		"timeEntries": "[]",
		"totalTime":   int64(0),
	},
	DefaultSort:   Order{Column: ColCreatedAt, Desc: true},
	VersionColumn: "version",
	OwnerColumn:   ColUserID,
}

// Has reports whether col is in the allow-list.
func (t *Table) Has(col string) bool { return slices.Contains(t.Columns, col) }

func (t *Table) immutable(col string) bool { return slices.Contains(t.Immutable, col) }

func (t *Table) isBool(col string) bool { return slices.Contains(t.Bools, col) }

// checkColumns rejects any key outside the allow-list.
func (t *Table) checkColumns(fields map[string]any) error {
	for k := range fields {
		if !t.Has(k) {
			return fmt.Errorf("%w: unknown field %q for %s", common.ErrValidation, k, t.Name)
		}
	}
	return nil
}
