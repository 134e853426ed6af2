package repository

import (
	"fmt"
	"strconv"
	"time"

	"github.com/atinyakov/LittleHelper/internal/common"
)

// decoder reads typed values out of a Record and remembers the first failure.
type decoder struct {
	table string
	rec   Record
	err   error
}

func (d *decoder) fail(col string, v any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s.%s has unexpected value %v (%T)", common.ErrStorage, d.table, col, v, v)
	}
}

func (d *decoder) str(col string) string {
	switch v := d.rec[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (d *decoder) integer(col string) int64 {
	switch v := d.rec[col].(type) {
	case nil:
		return 0
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			d.fail(col, v)
		}
		return n
	default:
		d.fail(col, v)
		return 0
	}
}

// boolean undoes the 0/1 storage representation.
func (d *decoder) boolean(col string) bool {
	if v, ok := d.rec[col].(string); ok {
		return boolFromText(v) == 1
	}
	return d.integer(col) != 0
}

func (d *decoder) timestamp(col string) time.Time {
	switch v := d.rec[col].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v.UTC()
	case string:
		t, err := ParseTime(v)
		if err != nil {
			if t, err = time.Parse(time.RFC3339Nano, v); err != nil {
				d.fail(col, v)
			}
		}
		return t.UTC()
	default:
		d.fail(col, v)
		return time.Time{}
	}
}
