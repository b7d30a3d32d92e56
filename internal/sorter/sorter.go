// Package sorter reorders result sets by a chosen column without
// touching the database, so already fetched statistics can be
// re-sorted interactively.
package sorter

import (
	"sort"
	"strconv"
	"strings"

	"github.com/qlogstats/qlogstats/internal/model"
)

// Sort returns a copy of rs ordered by the column named in state.
// Rows compare according to the column's declared type: string values
// that parse as numbers compare numerically, all other strings compare
// case-insensitively. The input is never modified; equal rows keep
// their relative order.
func Sort(rs *model.ResultSet, state model.SortState) *model.ResultSet {
	if rs == nil {
		return nil
	}
	out := &model.ResultSet{
		Columns: rs.Columns,
		Rows:    make([]model.Row, len(rs.Rows)),
	}
	copy(out.Rows, rs.Rows)
	if state.Column == "" {
		return out
	}
	col, ok := rs.Column(state.Column)
	if !ok {
		return out
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		less := compare(out.Rows[i][col.Key], out.Rows[j][col.Key], col.Type) < 0
		if state.Descending {
			return compare(out.Rows[j][col.Key], out.Rows[i][col.Key], col.Type) < 0
		}
		return less
	})
	return out
}

// compare orders two cell values of the same declared type. It returns
// a negative value when a sorts before b, zero when they are equal.
func compare(a, b any, t model.ColumnType) int {
	switch t {
	case model.ColumnInteger:
		return compareFloat(numeric(a), numeric(b))
	case model.ColumnFloat:
		return compareFloat(numeric(a), numeric(b))
	default:
		as, aNum := cell(a)
		bs, bNum := cell(b)
		if aNum.ok && bNum.ok {
			return compareFloat(aNum.v, bNum.v)
		}
		// Ordinal comparison on upper-cased strings, no locale tables.
		return strings.Compare(strings.ToUpper(as), strings.ToUpper(bs))
	}
}

type parsed struct {
	v  float64
	ok bool
}

// cell renders a value as its string form and notes whether that
// string is purely numeric.
func cell(v any) (string, parsed) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return x, parsed{v: f, ok: err == nil && strings.TrimSpace(x) != ""}
	case int64:
		return strconv.FormatInt(x, 10), parsed{v: float64(x), ok: true}
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), parsed{v: x, ok: true}
	case nil:
		return "", parsed{}
	default:
		return "", parsed{}
	}
}

func numeric(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
