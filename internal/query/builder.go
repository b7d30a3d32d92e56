package query

import (
	"fmt"
	"strings"

	"github.com/qlogstats/qlogstats/internal/model"
)

// Request carries everything a single statistic run needs: the statistic
// id, the active date range, the exact-match field filters and an
// optional user-authored condition tree (AND-combined with the rest).
type Request struct {
	Statistic  string
	Dates      model.DateRange
	Filters    model.Filters
	Conditions *Group
}

// View describes the fixed SQL shape of one statistic: the select list,
// base restrictions, grouping and default ordering. Statements are
// assembled from a view plus the per-request filters; user input only
// ever lands in bound parameters.
type View struct {
	Select   string
	Where    []string
	GroupBy  string
	OrderBy  string
	Limit    int
	DateOnly bool // compare DATE(start_time) instead of the raw timestamp
}

// Build assembles the complete parameterized statement for a request
// against a statistic view. The date range is validated, never swapped.
func Build(req Request, view View) (string, []any, error) {
	if err := req.Dates.Validate(); err != nil {
		return "", nil, err
	}

	clauses := []string{"1=1"}
	clauses = append(clauses, view.Where...)
	var params []any

	dateFrag, dateParams := dateRangeFragment(req.Dates, view.DateOnly)
	if dateFrag != "" {
		clauses = append(clauses, dateFrag)
		params = append(params, dateParams...)
	}
	if req.Filters.Band != "" {
		clauses = append(clauses, "band = ?")
		params = append(params, req.Filters.Band)
	}
	if req.Filters.Mode != "" {
		clauses = append(clauses, "mode = ?")
		params = append(params, req.Filters.Mode)
	}
	if req.Filters.Country != "" {
		clauses = append(clauses, "country = ?")
		params = append(params, req.Filters.Country)
	}
	if req.Conditions != nil && len(req.Conditions.Children) > 0 {
		frag, condParams, err := req.Conditions.Fragment()
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "("+frag+")")
		params = append(params, condParams...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM contacts WHERE %s", view.Select, strings.Join(clauses, " AND "))
	if view.GroupBy != "" {
		fmt.Fprintf(&b, " GROUP BY %s", view.GroupBy)
	}
	if view.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", view.OrderBy)
	}
	if view.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", view.Limit)
	}
	return b.String(), params, nil
}

// BuildSelect assembles a row-listing statement projecting the given
// allow-listed columns, for saved queries and callsign search. start_time
// is expanded into separate date and time columns for display.
func BuildSelect(columns []string, req Request) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: no columns selected", ErrInvalidCondition)
	}
	sel := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if _, ok := Fields[col]; !ok {
			return "", nil, fmt.Errorf("%w: unknown column %q", ErrInvalidCondition, col)
		}
		if col == "start_time" {
			sel = append(sel, "DATE(start_time) AS date", "TIME(start_time) AS time")
			continue
		}
		sel = append(sel, col)
	}
	view := View{
		Select:   strings.Join(sel, ", "),
		OrderBy:  "start_time DESC",
		DateOnly: true,
	}
	return Build(req, view)
}

// SelectColumns returns the result column metadata matching BuildSelect's
// projection order for the given column keys.
func SelectColumns(columns []string) []model.Column {
	out := make([]model.Column, 0, len(columns)+1)
	for _, col := range columns {
		if col == "start_time" {
			out = append(out,
				model.Column{Key: "date", Label: "Date", Type: model.ColumnDate},
				model.Column{Key: "time", Label: "Time", Type: model.ColumnString},
			)
			continue
		}
		label := Fields[col]
		if label == "" {
			label = col
		}
		typ := model.ColumnString
		switch col {
		case "freq", "tx_pwr":
			typ = model.ColumnFloat
		case "dxcc", "cqz", "ituz", "k_index", "a_index", "sfi":
			typ = model.ColumnInteger
		case "qsl_sdate", "qsl_rdate":
			typ = model.ColumnDate
		}
		out = append(out, model.Column{Key: col, Label: label, Type: typ})
	}
	return out
}

// dateRangeFragment renders the date restriction. A closed range becomes
// BETWEEN; open ends become one-sided comparisons. When comparing the raw
// timestamp the upper bound is extended to the end of the day.
func dateRangeFragment(r model.DateRange, dateOnly bool) (string, []any) {
	field := "start_time"
	if dateOnly {
		field = "DATE(start_time)"
	}
	fromVal := func() string { return r.From.Format("2006-01-02") }
	toVal := func() string {
		if dateOnly {
			return r.To.Format("2006-01-02")
		}
		return r.To.Format("2006-01-02") + " 23:59:59"
	}
	switch {
	case r.From != nil && r.To != nil:
		return field + " BETWEEN ? AND ?", []any{fromVal(), toVal()}
	case r.From != nil:
		return field + " >= ?", []any{fromVal()}
	case r.To != nil:
		return field + " <= ?", []any{toVal()}
	default:
		return "", nil
	}
}
