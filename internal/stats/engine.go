package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qlogstats/qlogstats/internal/callsign"
	"github.com/qlogstats/qlogstats/internal/model"
	"github.com/qlogstats/qlogstats/internal/query"
	"github.com/qlogstats/qlogstats/internal/store"
)

// ErrUnknownStatistic marks a lookup of an unregistered statistic id.
// This is a programming error, not a user-recoverable state.
var ErrUnknownStatistic = errors.New("unknown statistic")

// Engine runs statistic requests through one shared execution path:
// descriptor lookup, statement building, execution, post-processing.
type Engine struct {
	store    *store.Store
	registry *Registry
}

// NewEngine constructs an engine over an opened logbook store.
func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st, registry: NewRegistry()}
}

// Registry exposes the statistic registry for UI listings.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Store exposes the underlying logbook store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Run executes the statistic named by the request and returns its rows.
func (e *Engine) Run(ctx context.Context, req query.Request) (*model.ResultSet, error) {
	desc, ok := e.registry.Lookup(req.Statistic)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatistic, req.Statistic)
	}
	sqlText, params, err := query.Build(req, desc.View)
	if err != nil {
		return nil, err
	}
	rs, err := e.store.Query(ctx, sqlText, params, desc.Columns)
	if err != nil {
		return nil, fmt.Errorf("statistic %s: %w", desc.ID, err)
	}
	if desc.post != nil {
		rs = desc.post(rs)
	}
	return rs, nil
}

// DrillDown lists the contacts behind one row of a grouped statistic.
func (e *Engine) DrillDown(ctx context.Context, req query.Request, value string) (*model.ResultSet, error) {
	desc, ok := e.registry.Lookup(req.Statistic)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatistic, req.Statistic)
	}
	if desc.GroupField == "" {
		return nil, fmt.Errorf("statistic %s does not support drill-down", desc.ID)
	}
	cond := query.Condition{Field: desc.GroupField, Op: query.OpEqual, Values: []string{value}}
	merged := query.And(cond)
	if req.Conditions != nil && len(req.Conditions.Children) > 0 {
		merged.Children = append(merged.Children, query.Node{Group: req.Conditions})
	}
	detail := req
	detail.Conditions = merged
	return e.Custom(ctx, []string{"callsign", "start_time", "band", "mode", "country"}, detail)
}

// Search lists contacts whose callsign contains (or begins with) the term.
func (e *Engine) Search(ctx context.Context, term string, prefixOnly bool, req query.Request) (*model.ResultSet, error) {
	pattern := "%" + strings.ToUpper(term) + "%"
	if prefixOnly {
		pattern = strings.ToUpper(term) + "%"
	}
	cond := query.Condition{Field: "callsign", Op: query.OpLike, Values: []string{pattern}}
	merged := query.And(cond)
	if req.Conditions != nil && len(req.Conditions.Children) > 0 {
		merged.Children = append(merged.Children, query.Node{Group: req.Conditions})
	}
	search := req
	search.Conditions = merged
	return e.Custom(ctx, []string{"callsign", "start_time", "band", "mode", "country"}, search)
}

// Custom runs a row-listing query over allow-listed columns, used by
// saved queries and search.
func (e *Engine) Custom(ctx context.Context, columns []string, req query.Request) (*model.ResultSet, error) {
	sqlText, params, err := query.BuildSelect(columns, req)
	if err != nil {
		return nil, err
	}
	rs, err := e.store.Query(ctx, sqlText, params, query.SelectColumns(columns))
	if err != nil {
		return nil, fmt.Errorf("custom query: %w", err)
	}
	return rs, nil
}

// annotateSpecial appends a derived special-callsign label column to the
// callsign frequency view.
func annotateSpecial(rs *model.ResultSet) *model.ResultSet {
	out := &model.ResultSet{
		Columns: append(append([]model.Column(nil), rs.Columns...),
			model.Column{Key: "special", Label: "Special", Type: model.ColumnString}),
	}
	for _, row := range rs.Rows {
		cloned := cloneRow(row)
		call, _ := row["callsign"].(string)
		cloned["special"] = callsign.Classify(call).Reason.String()
		out.Rows = append(out.Rows, cloned)
	}
	return out
}

// filterSpecial keeps only contacts with special callsigns and appends
// the classification reason.
func filterSpecial(rs *model.ResultSet) *model.ResultSet {
	out := &model.ResultSet{
		Columns: append(append([]model.Column(nil), rs.Columns...),
			model.Column{Key: "reason", Label: "Reason", Type: model.ColumnString}),
	}
	for _, row := range rs.Rows {
		call, _ := row["callsign"].(string)
		c := callsign.Classify(call)
		if !c.Special {
			continue
		}
		cloned := cloneRow(row)
		cloned["reason"] = c.Reason.String()
		out.Rows = append(out.Rows, cloned)
	}
	return out
}

func cloneRow(row model.Row) model.Row {
	out := make(model.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}

// ChartPoint is one dimension/aggregate pair handed to chart consumers.
type ChartPoint struct {
	Label string
	Value float64
}

// ChartPoints extracts the plottable pairs of a chartable statistic's
// result set. Statistics without a chart dimension yield nil.
func ChartPoints(desc Descriptor, rs *model.ResultSet) []ChartPoint {
	if !desc.Chartable {
		return nil
	}
	points := make([]ChartPoint, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		points = append(points, ChartPoint{
			Label: scalarLabel(row[desc.ChartDim]),
			Value: scalarValue(row[desc.ChartValue]),
		})
	}
	return points
}

func scalarLabel(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func scalarValue(v any) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}
