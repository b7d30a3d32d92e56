// Package query builds parameterized SQL statements from filter trees.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCondition marks a malformed user-authored filter. It is
// reported before any statement reaches the store.
var ErrInvalidCondition = errors.New("invalid condition")

// Operator is a comparison operator of a condition.
type Operator string

// Supported condition operators.
const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "LIKE"
	OpBetween      Operator = "BETWEEN"
)

var operators = map[Operator]struct{}{
	OpEqual:        {},
	OpNotEqual:     {},
	OpLess:         {},
	OpLessEqual:    {},
	OpGreater:      {},
	OpGreaterEqual: {},
	OpLike:         {},
	OpBetween:      {},
}

// Combinator joins the children of a condition group.
type Combinator string

// Supported group combinators.
const (
	CombineAnd Combinator = "AND"
	CombineOr  Combinator = "OR"
)

// Fields is the allow-list of queryable contacts columns. Only these names
// may appear in user-authored conditions or column projections; values are
// always bound as parameters, so this list is the injection boundary.
var Fields = map[string]string{
	"callsign":      "Callsign",
	"start_time":    "Date/Time",
	"band":          "Band",
	"mode":          "Mode",
	"country":       "Country",
	"rst_sent":      "RST sent",
	"rst_rcvd":      "RST received",
	"name":          "Name",
	"qth":           "QTH",
	"gridsquare":    "Gridsquare",
	"comment":       "Comment",
	"freq":          "Frequency",
	"tx_pwr":        "TX power",
	"dxcc":          "DXCC",
	"cont":          "Continent",
	"cqz":           "CQ zone",
	"ituz":          "ITU zone",
	"k_index":       "K-index",
	"a_index":       "A-index",
	"sfi":           "SFI",
	"qsl_sent":      "QSL sent",
	"qsl_rcvd":      "QSL received",
	"qsl_sdate":     "QSL sent date",
	"qsl_rdate":     "QSL received date",
	"lotw_qsl_rcvd": "LotW received",
	"eqsl_qsl_rcvd": "eQSL received",
}

// Condition is a single filter predicate. BETWEEN takes exactly two
// values; every other operator takes exactly one.
type Condition struct {
	Field  string   `json:"field"`
	Op     Operator `json:"operator"`
	Values []string `json:"values"`
}

// Fragment renders the condition as a parameterized SQL fragment.
func (c Condition) Fragment() (string, []any, error) {
	if _, ok := Fields[c.Field]; !ok {
		return "", nil, fmt.Errorf("%w: unknown field %q", ErrInvalidCondition, c.Field)
	}
	if _, ok := operators[c.Op]; !ok {
		return "", nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, string(c.Op))
	}
	if c.Op == OpBetween {
		if len(c.Values) != 2 {
			return "", nil, fmt.Errorf("%w: BETWEEN needs exactly 2 values, got %d",
				ErrInvalidCondition, len(c.Values))
		}
		return fmt.Sprintf("%s BETWEEN ? AND ?", c.Field), []any{c.Values[0], c.Values[1]}, nil
	}
	if len(c.Values) != 1 {
		return "", nil, fmt.Errorf("%w: operator %s needs exactly 1 value, got %d",
			ErrInvalidCondition, c.Op, len(c.Values))
	}
	return fmt.Sprintf("%s %s ?", c.Field, c.Op), []any{c.Values[0]}, nil
}

// Node is one entry of a group: either a leaf condition or a nested group.
type Node struct {
	Cond  *Condition `json:"condition,omitempty"`
	Group *Group     `json:"group,omitempty"`
}

// Group is an ordered sequence of conditions and nested groups joined by
// one combinator. An empty group renders to an always-true predicate.
type Group struct {
	Combinator Combinator `json:"combinator"`
	Children   []Node     `json:"children"`
}

// And returns a group AND-combining the given conditions.
func And(conds ...Condition) *Group {
	g := &Group{Combinator: CombineAnd}
	for i := range conds {
		cond := conds[i]
		g.Children = append(g.Children, Node{Cond: &cond})
	}
	return g
}

// Fragment renders the group as a parameterized SQL fragment. Nested
// groups are parenthesized to preserve precedence.
func (g *Group) Fragment() (string, []any, error) {
	if g == nil || len(g.Children) == 0 {
		return "1=1", nil, nil
	}
	comb := g.Combinator
	switch comb {
	case CombineAnd, CombineOr:
	case "":
		comb = CombineAnd
	default:
		return "", nil, fmt.Errorf("%w: unknown combinator %q", ErrInvalidCondition, string(g.Combinator))
	}

	parts := make([]string, 0, len(g.Children))
	var params []any
	for _, child := range g.Children {
		switch {
		case child.Cond != nil:
			frag, p, err := child.Cond.Fragment()
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, frag)
			params = append(params, p...)
		case child.Group != nil:
			frag, p, err := child.Group.Fragment()
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+frag+")")
			params = append(params, p...)
		default:
			return "", nil, fmt.Errorf("%w: empty tree node", ErrInvalidCondition)
		}
	}
	return strings.Join(parts, " "+string(comb)+" "), params, nil
}
