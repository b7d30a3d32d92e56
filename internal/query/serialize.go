package query

import (
	"encoding/json"
	"fmt"
)

// MarshalGroup serializes a condition tree for persistence.
func MarshalGroup(g *Group) ([]byte, error) {
	if g == nil {
		g = &Group{Combinator: CombineAnd}
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize conditions: %w", err)
	}
	return data, nil
}

// UnmarshalGroup reconstructs a condition tree from its serialized form.
// The result is validated lazily: a tampered tree fails at Fragment time
// with ErrInvalidCondition, never at the store.
func UnmarshalGroup(data []byte) (*Group, error) {
	var g Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse conditions: %w", err)
	}
	return &g, nil
}
