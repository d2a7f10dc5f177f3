// Package rules implements the condition-tree evaluator behind offer
// applicability. A tree is a nested structure of ALL/ANY groups whose leaves
// compare a named fact against a constant. Trees are data, stored as jsonb on
// offers, so evaluation is fully parameterized: no registry, no shared state,
// safe to call concurrently.
package rules

import (
	"errors"
	"fmt"
)

// Operator identifies a leaf comparison.
type Operator string

// Supported operators. The names match the documents already stored in the
// offer tables, so they are part of the persistence format.
const (
	OpEqual              Operator = "equal"
	OpNotEqual           Operator = "notEqual"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanInclusive"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanInclusive"

	// OpContainsGreaterThan gates SKU+spend combination offers: the fact is a
	// list of {skuCode, finalAmount} entries and the rule value is
	// {skuCode, minValue}. True iff any entry matches the SKU and exceeds the
	// minimum spend.
	OpContainsGreaterThan Operator = "containsAndGreaterThan"
)

// Errors returned for malformed trees. Leaf-level data problems (missing
// facts, type mismatches) are NOT errors: they make the leaf false, so a bad
// fact can never break coupon resolution for the whole cart.
var (
	ErrMalformedNode   = errors.New("rules: node is neither a group nor a leaf")
	ErrUnknownOperator = errors.New("rules: unknown operator")
)

// Node is one node of a condition tree. Exactly one of the following must be
// set: All (an ALL group), Any (an ANY group), or Fact/Operator/Value (a
// leaf). The JSON shape mirrors the stored rule documents.
type Node struct {
	All []Node `json:"all,omitempty"`
	Any []Node `json:"any,omitempty"`

	Fact     string   `json:"fact,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`
}

// IsZero reports whether the node carries no condition at all.
func (n Node) IsZero() bool {
	return n.All == nil && n.Any == nil && n.Fact == ""
}

// Facts is the flat fact object a tree is evaluated against. Values are the
// result of JSON decoding: float64 for numbers, string, bool, []any,
// map[string]any.
type Facts map[string]any

// Evaluate walks the tree against the given facts. ALL groups require every
// child to hold and short-circuit on the first false child; ANY groups
// require at least one and short-circuit on the first true child. An empty
// ALL group is vacuously true, an empty ANY group is false.
//
// Evaluation never mutates the tree or the facts. The only error cases are
// structural: a node that is not a valid group or leaf, or a leaf naming an
// operator the engine does not know.
func Evaluate(node Node, facts Facts) (bool, error) {
	switch {
	case node.All != nil:
		for _, child := range node.All {
			ok, err := Evaluate(child, facts)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case node.Any != nil:
		for _, child := range node.Any {
			ok, err := Evaluate(child, facts)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case node.Fact != "":
		return evaluateLeaf(node, facts)

	default:
		return false, ErrMalformedNode
	}
}

func evaluateLeaf(node Node, facts Facts) (bool, error) {
	compare, ok := operators[node.Operator]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, node.Operator)
	}

	factValue, present := facts[node.Fact]
	if !present {
		// Missing fact: the predicate is false, never an error.
		return false, nil
	}

	return compare(factValue, node.Value), nil
}

// operators maps operator names to comparison functions. A comparison takes
// the fact value and the rule value and reports whether the predicate holds;
// incompatible types make it false.
var operators = map[Operator]func(factValue, ruleValue any) bool{
	OpEqual:    looseEqual,
	OpNotEqual: func(f, r any) bool { return !looseEqual(f, r) },
	OpGreaterThan: numericCompare(func(f, r float64) bool {
		return f > r
	}),
	OpGreaterThanOrEqual: numericCompare(func(f, r float64) bool {
		return f >= r
	}),
	OpLessThan: numericCompare(func(f, r float64) bool {
		return f < r
	}),
	OpLessThanOrEqual: numericCompare(func(f, r float64) bool {
		return f <= r
	}),
	OpContainsGreaterThan: containsAndGreaterThan,
}

// looseEqual compares two decoded JSON values. Numbers compare numerically
// regardless of their Go type, everything else compares by interface
// equality.
func looseEqual(factValue, ruleValue any) bool {
	fNum, fOK := toFloat(factValue)
	rNum, rOK := toFloat(ruleValue)
	if fOK && rOK {
		return fNum == rNum
	}
	return factValue == ruleValue
}

func numericCompare(cmp func(f, r float64) bool) func(factValue, ruleValue any) bool {
	return func(factValue, ruleValue any) bool {
		f, fOK := toFloat(factValue)
		r, rOK := toFloat(ruleValue)
		if !fOK || !rOK {
			return false
		}
		return cmp(f, r)
	}
}

// containsAndGreaterThan expects the fact to be a list of objects carrying
// skuCode and finalAmount, and the rule value to carry skuCode and minValue.
// True iff any list entry has the matching skuCode with finalAmount strictly
// greater than minValue.
func containsAndGreaterThan(factValue, ruleValue any) bool {
	entries, ok := toList(factValue)
	if !ok {
		return false
	}
	rule, ok := toMap(ruleValue)
	if !ok {
		return false
	}
	wantSku, _ := rule["skuCode"].(string)
	minValue, ok := toFloat(rule["minValue"])
	if !ok {
		return false
	}

	for _, raw := range entries {
		entry, ok := toMap(raw)
		if !ok {
			continue
		}
		sku, _ := entry["skuCode"].(string)
		amount, amountOK := toFloat(entry["finalAmount"])
		if sku == wantSku && amountOK && amount > minValue {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
