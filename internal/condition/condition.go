// Package condition resolves a field path against a case and evaluates it
// with the comparison operators named in spec.md §4.2.
package condition

import (
	"encoding/json"
	"fmt"
	"strings"

	"orchepy/pkg/models"
)

// FieldSource carries the minimal case view the evaluator reads from:
// the four root segments named in spec.md §4.2.
type FieldSource struct {
	Data          json.RawMessage
	Status        string
	CurrentPhase  string
	PreviousPhase *string
}

// SourceFromCase adapts a models.Case into a FieldSource.
func SourceFromCase(c models.Case) FieldSource {
	return FieldSource{
		Data:          c.Data,
		Status:        string(c.Status),
		CurrentPhase:  c.CurrentPhase,
		PreviousPhase: c.PreviousPhase,
	}
}

// ResolveField walks a dotted field path. The first segment selects a
// root ("data", "status", "current_phase", "previous_phase"); further
// segments drill into "data" by key. Missing intermediate keys are an
// error.
func ResolveField(field string, src FieldSource) (any, error) {
	parts := strings.Split(field, ".")
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty field path")
	}
	switch parts[0] {
	case "data":
		var data any
		if len(src.Data) == 0 {
			data = map[string]any{}
		} else if err := json.Unmarshal(src.Data, &data); err != nil {
			return nil, fmt.Errorf("invalid case data: %w", err)
		}
		cur := data
		for _, part := range parts[1:] {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %q not found", field)
			}
			val, ok := obj[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found", field)
			}
			cur = val
		}
		return cur, nil
	case "status":
		return src.Status, nil
	case "current_phase":
		return src.CurrentPhase, nil
	case "previous_phase":
		if src.PreviousPhase == nil {
			return nil, nil
		}
		return *src.PreviousPhase, nil
	default:
		return nil, fmt.Errorf("unsupported field path: %s", field)
	}
}

// Evaluate tests a single (field, operator, expected) triple against src.
func Evaluate(field, operator string, expected any, src FieldSource) (bool, error) {
	actual, err := ResolveField(field, src)
	if err != nil {
		return false, err
	}
	switch operator {
	case "==", "=":
		return deepEqual(actual, expected), nil
	case "!=":
		return !deepEqual(actual, expected), nil
	case ">", "<", ">=", "<=":
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if !aok || !bok {
			return false, fmt.Errorf("cannot compare non-numeric values with %s", operator)
		}
		switch operator {
		case ">":
			return a > b, nil
		case "<":
			return a < b, nil
		case ">=":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case "contains":
		as, aok := actual.(string)
		bs, bok := expected.(string)
		if !aok {
			return false, fmt.Errorf("contains operator requires string actual value")
		}
		if !bok {
			return false, fmt.Errorf("contains operator requires string expected value")
		}
		return strings.Contains(as, bs), nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}

// EvaluateCondition evaluates a models.Condition, dispatching Simple
// comparisons directly and Complex AND/OR combinators with short-circuit
// semantics (spec.md §4.2). An evaluation error from any leaf propagates
// out of the combinator.
func EvaluateCondition(c models.Condition, src FieldSource) (bool, error) {
	if !c.IsComplex() {
		expected, err := decodeValue(c.Value)
		if err != nil {
			return false, err
		}
		return Evaluate(c.Field, c.Operator, expected, src)
	}
	switch c.LogicalOp {
	case models.LogicalAnd:
		for _, leaf := range c.Conditions {
			expected, err := decodeValue(leaf.Value)
			if err != nil {
				return false, err
			}
			ok, err := Evaluate(leaf.Field, leaf.Operator, expected, src)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case models.LogicalOr:
		for _, leaf := range c.Conditions {
			expected, err := decodeValue(leaf.Value)
			if err != nil {
				return false, err
			}
			ok, err := Evaluate(leaf.Field, leaf.Operator, expected, src)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported logical operator: %s", c.LogicalOp)
	}
}

func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid condition value: %w", err)
	}
	return v, nil
}

func deepEqual(a, b any) bool {
	aj, err1 := json.Marshal(a)
	bj, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	var av, bv any
	_ = json.Unmarshal(aj, &av)
	_ = json.Unmarshal(bj, &bv)
	return jsonEqual(av, bv)
}

func jsonEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !jsonEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
