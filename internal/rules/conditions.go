package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// Lookup resolves a dotted path such as "employee.address.city" in data.
// Numeric segments index into slices.
func Lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Evaluate folds the conditions left to right. The logical operator of
// condition i decides how condition i+1 joins the running result, so
// [A AND, B OR, C] is ((A AND B) OR C). An empty list matches.
func Evaluate(conditions []domain.Condition, data map[string]any) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}
	result, err := EvaluateCondition(conditions[0], data)
	if err != nil {
		return false, err
	}
	for i := 1; i < len(conditions); i++ {
		next, err := EvaluateCondition(conditions[i], data)
		if err != nil {
			return false, err
		}
		if conditions[i-1].Logical == domain.LogicalOr {
			result = result || next
		} else {
			result = result && next
		}
	}
	return result, nil
}

// EvaluateCondition evaluates a single condition. A missing field behaves
// as a nil value; ordering operators on mismatched types evaluate to false.
func EvaluateCondition(c domain.Condition, data map[string]any) (bool, error) {
	field, _ := Lookup(data, c.Field)

	switch c.Operator {
	case domain.OperatorEquals:
		return equal(field, c.Value), nil
	case domain.OperatorNotEquals:
		return !equal(field, c.Value), nil
	case domain.OperatorGreaterThan:
		cmp, ok := compare(field, c.Value)
		return ok && cmp > 0, nil
	case domain.OperatorLessThan:
		cmp, ok := compare(field, c.Value)
		return ok && cmp < 0, nil
	case domain.OperatorContains:
		return contains(field, c.Value), nil
	case domain.OperatorIn:
		return in(field, c.Value, c.Field)
	case domain.OperatorNotIn:
		found, err := in(field, c.Value, c.Field)
		return !found, err
	}
	return false, fmt.Errorf("unknown operator %q on field %s", c.Operator, c.Field)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compare returns -1, 0 or 1 for numbers or strings. ok is false on mismatch.
func compare(a, b any) (int, bool) {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func contains(field, value any) bool {
	if s, ok := field.(string); ok {
		sub, ok := value.(string)
		return ok && strings.Contains(s, sub)
	}
	items, ok := listOf(field)
	if !ok {
		return false
	}
	for _, item := range items {
		if equal(item, value) {
			return true
		}
	}
	return false
}

func in(field, value any, name string) (bool, error) {
	items, ok := listOf(value)
	if !ok {
		return false, fmt.Errorf("operator in on field %s requires a list value, got %T", name, value)
	}
	for _, item := range items {
		if equal(field, item) {
			return true, nil
		}
	}
	return false, nil
}

func listOf(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
