package automation

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/derivia/orchepy/pkg/models"
)

// EvaluateCondition is total: unknown operators, type mismatches, and missing
// fields all evaluate to false rather than erroring, which keeps the
// interpreter live on malformed data.
func EvaluateCondition(cond models.Condition, doc *Document) bool {
	if cond.Compound() {
		switch cond.Operator {
		case models.LogicalAnd:
			for _, sub := range cond.Conditions {
				if !evaluateSimple(sub, doc) {
					return false
				}
			}

			return true
		case models.LogicalOr:
			for _, sub := range cond.Conditions {
				if evaluateSimple(sub, doc) {
					return true
				}
			}

			return false
		default:
			return false
		}
	}

	return evaluateSimple(cond, doc)
}

func evaluateSimple(cond models.Condition, doc *Document) bool {
	actual := doc.Get(cond.Field)
	expected := cond.Value

	switch cond.ComparisonOp() {
	case "==":
		return jsonEqual(actual, expected)
	case "!=":
		return !jsonEqual(actual, expected)
	case ">", "<", ">=", "<=":
		left, leftOK := toFloat(actual)
		right, rightOK := toFloat(expected)

		if !leftOK || !rightOK {
			return false
		}

		switch cond.ComparisonOp() {
		case ">":
			return left > right
		case "<":
			return left < right
		case ">=":
			return left >= right
		default:
			return left <= right
		}
	case "contains":
		return contains(actual, expected)
	default:
		return false
	}
}

func contains(actual, expected any) bool {
	switch left := actual.(type) {
	case string:
		if substr, ok := expected.(string); ok {
			return strings.Contains(left, substr)
		}

		return false
	case []any:
		for _, element := range left {
			if jsonEqual(element, expected) {
				return true
			}
		}

		return false
	case map[string]any:
		if key, ok := expected.(string); ok {
			_, present := left[key]

			return present
		}

		return false
	default:
		return false
	}
}

// jsonEqual compares two JSON-shaped values structurally, normalizing numeric
// representations first.
func jsonEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, element := range value {
			out[k] = normalize(element)
		}

		return out
	case []any:
		out := make([]any, len(value))
		for i, element := range value {
			out[i] = normalize(element)
		}

		return out
	default:
		if f, ok := toFloat(v); ok {
			return f
		}

		return v
	}
}

func toFloat(v any) (float64, bool) {
	switch number := v.(type) {
	case float64:
		return number, true
	case float32:
		return float64(number), true
	case int:
		return float64(number), true
	case int32:
		return float64(number), true
	case int64:
		return float64(number), true
	case uint:
		return float64(number), true
	case uint64:
		return float64(number), true
	case json.Number:
		f, err := number.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
