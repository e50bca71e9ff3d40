package condition

import (
	"encoding/json"
	"slices"
)

// Evaluate never fails: unknown fields, unknown operators and type
// mismatches make the clause false
func (s Set) Evaluate(subject Subject) bool {
	if s.malformed {
		return false
	}

	switch s.Kind {
	case KindMatchAll:
		for _, c := range s.MatchAll {
			if !c.Evaluate(subject) {
				return false
			}
		}
		return true
	case KindFlat:
		return s.Flat.evaluate(subject)
	default:
		return true
	}
}

func (c Clause) Evaluate(subject Subject) bool {
	actual, ok := subject.Field(c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpIn:
		values, ok := list(c.Value)
		if !ok {
			return false
		}
		return slices.ContainsFunc(values, func(v any) bool { return equal(actual, v) })
	case OpGte:
		a, b, ok := numbers(actual, c.Value)
		return ok && a >= b
	case OpLte:
		a, b, ok := numbers(actual, c.Value)
		return ok && a <= b
	case OpEq:
		return equal(actual, c.Value)
	default:
		return false
	}
}

func (f Flat) evaluate(subject Subject) bool {
	member := func(field string, allowed []string) bool {
		if allowed == nil {
			return true
		}
		v, ok := subject.Field(field)
		if !ok {
			return false
		}
		s, ok := v.(string)
		return ok && slices.Contains(allowed, s)
	}

	if !member("grade", f.Grade) {
		return false
	}

	if f.MinTenure != nil {
		v, ok := subject.Field("tenure_months")
		if !ok {
			return false
		}
		tenure, required, ok := numbers(v, *f.MinTenure)
		if !ok || tenure < required {
			return false
		}
	}

	return member("location", f.Location) && member("legal_entity", f.LegalEntity)
}

func list(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, 0, len(l))
		for _, s := range l {
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func equal(a, b any) bool {
	if x, y, ok := numbers(a, b); ok {
		return x == y
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func numbers(a, b any) (float64, float64, bool) {
	x, ok := number(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := number(b)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
