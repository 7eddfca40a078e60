package validator

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/Benny93/typegraph-go/internal/schema"
)

func checkEnum(sub, sup *schema.Base, errs *ErrorCollector) {
	if sub.Enum == nil {
		if sup.Enum != nil {
			errs.Push("a non-enum type cannot be a subtype of an enum type")
		}
		return
	}
	if sup.Enum == nil {
		return
	}
	for _, v := range sub.Enum {
		found := false
		for _, w := range sup.Enum {
			if enumEqual(v, w) {
				found = true
				break
			}
		}
		if !found {
			errs.Push("enum value %s is not allowed by the supertype", renderValue(v))
		}
	}
}

func renderValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// enumEqual compares two decoded JSON values structurally. Numbers compare by
// value regardless of their Go representation.
func enumEqual(a, b any) bool {
	if an, ok := toNum(a); ok {
		bn, ok := toNum(b)
		return ok && compareNum(an, bn) == 0
	}
	switch a := a.(type) {
	case nil:
		return b == nil
	case bool:
		bb, ok := b.(bool)
		return ok && a == bb
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case []any:
		bs, ok := b.([]any)
		if !ok || len(a) != len(bs) {
			return false
		}
		for i := range a {
			if !enumEqual(a[i], bs[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bm, ok := b.(map[string]any)
		if !ok || len(a) != len(bm) {
			return false
		}
		for k, av := range a {
			bv, ok := bm[k]
			if !ok || !enumEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toNum(v any) (num, bool) {
	switch v := v.(type) {
	case int:
		return num{i: int64(v)}, true
	case int32:
		return num{i: int64(v)}, true
	case int64:
		return num{i: v}, true
	case uint32:
		return num{i: int64(v)}, true
	case uint64:
		if v > math.MaxInt64 {
			return num{f: float64(v), float: true}, true
		}
		return num{i: int64(v)}, true
	case float32:
		return floatOrInt(float64(v)), true
	case float64:
		return floatOrInt(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return num{i: i}, true
		}
		if f, err := v.Float64(); err == nil {
			return floatOrInt(f), true
		}
	}
	return num{}, false
}

// floatOrInt keeps integral floats exact so 1 and 1.0 compare equal.
func floatOrInt(f float64) num {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return num{i: int64(f)}
	}
	return num{f: f, float: true}
}
