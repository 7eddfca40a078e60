package validator

import (
	"cmp"
	"math"
	"strconv"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// num is a bound that keeps integers exact. Floats are used only when a
// comparison involves a true float.
type num struct {
	i     int64
	f     float64
	float bool
}

func (n num) asFloat() float64 {
	if n.float {
		return n.f
	}
	return float64(n.i)
}

func (n num) String() string {
	if n.float {
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return strconv.FormatInt(n.i, 10)
}

func compareNum(a, b num) int {
	if !a.float && !b.float {
		return cmp.Compare(a.i, b.i)
	}
	return cmp.Compare(a.asFloat(), b.asFloat())
}

// isMultiple reports whether a is a multiple of b.
func isMultiple(a, b num) bool {
	if !a.float && !b.float {
		return b.i != 0 && a.i%b.i == 0
	}
	bf := b.asFloat()
	if bf == 0 {
		return false
	}
	q := a.asFloat() / bf
	return math.Abs(q-math.Round(q)) < 1e-9
}

func intNum(p *int64) *num {
	if p == nil {
		return nil
	}
	return &num{i: *p}
}

func floatNum(p *float64) *num {
	if p == nil {
		return nil
	}
	return &num{f: *p, float: true}
}

func uintNum(p *uint32) *num {
	if p == nil {
		return nil
	}
	return &num{i: int64(*p)}
}

func uint64Num(p *uint64) *num {
	if p == nil {
		return nil
	}
	if *p > math.MaxInt64 {
		return &num{f: float64(*p), float: true}
	}
	return &num{i: int64(*p)}
}

type bounds struct {
	minimum, maximum                   *num
	exclusiveMinimum, exclusiveMaximum *num
	multipleOf                         *num
}

func integerBounds(n *schema.Integer) bounds {
	return bounds{
		minimum:          intNum(n.Minimum),
		maximum:          intNum(n.Maximum),
		exclusiveMinimum: intNum(n.ExclusiveMinimum),
		exclusiveMaximum: intNum(n.ExclusiveMaximum),
		multipleOf:       intNum(n.MultipleOf),
	}
}

func floatBounds(n *schema.Float) bounds {
	return bounds{
		minimum:          floatNum(n.Minimum),
		maximum:          floatNum(n.Maximum),
		exclusiveMinimum: floatNum(n.ExclusiveMinimum),
		exclusiveMaximum: floatNum(n.ExclusiveMaximum),
		multipleOf:       floatNum(n.MultipleOf),
	}
}

func checkNumeric(sub, sup bounds, errs *ErrorCollector) {
	checkLower(errs, "minimum", sub.minimum, sup.minimum)
	checkUpper(errs, "maximum", sub.maximum, sup.maximum)
	checkLower(errs, "exclusive_minimum", sub.exclusiveMinimum, sup.exclusiveMinimum)
	checkUpper(errs, "exclusive_maximum", sub.exclusiveMaximum, sup.exclusiveMaximum)
	checkMultipleOf(errs, sub.multipleOf, sup.multipleOf)
}

// checkLower requires sub >= sup when the supertype sets the bound.
func checkLower(errs *ErrorCollector, name string, sub, sup *num) {
	switch {
	case sup == nil:
	case sub == nil:
		errs.Push("%s is not set: expected at least %s", name, sup)
	case compareNum(*sub, *sup) < 0:
		errs.Push("%s %s is less than the supertype's %s", name, sub, sup)
	}
}

// checkUpper requires sub <= sup when the supertype sets the bound.
func checkUpper(errs *ErrorCollector, name string, sub, sup *num) {
	switch {
	case sup == nil:
	case sub == nil:
		errs.Push("%s is not set: expected at most %s", name, sup)
	case compareNum(*sub, *sup) > 0:
		errs.Push("%s %s is greater than the supertype's %s", name, sub, sup)
	}
}

func checkMultipleOf(errs *ErrorCollector, sub, sup *num) {
	switch {
	case sup == nil:
	case sub == nil:
		errs.Push("multiple_of is not set: expected a multiple of %s", sup)
	case !isMultiple(*sub, *sup):
		errs.Push("multiple_of %s is not a multiple of the supertype's %s", sub, sup)
	}
}
