// Package validator decides structural subtyping between two nodes of a raw
// schema.
//
// Checks never fail fast. Every rule runs to completion and each violation is
// recorded in an ErrorCollector, nested under the property, item or variant
// it belongs to.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Benny93/typegraph-go/internal/schema"
)

type pair struct {
	sub, sup uint32
}

type checker struct {
	schema *schema.Schema
	active map[pair]bool
}

// EnsureSubtypeOf records in errs every reason sub is not a subtype of sup.
// Both indices refer to s.
func EnsureSubtypeOf(s *schema.Schema, sub, sup uint32, errs *ErrorCollector) {
	c := &checker{schema: s, active: make(map[pair]bool)}
	c.check(sub, sup, errs)
}

// IsSubtype reports whether sub is a subtype of sup.
func IsSubtype(s *schema.Schema, sub, sup uint32) bool {
	var errs ErrorCollector
	EnsureSubtypeOf(s, sub, sup, &errs)
	return errs.IsEmpty()
}

func (c *checker) describe(idx uint32) string {
	n, err := c.schema.Node(idx)
	if err != nil {
		return fmt.Sprintf("#%d", idx)
	}
	if title := n.NodeBase().Title; title != "" {
		return fmt.Sprintf("%s '%s' (#%d)", n.Kind(), title, idx)
	}
	return fmt.Sprintf("%s (#%d)", n.Kind(), idx)
}

func (c *checker) check(sub, sup uint32, errs *ErrorCollector) {
	subNode, err := c.schema.Node(sub)
	if err != nil {
		errs.Push("invalid subtype: %v", err)
		return
	}
	supNode, err := c.schema.Node(sup)
	if err != nil {
		errs.Push("invalid supertype: %v", err)
		return
	}
	if supNode.Kind() == schema.KindFunction {
		errs.Push("function %s cannot be used as a supertype", c.describe(sup))
		return
	}
	if sub == sup {
		return
	}

	// A pair already under check is assumed to hold, so cycles terminate.
	p := pair{sub, sup}
	if c.active[p] {
		return
	}
	c.active[p] = true
	defer delete(c.active, p)

	if fn, ok := subNode.(*schema.Function); ok {
		c.check(fn.Output, sup, errs)
		return
	}
	checkEnum(subNode.NodeBase(), supNode.NodeBase(), errs)

	switch supNode := supNode.(type) {
	case *schema.Optional:
		if subOpt, ok := subNode.(*schema.Optional); ok {
			c.check(subOpt.Item, supNode.Item, errs)
			return
		}
		c.check(sub, supNode.Item, errs)
		return
	}
	if _, ok := subNode.(*schema.Optional); ok {
		errs.Push("optional %s cannot be a subtype of non-optional %s", c.describe(sub), c.describe(sup))
		return
	}

	switch subNode := subNode.(type) {
	case *schema.Union:
		c.allOf(subNode.AnyOf, sup, supNode, errs)
		return
	case *schema.Either:
		c.allOf(subNode.OneOf, sup, supNode, errs)
		return
	}

	switch supNode := supNode.(type) {
	case *schema.Union:
		c.anyOf(sub, supNode.AnyOf, errs)
		return
	case *schema.Either:
		c.oneOf(sub, supNode.OneOf, errs)
		return
	}

	c.refine(sub, sup, subNode, supNode, errs)
}

// allOf requires every variant of a union or either subtype to satisfy sup,
// quantified by sup's own kind.
func (c *checker) allOf(variants []uint32, sup uint32, supNode schema.Node, errs *ErrorCollector) {
	for i, v := range variants {
		var child ErrorCollector
		switch supNode := supNode.(type) {
		case *schema.Union:
			c.anyOf(v, supNode.AnyOf, &child)
		case *schema.Either:
			c.oneOf(v, supNode.OneOf, &child)
		default:
			c.check(v, sup, &child)
		}
		if !child.IsEmpty() {
			errs.PushNested(&child, "variant #%d %s is not a subtype of %s", i, c.describe(v), c.describe(sup))
		}
	}
}

// anyOf requires sub to be a subtype of at least one variant.
func (c *checker) anyOf(sub uint32, variants []uint32, errs *ErrorCollector) {
	attempts := make([]ErrorCollector, len(variants))
	for i, v := range variants {
		c.check(sub, v, &attempts[i])
		if attempts[i].IsEmpty() {
			return
		}
	}
	errs.Push("expected %s to be a subtype of at least one variant", c.describe(sub))
	c.nestAttempts(variants, attempts, errs)
}

// oneOf requires sub to be a subtype of exactly one variant.
func (c *checker) oneOf(sub uint32, variants []uint32, errs *ErrorCollector) {
	attempts := make([]ErrorCollector, len(variants))
	var matches []int
	for i, v := range variants {
		c.check(sub, v, &attempts[i])
		if attempts[i].IsEmpty() {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 1:
		return
	case 0:
		errs.Push("expected %s to be a subtype of exactly one variant, matched none", c.describe(sub))
		c.nestAttempts(variants, attempts, errs)
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = fmt.Sprintf("#%d %s", m, c.describe(variants[m]))
		}
		errs.Push("ambiguous variant: %s is a subtype of %d variants: %s", c.describe(sub), len(matches), joinNames(names))
	}
}

func (c *checker) nestAttempts(variants []uint32, attempts []ErrorCollector, errs *ErrorCollector) {
	var nested ErrorCollector
	for i, v := range variants {
		nested.PushNested(&attempts[i], "variant #%d %s:", i, c.describe(v))
	}
	errs.Nest(&nested)
}

func joinNames(names []string) string {
	if len(names) < 2 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// refine compares two non-wrapper nodes.
func (c *checker) refine(sub, sup uint32, subNode, supNode schema.Node, errs *ErrorCollector) {
	switch subNode := subNode.(type) {
	case *schema.Boolean:
		if _, ok := supNode.(*schema.Boolean); ok {
			return
		}
	case *schema.Integer:
		switch supNode := supNode.(type) {
		case *schema.Integer:
			checkNumeric(integerBounds(subNode), integerBounds(supNode), errs)
			return
		case *schema.Float:
			checkNumeric(integerBounds(subNode), floatBounds(supNode), errs)
			return
		}
	case *schema.Float:
		if supNode, ok := supNode.(*schema.Float); ok {
			checkNumeric(floatBounds(subNode), floatBounds(supNode), errs)
			return
		}
	case *schema.String:
		if supNode, ok := supNode.(*schema.String); ok {
			checkString(subNode, supNode, errs)
			return
		}
	case *schema.File:
		if supNode, ok := supNode.(*schema.File); ok {
			checkFile(subNode, supNode, errs)
			return
		}
	case *schema.Object:
		if supNode, ok := supNode.(*schema.Object); ok {
			c.checkObject(subNode, supNode, errs)
			return
		}
	case *schema.List:
		if supNode, ok := supNode.(*schema.List); ok {
			c.checkList(subNode, supNode, errs)
			return
		}
	}
	errs.Push("type mismatch: %s to %s", c.describe(sub), c.describe(sup))
}

func (c *checker) checkObject(sub, sup *schema.Object, errs *ErrorCollector) {
	for _, p := range sub.Properties {
		supIdx, ok := sup.Property(p.Name)
		if !ok {
			errs.Push("property '%s' is not allowed: not defined in the supertype", p.Name)
			continue
		}
		var child ErrorCollector
		c.check(p.Index, supIdx, &child)
		if !child.IsEmpty() {
			errs.PushNested(&child, "property '%s' is not a subtype", p.Name)
		}
	}
	for _, p := range sup.Properties {
		if _, ok := sub.Property(p.Name); ok {
			continue
		}
		n, err := c.schema.Node(p.Index)
		if err != nil || n.Kind() != schema.KindOptional {
			errs.Push("property '%s' is missing: it is not optional in the supertype", p.Name)
		}
	}
	for _, name := range sub.Required {
		if !slices.Contains(sup.Required, name) {
			errs.Push("property '%s' is required in the subtype but not in the supertype", name)
		}
	}
}

func (c *checker) checkList(sub, sup *schema.List, errs *ErrorCollector) {
	checkLower(errs, "min_items", uintNum(sub.MinItems), uintNum(sup.MinItems))
	checkUpper(errs, "max_items", uintNum(sub.MaxItems), uintNum(sup.MaxItems))
	if isTrue(sub.UniqueItems) && !isTrue(sup.UniqueItems) {
		errs.Push("unique_items cannot be asserted: the supertype does not require unique items")
	}
	var child ErrorCollector
	c.check(sub.Items, sup.Items, &child)
	if !child.IsEmpty() {
		errs.PushNested(&child, "list items are not a subtype")
	}
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func checkString(sub, sup *schema.String, errs *ErrorCollector) {
	checkLower(errs, "min_length", uintNum(sub.MinLength), uintNum(sup.MinLength))
	checkUpper(errs, "max_length", uintNum(sub.MaxLength), uintNum(sup.MaxLength))
	checkExact(errs, "pattern", sub.Pattern, sup.Pattern)
	checkExact(errs, "format", sub.Format, sup.Format)
}

func checkExact(errs *ErrorCollector, name string, sub, sup *string) {
	switch {
	case sup == nil:
	case sub == nil:
		errs.Push("%s is not set: the supertype requires '%s'", name, *sup)
	case *sub != *sup:
		errs.Push("%s '%s' differs from the supertype's '%s'", name, *sub, *sup)
	}
}

func checkFile(sub, sup *schema.File, errs *ErrorCollector) {
	checkLower(errs, "min_size", uint64Num(sub.MinSize), uint64Num(sup.MinSize))
	checkUpper(errs, "max_size", uint64Num(sub.MaxSize), uint64Num(sup.MaxSize))
	if sup.MimeTypes == nil {
		return
	}
	if sub.MimeTypes == nil {
		errs.Push("mime_types is not set: the supertype restricts mime types")
		return
	}
	for _, m := range sub.MimeTypes {
		if !slices.Contains(sup.MimeTypes, m) {
			errs.Push("mime type '%s' is not allowed by the supertype", m)
		}
	}
}
