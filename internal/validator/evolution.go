package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// FunctionChange holds the violations found for one function exposed by both
// schema versions.
type FunctionChange struct {
	Path   string
	Input  ErrorCollector
	Output ErrorCollector
}

// Breaking reports whether the change breaks existing callers.
func (c *FunctionChange) Breaking() bool {
	return !c.Input.IsEmpty() || !c.Output.IsEmpty()
}

// EvolutionReport compares the functions exposed by two schema versions.
type EvolutionReport struct {
	Added   []string
	Removed []string
	Changes []FunctionChange
}

// Compatible reports whether every old caller keeps working.
func (r *EvolutionReport) Compatible() bool {
	if len(r.Removed) > 0 {
		return false
	}
	for i := range r.Changes {
		if r.Changes[i].Breaking() {
			return false
		}
	}
	return true
}

// Breaking returns the changes that break callers.
func (r *EvolutionReport) Breaking() []*FunctionChange {
	var out []*FunctionChange
	for i := range r.Changes {
		if r.Changes[i].Breaking() {
			out = append(out, &r.Changes[i])
		}
	}
	return out
}

// CheckEvolution checks that newer can replace older. For every function
// exposed at the same namespace path in both, the old input must be a subtype
// of the new input and the new output a subtype of the old output. Both
// schemas are rooted at index 0.
func CheckEvolution(older, newer *schema.Schema) (*EvolutionReport, error) {
	oldFns, err := exposedFunctions(older, 0)
	if err != nil {
		return nil, fmt.Errorf("reading old schema: %w", err)
	}
	newFns, err := exposedFunctions(newer, 0)
	if err != nil {
		return nil, fmt.Errorf("reading new schema: %w", err)
	}

	merged, offset := schema.Merge(older, newer)
	report := &EvolutionReport{}

	for _, path := range sortedKeys(oldFns) {
		oldFn := oldFns[path]
		newFn, ok := newFns[path]
		if !ok {
			report.Removed = append(report.Removed, path)
			continue
		}
		change := FunctionChange{Path: path}
		EnsureSubtypeOf(merged, oldFn.Input, newFn.Input+offset, &change.Input)
		EnsureSubtypeOf(merged, newFn.Output+offset, oldFn.Output, &change.Output)
		report.Changes = append(report.Changes, change)
	}
	for _, path := range sortedKeys(newFns) {
		if _, ok := oldFns[path]; !ok {
			report.Added = append(report.Added, path)
		}
	}
	return report, nil
}

// exposedFunctions maps the dotted namespace path of every function reachable
// through namespace objects from root.
func exposedFunctions(s *schema.Schema, root uint32) (map[string]*schema.Function, error) {
	out := make(map[string]*schema.Function)
	visited := make(map[uint32]bool)

	var walk func(idx uint32, path []string) error
	walk = func(idx uint32, path []string) error {
		n, err := s.Node(idx)
		if err != nil {
			return err
		}
		obj, ok := n.(*schema.Object)
		if !ok {
			return fmt.Errorf("%w: namespace %q is %s", schema.ErrMalformed, strings.Join(path, "."), n.Kind())
		}
		if visited[idx] {
			return nil
		}
		visited[idx] = true
		for _, p := range obj.Properties {
			member, err := s.Node(p.Index)
			if err != nil {
				return err
			}
			memberPath := append(slices.Clip(path), p.Name)
			switch member := member.(type) {
			case *schema.Function:
				out[strings.Join(memberPath, ".")] = member
			case *schema.Object:
				if err := walk(p.Index, memberPath); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
