package typegraph

import (
	"errors"
	"weak"
)

var (
	// ErrAlreadySet is returned when a write-once slot is written twice.
	ErrAlreadySet = errors.New("typegraph: slot already set")

	// ErrNotLinked is returned when a child slot is read before linking.
	ErrNotLinked = errors.New("typegraph: slot not linked")
)

// Once is a set-at-most-once, read-many cell. Writes happen during the link
// phase only; the graph is read-only afterwards.
type Once[T any] struct {
	v   T
	set bool
}

// Set stores v, failing if a value was stored before.
func (o *Once[T]) Set(v T) error {
	if o.set {
		return ErrAlreadySet
	}
	o.v = v
	o.set = true
	return nil
}

// Get returns the stored value and whether it was set.
func (o *Once[T]) Get() (T, bool) {
	return o.v, o.set
}

// IsSet reports whether the cell was written.
func (o *Once[T]) IsSet() bool {
	return o.set
}

// WeakType is a non-owning handle to a Type. Upgrading fails once the target
// has been collected.
type WeakType struct {
	upgrade func() Type
}

// Weak creates a weak handle to p.
func Weak[E any, P interface {
	*E
	Type
}](p P) WeakType {
	w := weak.Make((*E)(p))
	return WeakType{upgrade: func() Type {
		if v := w.Value(); v != nil {
			return P(v)
		}
		return nil
	}}
}

// Upgrade returns the target if it is still alive.
func (w WeakType) Upgrade() (Type, bool) {
	if w.upgrade == nil {
		return nil, false
	}
	t := w.upgrade()
	return t, t != nil
}

// IsZero reports whether the handle points nowhere.
func (w WeakType) IsZero() bool {
	return w.upgrade == nil
}
