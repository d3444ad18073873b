// Package memo is the single chokepoint every derived value passes through
// before it is written into the state tree. It keeps the previous pointer when
// a recomputed value is structurally unchanged, so readers can use pointer
// identity as a cheap "did this change" test.
package memo

import "reflect"

// Keep returns prev if next is deeply equal to it, otherwise next.
// A nil prev always yields next. Slices compare element by element in order;
// maps compare by key regardless of iteration order.
func Keep[T any](prev, next *T) *T {
	return KeepFunc(prev, next, func(a, b *T) bool {
		return reflect.DeepEqual(*a, *b)
	})
}

// KeepFunc is Keep with a caller-supplied equality over non-nil values.
func KeepFunc[T any](prev, next *T, equal func(a, b *T) bool) *T {
	if prev == nil || next == nil {
		return next
	}
	if prev == next || equal(prev, next) {
		return prev
	}
	return next
}
