package molecule

import "cmp"

// Pair is an unordered pair of comparable, ordered values. Two pairs
// built from the same two members compare equal regardless of the order
// they were constructed in, because the constructor canonicalizes the
// member order: Pair(a,b) == Pair(b,a) holds as plain struct equality,
// which also makes Pair directly usable as a map key without a custom
// hash function (P2 of the testable properties).
type Pair[T cmp.Ordered] struct {
	Low, High T
}

// NewPair builds the canonical Pair for the unordered {a, b}.
//
// Inserting a pair where a == b is undefined behavior on the graphs that
// key by Pair (Invariant M2); NewPair does not reject it; it is on
// callers not to do this.
func NewPair[T cmp.Ordered](a, b T) Pair[T] {
	if a <= b {
		return Pair[T]{Low: a, High: b}
	}
	return Pair[T]{Low: b, High: a}
}

// Contains reports whether v is one of the pair's two members.
func (p Pair[T]) Contains(v T) bool {
	return p.Low == v || p.High == v
}

// Members returns the pair's two values in canonical (low, high) order.
func (p Pair[T]) Members() (T, T) {
	return p.Low, p.High
}
