package molecule

// bondEntry is one row of a BondGraph: a key plus its bond order, with a
// nil Weight meaning "tombstoned" (Invariant M1 applied to edges: present
// but explicitly erased, distinct from absent).
type bondEntry struct {
	Key    Pair[int]
	Weight *float64
}

// BondGraph is a vector-backed keyed container mapping unordered atom-index
// pairs to an optional bond order. It is backed by a flat slice rather than
// a map, the same trade the teacher's CausalTree makes for its Weave: a
// linear scan per lookup, in exchange for a representation that is trivial
// to shift, slice and serialize in index order. Bond counts in a molecule
// are small enough that this is not a hot path.
type BondGraph struct {
	entries []bondEntry
}

// NewBondGraph returns an empty BondGraph.
func NewBondGraph() BondGraph {
	return BondGraph{}
}

func (g *BondGraph) indexOf(key Pair[int]) int {
	for i, e := range g.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// Set records a bond order for the pair (a, b). Invariant M2: {a,b} and
// {b,a} are the same key.
func (g *BondGraph) Set(a, b int, weight float64) {
	key := NewPair(a, b)
	w := weight
	if i := g.indexOf(key); i >= 0 {
		g.entries[i].Weight = &w
		return
	}
	g.entries = append(g.entries, bondEntry{Key: key, Weight: &w})
}

// Tombstone marks the pair (a, b) as explicitly erased.
func (g *BondGraph) Tombstone(a, b int) {
	key := NewPair(a, b)
	if i := g.indexOf(key); i >= 0 {
		g.entries[i].Weight = nil
		return
	}
	g.entries = append(g.entries, bondEntry{Key: key, Weight: nil})
}

// Get returns the bond order for (a, b) and whether the key is present at
// all (a present tombstone returns ok=true, weight=nil).
func (g *BondGraph) Get(a, b int) (*float64, bool) {
	if i := g.indexOf(NewPair(a, b)); i >= 0 {
		return g.entries[i].Weight, true
	}
	return nil, false
}

// Delete removes the key (a, b) entirely, as distinct from tombstoning it.
func (g *BondGraph) Delete(a, b int) {
	key := NewPair(a, b)
	if i := g.indexOf(key); i >= 0 {
		g.entries = append(g.entries[:i], g.entries[i+1:]...)
	}
}

// Clear empties the graph in place, used by the IgnoreBonds layer.
func (g *BondGraph) Clear() {
	g.entries = nil
}

// Len returns the number of keys, including tombstones.
func (g *BondGraph) Len() int {
	return len(g.entries)
}

// Range visits every (pair, weight) entry. Stops early if f returns false.
func (g *BondGraph) Range(f func(Pair[int], *float64) bool) {
	for _, e := range g.entries {
		if !f(e.Key, e.Weight) {
			return
		}
	}
}

// Clone returns a deep copy of the graph.
func (g *BondGraph) Clone() BondGraph {
	out := BondGraph{entries: make([]bondEntry, len(g.entries))}
	for i, e := range g.entries {
		if e.Weight == nil {
			out.entries[i] = bondEntry{Key: e.Key}
			continue
		}
		w := *e.Weight
		out.entries[i] = bondEntry{Key: e.Key, Weight: &w}
	}
	return out
}

// Extend merges high's entries into g, high overriding g on collision.
// Mirrors HashMap::extend used by original_source's Layer::read/write.
func (g *BondGraph) Extend(high BondGraph) {
	for _, e := range high.entries {
		if i := g.indexOf(e.Key); i >= 0 {
			g.entries[i].Weight = e.Weight
			continue
		}
		g.entries = append(g.entries, e)
	}
}

// Shift returns a copy of the graph with every endpoint offset by delta.
// This is the "offset-shifting" operation named for BondGraph: a caller
// combining molecules at disjoint index ranges (or renumbering a stack's
// atoms after a removal) can relocate a whole edge set by a constant
// without touching individual keys.
func (g *BondGraph) Shift(delta int) BondGraph {
	out := BondGraph{entries: make([]bondEntry, len(g.entries))}
	for i, e := range g.entries {
		a, b := e.Key.Members()
		out.entries[i] = bondEntry{Key: NewPair(a+delta, b+delta), Weight: e.Weight}
	}
	return out
}

// remap returns a copy of the graph with endpoints translated through
// idx, dropping any edge with an endpoint absent from idx or whose weight
// is tombstoned. Used by Clean to project edges onto the dense index
// space produced by dropping tombstoned atoms.
func (g *BondGraph) remap(idx map[int]int) []bondEntry {
	out := make([]bondEntry, 0, len(g.entries))
	for _, e := range g.entries {
		if e.Weight == nil {
			continue
		}
		a, b := e.Key.Members()
		na, ok1 := idx[a]
		nb, ok2 := idx[b]
		if !ok1 || !ok2 {
			continue
		}
		w := *e.Weight
		out = append(out, bondEntry{Key: NewPair(na, nb), Weight: &w})
	}
	return out
}
