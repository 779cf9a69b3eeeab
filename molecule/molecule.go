// Package molecule implements the leaf data structure shared by every
// layer in the editor: a sparse atom table with tombstones, an edge
// table with optional weights, and a group relation, plus the two
// operations that combine and present molecules (merge, clean).
package molecule

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lme/lmecore/namespace"
)

// Atom is a value type: freely copyable, never shared by reference.
type Atom struct {
	// Element is the atomic number, by convention. Not validated.
	Element int
	// Position is the atom's 3D coordinate.
	Position [3]float64
}

// Translate returns a copy of a with its position shifted by v.
func (a Atom) Translate(v [3]float64) Atom {
	return Atom{
		Element: a.Element,
		Position: [3]float64{
			a.Position[0] + v[0],
			a.Position[1] + v[1],
			a.Position[2] + v[2],
		},
	}
}

// Molecule is a mapping from atom-index to an optional Atom (a nil entry
// is a tombstone, Invariant M1), plus an edge table and a group relation.
//
// Molecules are immutable in normal use; merge and the layer filters each
// produce a new value rather than mutating their input.
type Molecule struct {
	// Atoms maps atom-index to Atom. A key present with a nil value is a
	// tombstone: explicitly erased by an upper layer, distinct from the
	// key being absent entirely.
	Atoms map[int]*Atom
	// Bonds maps unordered atom-index pairs to an optional bond order.
	Bonds BondGraph
	// Groups is the symmetric many-to-many relation between atom-index
	// and group-tag. Edges (Invariant M3) and groups may reference
	// indices that do not (yet) exist in Atoms.
	Groups *namespace.NtoN[int, string]
}

// Empty returns a molecule with no atoms, no bonds and no groups.
func Empty() Molecule {
	return Molecule{
		Atoms: make(map[int]*Atom),
		Bonds: NewBondGraph(),
		Groups: namespace.NewNtoN[int, string](),
	}
}

// Clone returns a deep copy of m.
func (m Molecule) Clone() Molecule {
	atoms := make(map[int]*Atom, len(m.Atoms))
	for idx, atom := range m.Atoms {
		if atom == nil {
			atoms[idx] = nil
			continue
		}
		a := *atom
		atoms[idx] = &a
	}
	groups := namespace.NewNtoN[int, string]()
	if m.Groups != nil {
		groups = m.Groups.Clone()
	}
	bonds := m.Bonds.Clone()
	return Molecule{Atoms: atoms, Bonds: bonds, Groups: groups}
}

// Merge combines low and high, with high overriding low on key collision
// (Invariant / P1): merge(L,H).Atoms[i] == H.Atoms[i] if present in H,
// else L.Atoms[i]. Bonds extend the same way. Groups are unioned. Returns
// a new molecule; neither input is mutated.
func Merge(low, high Molecule) Molecule {
	out := low.Clone()
	for idx, atom := range high.Atoms {
		if atom == nil {
			out.Atoms[idx] = nil
			continue
		}
		a := *atom
		out.Atoms[idx] = &a
	}
	out.Bonds.Extend(high.Bonds)
	if high.Groups != nil {
		for _, p := range high.Groups.Pairs() {
			out.Groups.Insert(p[0].(int), p[1].(string))
		}
	}
	return out
}

// cleanedAtom pairs a live atom with its original index while Clean sorts
// and reindexes.
type cleanedAtom struct {
	idx  int
	atom Atom
}

// Clean produces the presentation form of m: tombstones dropped, atoms
// sorted by original index and reassigned dense indices [0..k), every
// surviving edge remapped onto the new index space, and any edge whose
// endpoint vanished or whose weight is tombstoned dropped. The result is
// deterministic given the input.
//
// The two independent projections (the dense atom slice, and the
// remapped edge slice) are computed concurrently once the index
// remapping is known, mirroring original_source's use of rayon for the
// same computation.
func Clean(ctx context.Context, m Molecule) (atoms []Atom, bonds []Pair[int], weights []float64) {
	live := make([]cleanedAtom, 0, len(m.Atoms))
	for idx, atom := range m.Atoms {
		if atom == nil {
			continue
		}
		live = append(live, cleanedAtom{idx: idx, atom: *atom})
	}
	sort.Slice(live, func(i, j int) bool { return live[i].idx < live[j].idx })

	idxMap := make(map[int]int, len(live))
	for newIdx, entry := range live {
		idxMap[entry.idx] = newIdx
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		atoms = make([]Atom, len(live))
		for i, entry := range live {
			atoms[i] = entry.atom
		}
		return nil
	})
	g.Go(func() error {
		remapped := m.Bonds.remap(idxMap)
		bonds = make([]Pair[int], len(remapped))
		weights = make([]float64, len(remapped))
		for i, e := range remapped {
			bonds[i] = e.Key
			weights[i] = *e.Weight
		}
		return nil
	})
	_ = g.Wait() // both stages are infallible; error is always nil.
	return atoms, bonds, weights
}
