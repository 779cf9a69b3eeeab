// Package layer implements the transformation sum type applied, in
// sequence, by a stack. Each variant either is a pure function of a
// Molecule or delegates to the plugin bridge.
package layer

import (
	"context"
	"reflect"

	"github.com/lme/lmecore/molecule"
	"github.com/lme/lmecore/plugin"
)

// Layer is a single transformation step. Filter applies it to an input
// molecule; Equal reports structural equality, used by stacktree to
// decide whether two stacks share a node.
type Layer interface {
	Filter(ctx context.Context, input molecule.Molecule) (molecule.Molecule, error)
	Equal(other Layer) bool
}

// Fill merges M into the input molecule, with M overriding the input on
// key collision. Fill(empty) is the identity layer (Invariant L1).
type Fill struct {
	M molecule.Molecule
}

// NewFill returns a Fill layer wrapping m.
func NewFill(m molecule.Molecule) Fill { return Fill{M: m} }

func (f Fill) Filter(_ context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	return molecule.Merge(input, f.M), nil
}

func (f Fill) Equal(other Layer) bool {
	o, ok := other.(Fill)
	if !ok {
		return false
	}
	return moleculesEqual(f.M, o.M)
}

// Transform applies a general affine transform, position' = Matrix*position
// + Translation, to every present atom's position. Tombstones are left
// untouched. Transform{Identity3, zero} is the identity layer (Invariant
// L1). This generalizes original_source's separate Rotation{matrix,
// center} and Translate{vector} variants into the one affine
// representation their composition actually needs.
type Transform struct {
	Matrix      [3][3]float64
	Translation [3]float64
}

// Identity3 is the 3x3 identity matrix.
var Identity3 = [3][3]float64{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// NewTranslate returns a Transform that translates every atom by v and
// otherwise leaves it unchanged. Grounded on original_source's
// Translate{vector} variant.
func NewTranslate(v [3]float64) Transform {
	return Transform{Matrix: Identity3, Translation: v}
}

// NewRotation returns a Transform that rotates every atom by matrix
// about center. Grounded on original_source's Rotation{matrix, center}:
// position' = matrix*(position-center) + center, expressed as the
// equivalent affine pair (matrix, center - matrix*center).
func NewRotation(matrix [3][3]float64, center [3]float64) Transform {
	mc := applyLinear(matrix, center)
	return Transform{
		Matrix: matrix,
		Translation: [3]float64{
			center[0] - mc[0],
			center[1] - mc[1],
			center[2] - mc[2],
		},
	}
}

func applyLinear(m [3][3]float64, p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m[i][0]*p[0] + m[i][1]*p[1] + m[i][2]*p[2]
	}
	return out
}

func (t Transform) apply(p [3]float64) [3]float64 {
	r := applyLinear(t.Matrix, p)
	return [3]float64{
		r[0] + t.Translation[0],
		r[1] + t.Translation[1],
		r[2] + t.Translation[2],
	}
}

func (t Transform) Filter(_ context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	out := input.Clone()
	for idx, atom := range out.Atoms {
		if atom == nil {
			continue
		}
		moved := *atom
		moved.Position = t.apply(moved.Position)
		out.Atoms[idx] = &moved
	}
	return out, nil
}

func (t Transform) Equal(other Layer) bool {
	o, ok := other.(Transform)
	if !ok {
		return false
	}
	return t.Matrix == o.Matrix && t.Translation == o.Translation
}

// IgnoreBonds clears the edge map. Idempotent (Invariant L1).
type IgnoreBonds struct{}

func (IgnoreBonds) Filter(_ context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	out := input.Clone()
	out.Bonds.Clear()
	return out, nil
}

func (IgnoreBonds) Equal(other Layer) bool {
	_, ok := other.(IgnoreBonds)
	return ok
}

// ReplaceElement rewrites every present atom with element == From to
// element == To. Composing ReplaceElement(a,b) then ReplaceElement(a,c)
// is NOT the same as a single ReplaceElement(a,c): the first rewrites
// a->b, leaving nothing with element a left for the second to see
// (Invariant L1).
type ReplaceElement struct {
	From, To int
}

func (r ReplaceElement) Filter(_ context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	out := input.Clone()
	for idx, atom := range out.Atoms {
		if atom == nil || atom.Element != r.From {
			continue
		}
		replaced := *atom
		replaced.Element = r.To
		out.Atoms[idx] = &replaced
	}
	return out, nil
}

func (r ReplaceElement) Equal(other Layer) bool {
	o, ok := other.(ReplaceElement)
	return ok && r == o
}

// RemoveElement replaces every present atom with element == Element with
// a tombstone. Idempotent (Invariant L1).
type RemoveElement struct {
	Element int
}

func (r RemoveElement) Filter(_ context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	out := input.Clone()
	for idx, atom := range out.Atoms {
		if atom != nil && atom.Element == r.Element {
			out.Atoms[idx] = nil
		}
	}
	return out, nil
}

func (r RemoveElement) Equal(other Layer) bool {
	o, ok := other.(RemoveElement)
	return ok && r == o
}

// HideHydrogens is the supplemental variant recovered from
// original_source/src/layer.rs's HideHydrogens{valence_table}, left
// unimplemented there. For every present atom whose element is listed in
// ValenceTable, it tombstones up to that many hydrogen (element 1)
// neighbors, chosen by ascending atom index, as a cheap stand-in for
// hiding implicit hydrogens up to the declared valence.
type HideHydrogens struct {
	ValenceTable map[int]int
}

func (h HideHydrogens) Filter(_ context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	out := input.Clone()
	for idx, atom := range out.Atoms {
		if atom == nil {
			continue
		}
		limit, ok := h.ValenceTable[atom.Element]
		if !ok {
			continue
		}
		hidden := 0
		neighbors := neighborsOf(out, idx)
		for _, n := range neighbors {
			if hidden >= limit {
				break
			}
			neighborAtom := out.Atoms[n]
			if neighborAtom != nil && neighborAtom.Element == 1 {
				out.Atoms[n] = nil
				hidden++
			}
		}
	}
	return out, nil
}

func neighborsOf(m molecule.Molecule, idx int) []int {
	var out []int
	m.Bonds.Range(func(p molecule.Pair[int], w *float64) bool {
		if w == nil || !p.Contains(idx) {
			return true
		}
		a, b := p.Members()
		if a == idx {
			out = append(out, b)
		} else {
			out = append(out, a)
		}
		return true
	})
	sortInts(out)
	return out
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func (h HideHydrogens) Equal(other Layer) bool {
	o, ok := other.(HideHydrogens)
	if !ok {
		return false
	}
	return reflect.DeepEqual(h.ValenceTable, o.ValenceTable)
}

// PluginFilter delegates to an external program via the plugin bridge
// (§4.2, §4.7): the program's additive molecule is merged into the
// input. Six distinct PluginError codes cover its failure modes.
type PluginFilter struct {
	Command string
	Args    []string
	bridge  *plugin.Bridge
}

// NewPluginFilter returns a PluginFilter invoking cmd with args through
// the shared plugin bridge.
func NewPluginFilter(cmd string, args []string) PluginFilter {
	return PluginFilter{Command: cmd, Args: args, bridge: plugin.New()}
}

func (p PluginFilter) Filter(ctx context.Context, input molecule.Molecule) (molecule.Molecule, error) {
	bridge := p.bridge
	if bridge == nil {
		bridge = plugin.New()
	}
	patch, err := bridge.Invoke(ctx, p.Command, p.Args, input)
	if err != nil {
		return molecule.Molecule{}, err
	}
	return molecule.Merge(input, patch), nil
}

func (p PluginFilter) Equal(other Layer) bool {
	o, ok := other.(PluginFilter)
	if !ok || p.Command != o.Command || len(p.Args) != len(o.Args) {
		return false
	}
	for i := range p.Args {
		if p.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

func moleculesEqual(a, b molecule.Molecule) bool {
	if len(a.Atoms) != len(b.Atoms) {
		return false
	}
	for idx, atom := range a.Atoms {
		other, ok := b.Atoms[idx]
		if !ok {
			return false
		}
		if (atom == nil) != (other == nil) {
			return false
		}
		if atom != nil && *atom != *other {
			return false
		}
	}
	if a.Bonds.Len() != b.Bonds.Len() {
		return false
	}
	equal := true
	a.Bonds.Range(func(p molecule.Pair[int], w *float64) bool {
		x, y := p.Members()
		ow, ok := b.Bonds.Get(x, y)
		if !ok || (w == nil) != (ow == nil) || (w != nil && *w != *ow) {
			equal = false
			return false
		}
		return true
	})
	if !equal {
		return false
	}
	if a.Groups == nil || b.Groups == nil {
		return (a.Groups == nil || a.Groups.Len() == 0) && (b.Groups == nil || b.Groups.Len() == 0)
	}
	return reflect.DeepEqual(a.Groups, b.Groups)
}
