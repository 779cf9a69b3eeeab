package layer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lme/lmecore/molecule"
)

func atom(element int, x float64) *molecule.Atom {
	return &molecule.Atom{Element: element, Position: [3]float64{x, 0, 0}}
}

func TestFillIdentityOnEmpty(t *testing.T) {
	base := molecule.Empty()
	base.Atoms[0] = atom(6, 0)

	out, err := NewFill(molecule.Empty()).Filter(context.Background(), base)
	require.NoError(t, err)
	require.Equal(t, base.Atoms[0], out.Atoms[0]) // P3: Fill(empty) is identity
}

func TestTransformTranslate(t *testing.T) {
	m := molecule.Empty()
	m.Atoms[0] = atom(6, 1)

	tr := NewTranslate([3]float64{10, 0, 0})
	out, err := tr.Filter(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, [3]float64{11, 0, 0}, out.Atoms[0].Position)
}

func TestTransformRotationAboutCenterFixesCenter(t *testing.T) {
	// 90-degree rotation about Z through center (1,1,0): the center atom
	// itself must not move.
	quarterTurnZ := [3][3]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}
	center := [3]float64{1, 1, 0}
	rot := NewRotation(quarterTurnZ, center)

	m := molecule.Empty()
	m.Atoms[0] = &molecule.Atom{Element: 6, Position: center}

	out, err := rot.Filter(context.Background(), m)
	require.NoError(t, err)
	require.InDelta(t, center[0], out.Atoms[0].Position[0], 1e-9)
	require.InDelta(t, center[1], out.Atoms[0].Position[1], 1e-9)
}

func TestTransformIdentityIsIdentity(t *testing.T) {
	m := molecule.Empty()
	m.Atoms[0] = atom(6, 3)
	identity := Transform{Matrix: Identity3}

	out, err := identity.Filter(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, m.Atoms[0].Position, out.Atoms[0].Position)
}

func TestIgnoreBondsClearsEdgesIdempotently(t *testing.T) {
	m := molecule.Empty()
	m.Bonds.Set(0, 1, 1.0)

	out, err := IgnoreBonds{}.Filter(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, 0, out.Bonds.Len())

	out2, err := IgnoreBonds{}.Filter(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, 0, out2.Bonds.Len())
}

func TestReplaceElement(t *testing.T) {
	m := molecule.Empty()
	m.Atoms[0] = atom(1, 0)
	m.Atoms[1] = atom(6, 0)

	out, err := ReplaceElement{From: 1, To: 9}.Filter(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, 9, out.Atoms[0].Element)
	require.Equal(t, 6, out.Atoms[1].Element)
}

func TestRemoveElementIsIdempotent(t *testing.T) {
	m := molecule.Empty()
	m.Atoms[0] = atom(1, 0)

	r := RemoveElement{Element: 1}
	out, err := r.Filter(context.Background(), m)
	require.NoError(t, err)
	require.Nil(t, out.Atoms[0])

	out2, err := r.Filter(context.Background(), out)
	require.NoError(t, err)
	require.Nil(t, out2.Atoms[0])
}

func TestLayerOrderMatters(t *testing.T) {
	// P4: RemoveElement(1) then Fill({1:H}) differs from Fill then RemoveElement.
	base := molecule.Empty()

	fillH := molecule.Empty()
	fillH.Atoms[1] = atom(1, 0)

	removeThenFill := stackRead(t, base, RemoveElement{Element: 1}, NewFill(fillH))
	fillThenRemove := stackRead(t, base, NewFill(fillH), RemoveElement{Element: 1})

	require.NotNil(t, removeThenFill.Atoms[1])
	require.Nil(t, fillThenRemove.Atoms[1])
}

func stackRead(t *testing.T, base molecule.Molecule, layers ...Layer) molecule.Molecule {
	t.Helper()
	cur := base
	for _, l := range layers {
		next, err := l.Filter(context.Background(), cur)
		require.NoError(t, err)
		cur = next
	}
	return cur
}

func TestHideHydrogensTombstonesUpToValence(t *testing.T) {
	m := molecule.Empty()
	m.Atoms[0] = atom(6, 0) // carbon
	m.Atoms[1] = atom(1, 1) // hydrogen
	m.Atoms[2] = atom(1, 2) // hydrogen
	m.Bonds.Set(0, 1, 1.0)
	m.Bonds.Set(0, 2, 1.0)

	h := HideHydrogens{ValenceTable: map[int]int{6: 1}}
	out, err := h.Filter(context.Background(), m)
	require.NoError(t, err)

	hidden := 0
	if out.Atoms[1] == nil {
		hidden++
	}
	if out.Atoms[2] == nil {
		hidden++
	}
	require.Equal(t, 1, hidden) // valence limit of 1 hides exactly one neighbor
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []Layer{
		NewFill(molecule.Empty()),
		NewTranslate([3]float64{1, 2, 3}),
		IgnoreBonds{},
		ReplaceElement{From: 1, To: 6},
		RemoveElement{Element: 6},
		HideHydrogens{ValenceTable: map[int]int{6: 4}},
		NewPluginFilter("hydrogenate", []string{"--strict"}),
	}
	for _, l := range cases {
		data, err := Marshal(l)
		require.NoError(t, err)
		got, err := Unmarshal(data)
		require.NoError(t, err)
		require.True(t, l.Equal(got), "round trip mismatch for %T: %s", l, data)
	}
}
