package stack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lme/lmecore/layer"
	"github.com/lme/lmecore/molecule"
)

func TestEmptyStackReadIsIdentity(t *testing.T) {
	base := molecule.Empty()
	base.Atoms[0] = &molecule.Atom{Element: 6, Position: [3]float64{1, 2, 3}}

	s := New(nil)
	out, err := s.Read(context.Background(), base)
	require.NoError(t, err)
	require.Equal(t, base.Atoms[0], out.Atoms[0]) // P3
}

func TestSingleEmptyFillReadsToBase(t *testing.T) {
	base := molecule.Empty()
	base.Atoms[0] = &molecule.Atom{Element: 6, Position: [3]float64{1, 2, 3}}

	s := FromLayer(layer.NewFill(molecule.Empty()))
	out, err := s.Read(context.Background(), base)
	require.NoError(t, err)
	require.Equal(t, base.Atoms[0], out.Atoms[0]) // P3
}

func TestWriteCollapsesIntoTopFill(t *testing.T) {
	m1 := molecule.Empty()
	m1.Atoms[0] = &molecule.Atom{Element: 6, Position: [3]float64{0, 0, 0}}
	m2 := molecule.Empty()
	m2.Atoms[1] = &molecule.Atom{Element: 1, Position: [3]float64{1, 0, 0}}

	s := New(nil).Write(m1).Write(m2)
	require.Equal(t, 1, s.Len()) // collapsed into a single Fill

	out, err := s.Read(context.Background(), molecule.Empty())
	require.NoError(t, err)
	require.NotNil(t, out.Atoms[0])
	require.NotNil(t, out.Atoms[1])
}

func TestWriteAppendsWhenTopIsNotFill(t *testing.T) {
	s := FromLayer(layer.IgnoreBonds{}).Write(molecule.Empty())
	require.Equal(t, 2, s.Len())
}

func TestBaseRemovesTopLayer(t *testing.T) {
	s := FromLayer(layer.IgnoreBonds{}).AddLayer(layer.IgnoreBonds{})
	require.Equal(t, 1, s.Base().Len())
	require.Equal(t, 0, s.Base().Base().Len())
	require.Equal(t, 0, s.Base().Base().Base().Len()) // empty stack's Base is itself
}

func TestReadStopsAtFirstError(t *testing.T) {
	s := New([]layer.Layer{
		layer.NewPluginFilter("does-not-exist", nil),
		layer.IgnoreBonds{},
	})
	_, err := s.Read(context.Background(), molecule.Empty())
	require.Error(t, err)
}

func TestAddLayerSharesReferenceAcrossClones(t *testing.T) {
	l := layer.NewFill(molecule.Empty())
	s1 := New(nil).AddLayer(l)
	s2 := s1.AddLayer(layer.IgnoreBonds{})

	require.Equal(t, 1, s1.Len())
	require.Equal(t, 2, s2.Len())
	require.True(t, s1.Layers()[0].Equal(s2.Layers()[0]))
}

func TestEqualIsStructuralNotReference(t *testing.T) {
	a := FromLayer(layer.ReplaceElement{From: 1, To: 6})
	b := FromLayer(layer.ReplaceElement{From: 1, To: 6})
	require.True(t, a.Equal(b))

	c := FromLayer(layer.ReplaceElement{From: 1, To: 7})
	require.False(t, a.Equal(c))
}

func TestOrderSensitivity(t *testing.T) {
	// P4, at the stack level: RemoveElement then Fill differs from the
	// reverse order.
	fillH := molecule.Empty()
	fillH.Atoms[1] = &molecule.Atom{Element: 1, Position: [3]float64{0, 0, 0}}

	removeThenFill := New([]layer.Layer{layer.RemoveElement{Element: 1}, layer.NewFill(fillH)})
	fillThenRemove := New([]layer.Layer{layer.NewFill(fillH), layer.RemoveElement{Element: 1}})

	out1, err := removeThenFill.Read(context.Background(), molecule.Empty())
	require.NoError(t, err)
	out2, err := fillThenRemove.Read(context.Background(), molecule.Empty())
	require.NoError(t, err)

	require.NotNil(t, out1.Atoms[1])
	require.Nil(t, out2.Atoms[1])
}
