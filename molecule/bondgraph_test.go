package molecule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairSymmetry(t *testing.T) {
	a, b := NewPair(3, 7), NewPair(7, 3)
	require.Equal(t, a, b) // P2: Pair(a,b) == Pair(b,a)
	require.True(t, a.Contains(3))
	require.True(t, a.Contains(7))
	require.False(t, a.Contains(4))
}

func TestBondGraphSetGetTombstone(t *testing.T) {
	g := NewBondGraph()
	g.Set(1, 2, 1.5)
	w, ok := g.Get(1, 2)
	require.True(t, ok)
	require.Equal(t, 1.5, *w)

	// symmetric lookup
	w, ok = g.Get(2, 1)
	require.True(t, ok)
	require.Equal(t, 1.5, *w)

	g.Tombstone(1, 2)
	w, ok = g.Get(1, 2)
	require.True(t, ok)
	require.Nil(t, w)
}

func TestBondGraphDeleteAndClear(t *testing.T) {
	g := NewBondGraph()
	g.Set(1, 2, 1.0)
	g.Set(2, 3, 2.0)
	g.Delete(1, 2)
	_, ok := g.Get(1, 2)
	require.False(t, ok)
	require.Equal(t, 1, g.Len())

	g.Clear()
	require.Equal(t, 0, g.Len())
}

func TestBondGraphExtendHighOverrides(t *testing.T) {
	low := NewBondGraph()
	low.Set(1, 2, 1.0)
	low.Set(3, 4, 3.0)

	high := NewBondGraph()
	high.Set(1, 2, 99.0)
	high.Tombstone(3, 4)

	low.Extend(high)
	w, _ := low.Get(1, 2)
	require.Equal(t, 99.0, *w)
	w, _ = low.Get(3, 4)
	require.Nil(t, w)
}

func TestBondGraphShift(t *testing.T) {
	g := NewBondGraph()
	g.Set(1, 2, 1.0)
	shifted := g.Shift(10)
	_, ok := shifted.Get(1, 2)
	require.False(t, ok)
	w, ok := shifted.Get(11, 12)
	require.True(t, ok)
	require.Equal(t, 1.0, *w)
}

func TestBondGraphRangeAndClone(t *testing.T) {
	g := NewBondGraph()
	g.Set(1, 2, 1.0)
	g.Set(2, 3, 2.0)

	clone := g.Clone()
	g.Set(1, 2, 5.0)
	w, _ := clone.Get(1, 2)
	require.Equal(t, 1.0, *w) // clone unaffected by later mutation

	count := 0
	clone.Range(func(p Pair[int], w *float64) bool {
		count++
		return true
	})
	require.Equal(t, 2, count)
}
