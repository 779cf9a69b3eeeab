package stacktree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/lme/lmecore/layer"
	"github.com/lme/lmecore/molecule"
	"github.com/lme/lmecore/stack"
)

func fillLayer(tag string) layer.Layer {
	m := molecule.Empty()
	m.Groups.Insert(0, tag)
	return layer.NewFill(m)
}

func TestDehydrateSharesCommonPrefix(t *testing.T) {
	a := fillLayer("shared")
	stacks := []stack.Stack{
		stack.New([]layer.Layer{a, fillLayer("x")}),
		stack.New([]layer.Layer{a, fillLayer("y")}),
	}
	forest := Dehydrate(stacks)
	require.Len(t, forest.Roots, 1) // shared prefix collapses to one root
	require.Len(t, forest.Roots[0].Children, 2)
}

func TestDehydrateDistinctLayersAreSiblingRoots(t *testing.T) {
	stacks := []stack.Stack{
		stack.New([]layer.Layer{fillLayer("a")}),
		stack.New([]layer.Layer{fillLayer("b")}),
	}
	forest := Dehydrate(stacks)
	require.Len(t, forest.Roots, 2) // T1: distinct layer content, no merge
}

func TestHydrateInverseOfDehydrate(t *testing.T) {
	stacks := []stack.Stack{
		stack.New([]layer.Layer{fillLayer("a"), fillLayer("x")}),
		stack.New([]layer.Layer{fillLayer("a"), fillLayer("y")}),
		stack.New(nil),
		stack.New([]layer.Layer{fillLayer("z")}),
	}
	forest := Dehydrate(stacks)
	got, err := Hydrate(forest)
	require.NoError(t, err)
	require.Len(t, got, len(stacks))
	for i := range stacks {
		require.True(t, stacks[i].Equal(got[i]), "index %d: %v != %v", i, stacks[i], got[i])
	}
}

func TestHydrateRejectsGapInIndexes(t *testing.T) {
	forest := Forest{
		Roots: []*Node{
			{Layer: fillLayer("a"), Indexes: []int{0, 5}},
		},
	}
	_, err := Hydrate(forest)
	require.Error(t, err) // T2 violated: indexes are not a dense permutation
}

// TestRoundTripProperty is P5: hydrate(dehydrate(S)) = S under structural
// stack equality, for arbitrary indexed stack collections built from a
// small alphabet of layers (so that sharing is exercised).
func TestRoundTripProperty(t *testing.T) {
	alphabet := []layer.Layer{
		fillLayer("a"), fillLayer("b"), fillLayer("c"), layer.IgnoreBonds{},
	}
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		stacks := make([]stack.Stack, n)
		for i := 0; i < n; i++ {
			depth := rapid.IntRange(0, 3).Draw(rt, "depth")
			layers := make([]layer.Layer, depth)
			for d := 0; d < depth; d++ {
				idx := rapid.IntRange(0, len(alphabet)-1).Draw(rt, "layer")
				layers[d] = alphabet[idx]
			}
			stacks[i] = stack.New(layers)
		}

		forest := Dehydrate(stacks)
		got, err := Hydrate(forest)
		if err != nil {
			rt.Fatalf("hydrate: %v", err)
		}
		if len(got) != len(stacks) {
			rt.Fatalf("length mismatch: got %d, want %d", len(got), len(stacks))
		}
		for i := range stacks {
			if !stacks[i].Equal(got[i]) {
				rt.Fatalf("index %d not preserved: %v != %v", i, stacks[i], got[i])
			}
		}
	})
}

func TestWireMarshalUnmarshalRoundTrip(t *testing.T) {
	stacks := []stack.Stack{
		stack.New([]layer.Layer{fillLayer("a"), fillLayer("x")}),
		stack.New([]layer.Layer{fillLayer("a"), fillLayer("y")}),
	}
	forest := Dehydrate(stacks)

	data, err := Marshal(forest)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	gotStacks, err := Hydrate(got)
	require.NoError(t, err)
	wantStacks, err := Hydrate(forest)
	require.NoError(t, err)
	require.Len(t, gotStacks, len(wantStacks))
	for i := range wantStacks {
		require.True(t, wantStacks[i].Equal(gotStacks[i]))
	}
}
