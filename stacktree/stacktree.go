// Package stacktree implements the prefix-tree serialization form for a
// collection of stacks: dehydration compresses many stacks sharing
// common prefixes into a shared-prefix forest, and hydration reconstructs
// the original indexed stack list from it.
package stacktree

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/lme/lmecore/layer"
	"github.com/lme/lmecore/stack"
)

// Node is one node of a dehydrated stack forest: a layer value, the
// stack indexes that terminate exactly here, and the node's children.
//
// Invariant T1: no two children of the same node share a layer equal by
// Layer.Equal — tryMerge below enforces this by construction, never by
// a post-hoc check.
type Node struct {
	Layer    layer.Layer
	Indexes  []int
	Children []*Node
}

// Forest is the complete dehydrated form of a stack collection: the
// prefix-tree roots, plus the indexes of any input stacks that had zero
// layers (the empty stack has no layer value to root a node on).
type Forest struct {
	Roots        []*Node
	EmptyIndexes []int
}

// Dehydrate compresses stacks into a shared-prefix forest such that
// every input stack corresponds to exactly one path from a root to a
// node (or, for the empty stack, an entry in EmptyIndexes), and its
// original index is recorded there.
func Dehydrate(stacks []stack.Stack) Forest {
	var forest Forest
	for i, s := range stacks {
		layers := s.Layers()
		if len(layers) == 0 {
			forest.EmptyIndexes = append(forest.EmptyIndexes, i)
			continue
		}
		if !tryMerge(forest.Roots, layers, i) {
			forest.Roots = append(forest.Roots, buildChain(layers, i))
		}
	}
	return forest
}

// tryMerge attempts to fold (layers, index) into one of nodes' matching
// children, per §4.5's algorithm: consume layers[0] against a node whose
// Layer compares equal, recursing into that node's children with the
// remainder; on a miss at this level, append a new sibling chain.
func tryMerge(nodes []*Node, layers []layer.Layer, index int) bool {
	for _, node := range nodes {
		if !layers[0].Equal(node.Layer) {
			continue
		}
		rest := layers[1:]
		if len(rest) == 0 {
			node.Indexes = append(node.Indexes, index)
			return true
		}
		if !tryMerge(node.Children, rest, index) {
			node.Children = append(node.Children, buildChain(rest, index))
		}
		return true
	}
	return false
}

// buildChain builds the linear chain of nodes representing layers, with
// the final layer's node carrying index.
func buildChain(layers []layer.Layer, index int) *Node {
	leaf := &Node{Layer: layers[len(layers)-1], Indexes: []int{index}}
	node := leaf
	for i := len(layers) - 2; i >= 0; i-- {
		node = &Node{Layer: layers[i], Children: []*Node{node}}
	}
	return node
}

type hydratedEntry struct {
	index int
	stack stack.Stack
}

// Hydrate reconstructs the indexed stack list from forest, such that for
// each original index i, stacks[i] has the same sequence of layers (by
// structural equality) as before dehydration (P5). It returns an error
// if the indexes recorded across the forest do not form exactly
// {0..N-1} once each (Invariant T2).
func Hydrate(forest Forest) ([]stack.Stack, error) {
	var entries []hydratedEntry
	var walk func(node *Node, path []layer.Layer)
	walk = func(node *Node, path []layer.Layer) {
		extended := make([]layer.Layer, len(path)+1)
		copy(extended, path)
		extended[len(path)] = node.Layer
		for _, idx := range node.Indexes {
			entries = append(entries, hydratedEntry{index: idx, stack: stack.New(extended)})
		}
		for _, child := range node.Children {
			walk(child, extended)
		}
	}
	for _, root := range forest.Roots {
		walk(root, nil)
	}
	for _, idx := range forest.EmptyIndexes {
		entries = append(entries, hydratedEntry{index: idx, stack: stack.New(nil)})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	out := make([]stack.Stack, len(entries))
	for i, e := range entries {
		if e.index != i {
			return nil, errors.Errorf("stacktree: indexes are not a dense permutation of [0,%d): got index %d at position %d", len(entries), e.index, i)
		}
		out[i] = e.stack
	}
	return out, nil
}
