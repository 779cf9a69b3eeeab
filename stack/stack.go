// Package stack implements an ordered sequence of shared-ownership layer
// references, evaluated bottom-to-top over a base molecule.
package stack

import (
	"context"

	"github.com/lme/lmecore/layer"
	"github.com/lme/lmecore/molecule"
)

// Stack is an ordered sequence of layers. The zero value is the empty
// stack, which reads as the identity over whatever base it is given.
//
// Stacks are immutable values: every mutator returns a new Stack. Two
// stacks may share layer instances by reference (Go interface values
// wrapping the same concrete layer naturally alias); no method here ever
// mutates a layer in place.
type Stack struct {
	layers []layer.Layer
}

// New builds a stack from an ordered list of layers (possibly empty).
// Layers are not copied; the slice itself is, so later appends to the
// caller's slice do not alias the stack's.
func New(layers []layer.Layer) Stack {
	out := make([]layer.Layer, len(layers))
	copy(out, layers)
	return Stack{layers: out}
}

// FromLayer is a one-layer-stack shorthand.
func FromLayer(l layer.Layer) Stack {
	return Stack{layers: []layer.Layer{l}}
}

// Layers returns the stack's layers, bottom to top. Callers must not
// mutate the returned slice.
func (s Stack) Layers() []layer.Layer {
	return s.layers
}

// Len returns the number of layers.
func (s Stack) Len() int {
	return len(s.layers)
}

// Base returns a new stack equal to s with its topmost layer removed.
// The empty stack's Base is itself.
func (s Stack) Base() Stack {
	if len(s.layers) == 0 {
		return s
	}
	return Stack{layers: s.layers[:len(s.layers)-1]}
}

// AddLayer returns a new stack with l appended on top.
func (s Stack) AddLayer(l layer.Layer) Stack {
	out := make([]layer.Layer, len(s.layers)+1)
	copy(out, s.layers)
	out[len(s.layers)] = l
	return Stack{layers: out}
}

// Write collapses a patch into the stack's topmost layer if it is a
// Fill, or appends a new Fill otherwise (§4.3: "collapses consecutive
// fills into a single logical edit"). This is the auto-append resolution
// of the original spec's Open Question on write_to_stack semantics.
func (s Stack) Write(m molecule.Molecule) Stack {
	if len(s.layers) > 0 {
		if top, ok := s.layers[len(s.layers)-1].(layer.Fill); ok {
			out := make([]layer.Layer, len(s.layers))
			copy(out, s.layers)
			out[len(out)-1] = layer.NewFill(molecule.Merge(top.M, m))
			return Stack{layers: out}
		}
	}
	return s.AddLayer(layer.NewFill(m))
}

// Read folds each layer's Filter over base, bottom to top (Ordering
// rule O1). If any layer fails, Read returns immediately; layers above
// the failure point are never applied.
func (s Stack) Read(ctx context.Context, base molecule.Molecule) (molecule.Molecule, error) {
	current := base
	for _, l := range s.layers {
		next, err := l.Filter(ctx, current)
		if err != nil {
			return molecule.Molecule{}, err
		}
		current = next
	}
	return current, nil
}

// Equal reports whether s and other have the same sequence of layers by
// structural equality (not by shared reference), used by the P5 round
// trip property and by tests.
func (s Stack) Equal(other Stack) bool {
	if len(s.layers) != len(other.layers) {
		return false
	}
	for i, l := range s.layers {
		if !l.Equal(other.layers[i]) {
			return false
		}
	}
	return true
}
