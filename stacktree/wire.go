package stacktree

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/lme/lmecore/layer"
)

// wireNode mirrors §6's StackTree shape:
//
//	{"layer": Layer, "indexes": [usize, ...], "children": [StackTree, ...]}
type wireNode struct {
	Layer    json.RawMessage `json:"layer"`
	Indexes  []int           `json:"indexes"`
	Children []wireNode      `json:"children"`
}

// wireForest adds the empty-stack indexes alongside the §6 root array,
// since the empty stack has no layer value to root a StackTree on.
type wireForest struct {
	Roots        []wireNode `json:"roots"`
	EmptyIndexes []int      `json:"empty_indexes,omitempty"`
}

// Marshal encodes forest to its JSON wire form.
func Marshal(forest Forest) ([]byte, error) {
	roots, err := marshalNodes(forest.Roots)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireForest{Roots: roots, EmptyIndexes: forest.EmptyIndexes})
}

func marshalNodes(nodes []*Node) ([]wireNode, error) {
	out := make([]wireNode, len(nodes))
	for i, n := range nodes {
		encodedLayer, err := layer.Marshal(n.Layer)
		if err != nil {
			return nil, err
		}
		children, err := marshalNodes(n.Children)
		if err != nil {
			return nil, err
		}
		out[i] = wireNode{Layer: encodedLayer, Indexes: n.Indexes, Children: children}
	}
	return out, nil
}

// Unmarshal decodes a Forest from its JSON wire form.
func Unmarshal(data []byte) (Forest, error) {
	var wf wireForest
	if err := json.Unmarshal(data, &wf); err != nil {
		return Forest{}, errors.Wrap(err, "stacktree: decode")
	}
	roots, err := unmarshalNodes(wf.Roots)
	if err != nil {
		return Forest{}, err
	}
	return Forest{Roots: roots, EmptyIndexes: wf.EmptyIndexes}, nil
}

func unmarshalNodes(wns []wireNode) ([]*Node, error) {
	if len(wns) == 0 {
		return nil, nil
	}
	out := make([]*Node, len(wns))
	for i, wn := range wns {
		l, err := layer.Unmarshal(wn.Layer)
		if err != nil {
			return nil, err
		}
		children, err := unmarshalNodes(wn.Children)
		if err != nil {
			return nil, err
		}
		out[i] = &Node{Layer: l, Indexes: wn.Indexes, Children: children}
	}
	return out, nil
}
