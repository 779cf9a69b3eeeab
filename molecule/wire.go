package molecule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WireAtom is the JSON shape of an Atom (§6): {"element": u, "position": [x,y,z]}.
type WireAtom struct {
	Element  int        `json:"element"`
	Position [3]float64 `json:"position"`
}

// WireMolecule is the JSON shape of a Molecule (§6):
//
//	{"atoms": {index_str: Atom|null, ...},
//	 "bonds": {pair_key: number|null, ...},
//	 "groups": [[index, tag], ...]}
//
// Bond pair keys are serialized as "low,high" in canonical (sorted) order.
type WireMolecule struct {
	Atoms  map[string]*WireAtom `json:"atoms"`
	Bonds  map[string]*float64  `json:"bonds"`
	Groups [][2]interface{}     `json:"groups"`
}

// ToWire converts m to its JSON-ready shape.
func ToWire(m Molecule) (WireMolecule, error) {
	atoms := make(map[string]*WireAtom, len(m.Atoms))
	for idx, atom := range m.Atoms {
		key := strconv.Itoa(idx)
		if atom == nil {
			atoms[key] = nil
			continue
		}
		atoms[key] = &WireAtom{Element: atom.Element, Position: atom.Position}
	}
	bonds := make(map[string]*float64, m.Bonds.Len())
	m.Bonds.Range(func(p Pair[int], w *float64) bool {
		bonds[pairKey(p)] = w
		return true
	})
	var groups [][2]interface{}
	if m.Groups != nil {
		for _, pair := range m.Groups.Pairs() {
			groups = append(groups, [2]interface{}{pair[0], pair[1]})
		}
	}
	return WireMolecule{Atoms: atoms, Bonds: bonds, Groups: groups}, nil
}

// FromWire reconstructs a Molecule from its JSON-ready shape.
func FromWire(w WireMolecule) (Molecule, error) {
	m := Empty()
	for key, atom := range w.Atoms {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return Molecule{}, errors.Wrapf(err, "atom index %q", key)
		}
		if atom == nil {
			m.Atoms[idx] = nil
			continue
		}
		a := Atom{Element: atom.Element, Position: atom.Position}
		m.Atoms[idx] = &a
	}
	for key, weight := range w.Bonds {
		a, b, err := parsePairKey(key)
		if err != nil {
			return Molecule{}, err
		}
		if weight == nil {
			m.Bonds.Tombstone(a, b)
			continue
		}
		m.Bonds.Set(a, b, *weight)
	}
	for _, pair := range w.Groups {
		idx, err := toInt(pair[0])
		if err != nil {
			return Molecule{}, errors.Wrap(err, "group index")
		}
		tag, ok := pair[1].(string)
		if !ok {
			return Molecule{}, errors.Errorf("group tag is not a string: %v", pair[1])
		}
		m.Groups.Insert(idx, tag)
	}
	return m, nil
}

func pairKey(p Pair[int]) string {
	a, b := p.Members()
	return fmt.Sprintf("%d,%d", a, b)
}

func parsePairKey(key string) (int, int, error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("malformed bond key %q", key)
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "bond key %q", key)
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "bond key %q", key)
	}
	return a, b, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case int:
		return n, nil
	default:
		return 0, errors.Errorf("not a number: %v", v)
	}
}
