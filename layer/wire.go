package layer

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/lme/lmecore/molecule"
)

// wireEnvelope mirrors the tagged-sum JSON shape of §6: each layer
// serializes as a single-key object (or, for IgnoreBonds, a bare
// string), keyed by variant name.
type wireEnvelope struct {
	Fill           *molecule.WireMolecule `json:"Fill,omitempty"`
	Transform      []float64              `json:"Transform,omitempty"`
	ReplaceElement *[2]int                `json:"ReplaceElement,omitempty"`
	RemoveElement  *int                   `json:"RemoveElement,omitempty"`
	PluginFilter   *pluginWire            `json:"PluginFilter,omitempty"`
	HideHydrogens  map[int]int            `json:"HideHydrogens,omitempty"`
}

type pluginWire struct {
	Command string
	Args    []string
}

func (p pluginWire) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Command, p.Args})
}

func (p *pluginWire) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &p.Command); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &p.Args)
}

// Marshal encodes a Layer to its tagged-sum JSON form.
func Marshal(l Layer) ([]byte, error) {
	switch v := l.(type) {
	case Fill:
		wire, err := molecule.ToWire(v.M)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Fill molecule.WireMolecule `json:"Fill"`
		}{wire})
	case Transform:
		return json.Marshal(struct {
			Transform []float64 `json:"Transform"`
		}{transformToFlat(v)})
	case IgnoreBonds:
		return json.Marshal("IgnoreBonds")
	case ReplaceElement:
		return json.Marshal(struct {
			ReplaceElement [2]int `json:"ReplaceElement"`
		}{[2]int{v.From, v.To}})
	case RemoveElement:
		return json.Marshal(struct {
			RemoveElement int `json:"RemoveElement"`
		}{v.Element})
	case HideHydrogens:
		return json.Marshal(struct {
			HideHydrogens map[int]int `json:"HideHydrogens"`
		}{v.ValenceTable})
	case PluginFilter:
		return json.Marshal(struct {
			PluginFilter pluginWire `json:"PluginFilter"`
		}{pluginWire{Command: v.Command, Args: v.Args}})
	default:
		return nil, errors.Errorf("layer: unknown variant %T", l)
	}
}

// Unmarshal decodes a Layer from its tagged-sum JSON form.
func Unmarshal(data []byte) (Layer, error) {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare == "IgnoreBonds" {
			return IgnoreBonds{}, nil
		}
		return nil, errors.Errorf("layer: unknown bare variant %q", bare)
	}
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "layer: decode")
	}
	switch {
	case env.Fill != nil:
		m, err := molecule.FromWire(*env.Fill)
		if err != nil {
			return nil, err
		}
		return Fill{M: m}, nil
	case env.Transform != nil:
		return flatToTransform(env.Transform)
	case env.ReplaceElement != nil:
		return ReplaceElement{From: env.ReplaceElement[0], To: env.ReplaceElement[1]}, nil
	case env.RemoveElement != nil:
		return RemoveElement{Element: *env.RemoveElement}, nil
	case env.HideHydrogens != nil:
		return HideHydrogens{ValenceTable: env.HideHydrogens}, nil
	case env.PluginFilter != nil:
		return NewPluginFilter(env.PluginFilter.Command, env.PluginFilter.Args), nil
	default:
		return nil, errors.New("layer: empty envelope")
	}
}

// transformToFlat encodes a Transform as the 16-number row-major
// homogeneous affine matrix named in §6 ("3x3 or 4x4 matrix ... flat
// array of 9 or 16 numbers"): the general case needs the 4x4 form since
// it carries a translation the 3x3 form cannot.
func transformToFlat(t Transform) []float64 {
	m := t.Matrix
	tr := t.Translation
	return []float64{
		m[0][0], m[0][1], m[0][2], tr[0],
		m[1][0], m[1][1], m[1][2], tr[1],
		m[2][0], m[2][1], m[2][2], tr[2],
		0, 0, 0, 1,
	}
}

func flatToTransform(flat []float64) (Transform, error) {
	switch len(flat) {
	case 9:
		return Transform{
			Matrix: [3][3]float64{
				{flat[0], flat[1], flat[2]},
				{flat[3], flat[4], flat[5]},
				{flat[6], flat[7], flat[8]},
			},
		}, nil
	case 16:
		return Transform{
			Matrix: [3][3]float64{
				{flat[0], flat[1], flat[2]},
				{flat[4], flat[5], flat[6]},
				{flat[8], flat[9], flat[10]},
			},
			Translation: [3]float64{flat[3], flat[7], flat[11]},
		}, nil
	default:
		return Transform{}, errors.Errorf("layer: Transform matrix must have 9 or 16 entries, got %d", len(flat))
	}
}
