package kern

import (
	"fmt"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/state"
)

// Dim declares one output dimension of a template: either a label
// resolved against the state's coordinate system, or an inline
// coordinate introducing a dimension the state does not carry yet (an
// age or cohort axis, for example).
type Dim struct {
	label  string
	inline *grid.Coordinate
}

// Label declares a dimension by coordinate label. The label must exist
// in the state when the template is generated.
func Label(name string) Dim { return Dim{label: name} }

// Inline declares a dimension by an inline coordinate.
func Inline(c grid.Coordinate) Dim { return Dim{inline: &c} }

// TemplateUnit describes one output variable of a stage: its name,
// attribute metadata, dimensions and dtype. It can synthesize an empty,
// correctly shaped array from the current state without computing any
// data.
type TemplateUnit struct {
	Name  string
	Attrs map[string]string
	Dims  []Dim
	DType grid.DType
}

// resolve looks up every declared dimension in the state and returns
// the ordered coordinates of the output array.
func (u TemplateUnit) resolve(st *state.State) ([]grid.Coordinate, error) {
	coords := make([]grid.Coordinate, len(u.Dims))
	for i, d := range u.Dims {
		if d.inline != nil {
			coords[i] = *d.inline
			continue
		}
		c, ok := st.Coord(d.label)
		if !ok {
			return nil, &ConfigurationError{Variable: u.Name, Dim: d.label}
		}
		coords[i] = c
	}
	return coords, nil
}

// Generate synthesizes the empty array the unit describes, shaped by
// the current state's coordinates. The array exists purely to describe
// shape, dtype and position for tiled execution to allocate into.
func (u TemplateUnit) Generate(st *state.State) (*grid.Array, error) {
	coords, err := u.resolve(st)
	if err != nil {
		return nil, err
	}
	a := grid.New(u.Name, u.DType, coords...)
	a.Attrs = u.Attrs
	return a, nil
}

// Template is the ordered set of template units describing the full
// output of one stage. No two units may declare the same name.
type Template struct {
	units []TemplateUnit
}

// NewTemplate assembles a template, rejecting duplicate output names.
func NewTemplate(units ...TemplateUnit) (Template, error) {
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if seen[u.Name] {
			return Template{}, fmt.Errorf("kern: template declares output %q twice", u.Name)
		}
		seen[u.Name] = true
	}
	return Template{units: units}, nil
}

// Units returns the declared template units in order.
func (t Template) Units() []TemplateUnit { return t.units }

// Declares reports whether the template declares the given output name.
func (t Template) Declares(name string) bool {
	for _, u := range t.units {
		if u.Name == name {
			return true
		}
	}
	return false
}

// Generate applies every unit and returns the aggregate of empty
// arrays, used as the allocation target when running a stage tiled.
func (t Template) Generate(st *state.State) (map[string]*grid.Array, error) {
	out := make(map[string]*grid.Array, len(t.units))
	for _, u := range t.units {
		a, err := u.Generate(st)
		if err != nil {
			return nil, err
		}
		out[u.Name] = a
	}
	return out, nil
}
