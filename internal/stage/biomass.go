package stage

import (
	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

var biomassTemplate = kern.TemplateUnit{
	Name: VarBiomass,
	Attrs: map[string]string{
		"standard_name": "biomass",
		"long_name":     "biomass by functional group",
		"units":         "kg m-2",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

// biomassFunc integrates B(t) = R(t) + M(t)*B(t-1), with M the survival
// factor computed by the mortality stage. The recursion runs along time
// per spatial cell.
func biomassFunc(st *state.State) (map[string]*grid.Array, error) {
	recruited, err := st.Get(VarRecruited)
	if err != nil {
		return nil, err
	}
	mortality, err := st.Get(VarMortality)
	if err != nil {
		return nil, err
	}
	var initial *grid.Array
	if st.Has(ParamInitialBiomass) {
		initial, _ = st.Get(ParamInitialBiomass)
	}

	nf := recruited.DimLen(DimFGroup)
	nt := recruited.DimLen(DimTime)
	ny := recruited.DimLen(DimY)
	nx := recruited.DimLen(DimX)

	out := grid.New(VarBiomass, grid.Float64,
		mustCoord(recruited, DimFGroup), mustCoord(recruited, DimTime),
		mustCoord(recruited, DimY), mustCoord(recruited, DimX))
	for f := 0; f < nf; f++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				prev := 0.0
				if initial != nil {
					prev = noNaN(initial.At(f, y, x))
				}
				for t := 0; t < nt; t++ {
					b := noNaN(recruited.At(f, t, y, x)) + noNaN(mortality.At(f, t, y, x))*prev
					out.SetAt(b, f, t, y, x)
					prev = b
				}
			}
		}
	}
	return map[string]*grid.Array{VarBiomass: out}, nil
}

// Biomass builds the biomass integration stage.
func Biomass(evict ...string) kern.Unit {
	return kern.MustUnit("biomass", []kern.TemplateUnit{biomassTemplate}, biomassFunc, evict...)
}
