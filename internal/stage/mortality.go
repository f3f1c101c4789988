package stage

import (
	"math"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

var mortalityTemplate = kern.TemplateUnit{
	Name: VarMortality,
	Attrs: map[string]string{
		"standard_name": "survival_rate",
		"long_name":     "temperature-driven survival factor per timestep",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

// mortalityField converts temperature into the per-timestep survival
// factor exp(-dt * lambda) with lambda = lambda_0 * exp(gamma * T).
func mortalityField(st *state.State) (map[string]*grid.Array, error) {
	avg, err := st.Get(VarAvgTemperature)
	if err != nil {
		return nil, err
	}
	lambda0, err := st.Get(ParamLambda0)
	if err != nil {
		return nil, err
	}
	gamma, err := st.Get(ParamGammaLambda)
	if err != nil {
		return nil, err
	}
	timestep, err := st.Get(ParamTimestep)
	if err != nil {
		return nil, err
	}
	dt := timestep.Value()

	nf := avg.DimLen(DimFGroup)
	nt := avg.DimLen(DimTime)
	ny := avg.DimLen(DimY)
	nx := avg.DimLen(DimX)

	out := grid.New(VarMortality, grid.Float64,
		mustCoord(avg, DimFGroup), mustCoord(avg, DimTime), mustCoord(avg, DimY), mustCoord(avg, DimX))
	for f := 0; f < nf; f++ {
		l0 := lambda0.At(f)
		g := gamma.At(f)
		for t := 0; t < nt; t++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					lambda := l0 * math.Exp(g*avg.At(f, t, y, x))
					out.SetAt(math.Exp(-dt*lambda), f, t, y, x)
				}
			}
		}
	}
	return map[string]*grid.Array{VarMortality: out}, nil
}

// Mortality builds the survival-factor stage.
func Mortality(evict ...string) kern.Unit {
	return kern.MustUnit("mortality_field", []kern.TemplateUnit{mortalityTemplate}, mortalityField, evict...)
}
