package stage

import (
	"math"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

var ppByFGroupTemplate = kern.TemplateUnit{
	Name: VarPPByFGroup,
	Attrs: map[string]string{
		"standard_name": "primary_production_by_functional_group",
		"long_name":     "primary production apportioned to functional group",
		"units":         "kg m-2 d-1",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

// applyCoefficientToPrimaryProduction scales the primary production
// forcing by each group's energy transfert coefficient.
func applyCoefficientToPrimaryProduction(st *state.State) (map[string]*grid.Array, error) {
	pp, err := st.Get(VarPrimaryProduction)
	if err != nil {
		return nil, err
	}
	energyTransfert, err := st.Get(ParamEnergyTransfert)
	if err != nil {
		return nil, err
	}

	nf := energyTransfert.DimLen(DimFGroup)
	nt := pp.DimLen(DimTime)
	ny := pp.DimLen(DimY)
	nx := pp.DimLen(DimX)

	out := grid.New(VarPPByFGroup, grid.Float64,
		mustCoord(energyTransfert, DimFGroup), mustCoord(pp, DimTime), mustCoord(pp, DimY), mustCoord(pp, DimX))
	for f := 0; f < nf; f++ {
		coeff := energyTransfert.At(f)
		for t := 0; t < nt; t++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					out.SetAt(coeff*pp.At(t, y, x), f, t, y, x)
				}
			}
		}
	}
	return map[string]*grid.Array{VarPPByFGroup: out}, nil
}

// PrimaryProductionByFGroup builds the apportioning stage.
func PrimaryProductionByFGroup(evict ...string) kern.Unit {
	return kern.MustUnit("apply_coefficient_to_primary_production",
		[]kern.TemplateUnit{ppByFGroupTemplate}, applyCoefficientToPrimaryProduction, evict...)
}

var recruitedTemplate = kern.TemplateUnit{
	Name: VarRecruited,
	Attrs: map[string]string{
		"standard_name": "recruited_production",
		"long_name":     "production recruited over all cohorts",
		"units":         "kg m-2 d-1",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

var preproductionTemplate = kern.TemplateUnit{
	Name: VarPreproduction,
	Attrs: map[string]string{
		"standard_name": "unrecruited_production",
		"long_name":     "unrecruited production by cohort after the last timestep",
		"units":         "kg m-2 d-1",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimY), kern.Label(DimX), kern.Label(DimCohort)},
	DType: grid.Float64,
}

// ageing transfers a fraction 1/n of each cohort's unrecruited
// production to the next age class; the oldest cohort only accumulates.
// buffers are [cohort] for a single cell.
func ageing(cell, aged []float64, timestepsNumber *grid.Array, f int) {
	nc := len(cell)
	for c := 0; c < nc; c++ {
		aged[c] = 0
	}
	for c := 0; c < nc-1; c++ {
		coeff := 1.0 / timestepsNumber.At(f, c)
		aged[c] += cell[c] * (1 - coeff)
		aged[c+1] += cell[c] * coeff
	}
	aged[nc-1] += cell[nc-1]
}

// productionFunc runs the cohort recruitment recursion through time.
// For each timestep the fresh primary production enters the youngest
// cohort, recruitment happens where the temperature mask allows it and
// the remainder ages into older cohorts. The recursion runs per spatial
// cell, so splitting the domain into latitude/longitude tiles does not
// change the result.
func productionFunc(exportPreproduction bool) kern.Func {
	return func(st *state.State) (map[string]*grid.Array, error) {
		pp, err := st.Get(VarPPByFGroup)
		if err != nil {
			return nil, err
		}
		maskTemp, err := st.Get(VarMaskTemperature)
		if err != nil {
			return nil, err
		}
		timestepsNumber, err := st.Get(ParamTimestepsNumber)
		if err != nil {
			return nil, err
		}
		var initial *grid.Array
		if st.Has(ParamInitialProduction) {
			initial, _ = st.Get(ParamInitialProduction)
		}

		nf := pp.DimLen(DimFGroup)
		nt := pp.DimLen(DimTime)
		ny := pp.DimLen(DimY)
		nx := pp.DimLen(DimX)
		nc := timestepsNumber.DimLen(DimCohort)

		recruited := grid.New(VarRecruited, grid.Float64,
			mustCoord(pp, DimFGroup), mustCoord(pp, DimTime), mustCoord(pp, DimY), mustCoord(pp, DimX))
		var preproduction *grid.Array
		if exportPreproduction {
			preproduction = grid.New(VarPreproduction, grid.Float64,
				mustCoord(pp, DimFGroup), mustCoord(pp, DimY), mustCoord(pp, DimX), mustCoord(timestepsNumber, DimCohort))
		}

		cohorts := make([]float64, nc)
		aged := make([]float64, nc)
		for f := 0; f < nf; f++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					for c := 0; c < nc; c++ {
						cohorts[c] = 0
						if initial != nil {
							cohorts[c] = noNaN(initial.At(f, y, x, c))
						}
					}
					for t := 0; t < nt; t++ {
						cohorts[0] += noNaN(pp.At(f, t, y, x))
						total := 0.0
						for c := 0; c < nc; c++ {
							if maskTemp.At(f, t, y, x, c) != 0 {
								total += cohorts[c]
								cohorts[c] = 0
							}
						}
						recruited.SetAt(total, f, t, y, x)
						if t < nt-1 || exportPreproduction {
							ageing(cohorts, aged, timestepsNumber, f)
							copy(cohorts, aged)
						}
					}
					if exportPreproduction {
						for c := 0; c < nc; c++ {
							preproduction.SetAt(cohorts[c], f, y, x, c)
						}
					}
				}
			}
		}

		out := map[string]*grid.Array{VarRecruited: recruited}
		if exportPreproduction {
			out[VarPreproduction] = preproduction
		}
		return out, nil
	}
}

// Production builds the recruitment stage. With exportPreproduction the
// stage also declares and produces the unrecruited cohort field usable
// as an initial condition for a follow-up run.
func Production(exportPreproduction bool, evict ...string) kern.Unit {
	templates := []kern.TemplateUnit{recruitedTemplate}
	if exportPreproduction {
		templates = append(templates, preproductionTemplate)
	}
	return kern.MustUnit("production", templates, productionFunc(exportPreproduction), evict...)
}

func noNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
