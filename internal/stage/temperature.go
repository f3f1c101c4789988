package stage

import (
	"math"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

var avgTemperatureTemplate = kern.TemplateUnit{
	Name: VarAvgTemperature,
	Attrs: map[string]string{
		"standard_name": "sea_water_temperature_by_functional_group",
		"long_name":     "average temperature experienced by functional group",
		"units":         "degC",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

// averageTemperature weights the day-layer and night-layer temperature
// of each group by day length: T = dl*T(day) + (1-dl)*T(night). Cells
// outside the group's habitat mask are NaN.
func averageTemperature(st *state.State) (map[string]*grid.Array, error) {
	temperature, err := st.Get(VarTemperature)
	if err != nil {
		return nil, err
	}
	dayLength, err := st.Get(VarDayLength)
	if err != nil {
		return nil, err
	}
	maskFGroup, err := st.Get(VarMaskFGroup)
	if err != nil {
		return nil, err
	}
	dayLayer, err := st.Get(ParamDayLayer)
	if err != nil {
		return nil, err
	}
	nightLayer, err := st.Get(ParamNightLayer)
	if err != nil {
		return nil, err
	}

	nf := dayLayer.DimLen(DimFGroup)
	nt := temperature.DimLen(DimTime)
	ny := temperature.DimLen(DimY)
	nx := temperature.DimLen(DimX)
	zCoord := mustCoord(temperature, DimZ)

	out := grid.New(VarAvgTemperature, grid.Float64,
		mustCoord(dayLayer, DimFGroup), mustCoord(temperature, DimTime),
		mustCoord(temperature, DimY), mustCoord(temperature, DimX))
	for f := 0; f < nf; f++ {
		dayZ, err := layerIndex(zCoord, dayLayer.At(f))
		if err != nil {
			return nil, err
		}
		nightZ, err := layerIndex(zCoord, nightLayer.At(f))
		if err != nil {
			return nil, err
		}
		for t := 0; t < nt; t++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					if maskFGroup.At(f, y, x) == 0 {
						out.SetAt(math.NaN(), f, t, y, x)
						continue
					}
					dl := dayLength.At(t, y, x)
					mean := dl*temperature.At(t, y, x, dayZ) + (1-dl)*temperature.At(t, y, x, nightZ)
					out.SetAt(mean, f, t, y, x)
				}
			}
		}
	}
	return map[string]*grid.Array{VarAvgTemperature: out}, nil
}

// AverageTemperature builds the per-group temperature stage.
func AverageTemperature(evict ...string) kern.Unit {
	return kern.MustUnit("average_temperature", []kern.TemplateUnit{avgTemperatureTemplate}, averageTemperature, evict...)
}

var minTemperatureTemplate = kern.TemplateUnit{
	Name: VarMinTemperature,
	Attrs: map[string]string{
		"standard_name": "minimum_recruitment_temperature",
		"long_name":     "minimum temperature for cohort recruitment",
		"units":         "degC",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimCohort)},
	DType: grid.Float64,
}

// minTemperature inverts the recruitment-time relation
// tau_r = tau_r_0 * exp(gamma_tr * T) to the coldest temperature at
// which a cohort of a given age can be recruited.
func minTemperature(st *state.State) (map[string]*grid.Array, error) {
	meanTimestep, err := st.Get(ParamMeanTimestep)
	if err != nil {
		return nil, err
	}
	tr0, err := st.Get(ParamTr0)
	if err != nil {
		return nil, err
	}
	gammaTr, err := st.Get(ParamGammaTr)
	if err != nil {
		return nil, err
	}

	nf := meanTimestep.DimLen(DimFGroup)
	nc := meanTimestep.DimLen(DimCohort)
	out := grid.New(VarMinTemperature, grid.Float64,
		mustCoord(meanTimestep, DimFGroup), mustCoord(meanTimestep, DimCohort))
	for f := 0; f < nf; f++ {
		for c := 0; c < nc; c++ {
			out.SetAt(math.Log(meanTimestep.At(f, c)/tr0.At(f))/gammaTr.At(f), f, c)
		}
	}
	return map[string]*grid.Array{VarMinTemperature: out}, nil
}

// MinTemperature builds the minimum-recruitment-temperature stage.
func MinTemperature(evict ...string) kern.Unit {
	return kern.MustUnit("min_temperature", []kern.TemplateUnit{minTemperatureTemplate}, minTemperature, evict...)
}

var maskTemperatureTemplate = kern.TemplateUnit{
	Name: VarMaskTemperature,
	Attrs: map[string]string{
		"standard_name": "recruitment_mask",
		"long_name":     "temperature recruitment mask by cohort",
	},
	Dims: []kern.Dim{
		kern.Label(DimFGroup), kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX), kern.Label(DimCohort),
	},
	DType: grid.Bool,
}

// maskTemperature marks where a cohort is warm enough to be recruited:
// average temperature at or above the cohort's minimum. NaN average
// temperature (outside habitat) never recruits.
func maskTemperature(st *state.State) (map[string]*grid.Array, error) {
	avg, err := st.Get(VarAvgTemperature)
	if err != nil {
		return nil, err
	}
	minTemp, err := st.Get(VarMinTemperature)
	if err != nil {
		return nil, err
	}

	nf := avg.DimLen(DimFGroup)
	nt := avg.DimLen(DimTime)
	ny := avg.DimLen(DimY)
	nx := avg.DimLen(DimX)
	nc := minTemp.DimLen(DimCohort)

	out := grid.New(VarMaskTemperature, grid.Bool,
		mustCoord(avg, DimFGroup), mustCoord(avg, DimTime),
		mustCoord(avg, DimY), mustCoord(avg, DimX), mustCoord(minTemp, DimCohort))
	for f := 0; f < nf; f++ {
		for t := 0; t < nt; t++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					v := avg.At(f, t, y, x)
					if math.IsNaN(v) {
						continue
					}
					for c := 0; c < nc; c++ {
						if v >= minTemp.At(f, c) {
							out.SetAt(1, f, t, y, x, c)
						}
					}
				}
			}
		}
	}
	return map[string]*grid.Array{VarMaskTemperature: out}, nil
}

// MaskTemperature builds the recruitment-mask stage.
func MaskTemperature(evict ...string) kern.Unit {
	return kern.MustUnit("mask_temperature", []kern.TemplateUnit{maskTemperatureTemplate}, maskTemperature, evict...)
}
