// Package forcing assembles the initial model state: the coordinate
// system, synthetic forcing fields and the parameter variables every
// stage reads. It is the only producer of states; afterwards a state
// evolves solely through kernel merges.
package forcing

import (
	"math"

	"github.com/san-kum/marlin/internal/config"
	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/stage"
	"github.com/san-kum/marlin/internal/state"
)

// Coordinates builds the axes of the model domain from configuration.
type Coordinates struct {
	Time   grid.Coordinate
	Lat    grid.Coordinate
	Lon    grid.Coordinate
	Layer  grid.Coordinate
	FGroup grid.Coordinate
	Cohort grid.Coordinate
}

// NewCoordinates derives every axis from the configured grid, period
// and functional groups.
func NewCoordinates(cfg *config.Config) Coordinates {
	return Coordinates{
		Time:   stepsCoord(stage.DimTime, cfg.Time.StartDay, cfg.Time.TimestepDays, cfg.Time.Steps),
		Lat:    rangeCoord(stage.DimY, cfg.Grid.LatMin, cfg.Grid.LatMax, cfg.Grid.LatStep),
		Lon:    rangeCoord(stage.DimX, cfg.Grid.LonMin, cfg.Grid.LonMax, cfg.Grid.LonStep),
		Layer:  grid.Coordinate{Name: stage.DimZ, Values: []float64{1, 2, 3}},
		FGroup: stepsCoord(stage.DimFGroup, 0, 1, len(cfg.FunctionalGroups)),
		Cohort: stepsCoord(stage.DimCohort, 0, 1, len(cfg.FunctionalGroups[0].CohortTimesteps)),
	}
}

func rangeCoord(name string, min, max, step float64) grid.Coordinate {
	var values []float64
	for v := min; v <= max+step/2; v += step {
		values = append(values, v)
	}
	return grid.Coordinate{Name: name, Values: values}
}

func stepsCoord(name string, start, step float64, n int) grid.Coordinate {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return grid.Coordinate{Name: name, Values: values}
}

// Assemble builds the initial state under the configured tiling.
func Assemble(cfg *config.Config) (*state.State, error) {
	coords := NewCoordinates(cfg)
	tiling := grid.Tiling{}
	if cfg.Tiling.Latitude > 0 {
		tiling[stage.DimY] = cfg.Tiling.Latitude
	}
	if cfg.Tiling.Longitude > 0 {
		tiling[stage.DimX] = cfg.Tiling.Longitude
	}
	st := state.New(tiling)

	for _, a := range []*grid.Array{
		Temperature(cfg, coords),
		PrimaryProduction(cfg, coords),
	} {
		if err := st.Set(a); err != nil {
			return nil, err
		}
	}
	for _, a := range parameterVariables(cfg, coords) {
		if err := st.Set(a); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// land reports whether a cell is land. The pattern is a deterministic
// interference of the two horizontal coordinates thresholded by the
// configured land fraction.
func land(cfg *config.Config, lat, lon float64) bool {
	if cfg.Forcing.LandFraction <= 0 {
		return false
	}
	v := 0.5 + 0.5*math.Sin(12.9898*lat+78.233*lon)
	return v < cfg.Forcing.LandFraction
}

// Temperature synthesizes the temperature forcing [time, lat, lon,
// layer]: a latitudinal gradient with a seasonal cycle at the surface
// and a fixed lapse between layers. Land cells are NaN on every layer.
func Temperature(cfg *config.Config, coords Coordinates) *grid.Array {
	a := grid.New(stage.VarTemperature, grid.Float64, coords.Time, coords.Lat, coords.Lon, coords.Layer)
	a.Attrs = map[string]string{
		"standard_name": "sea_water_temperature",
		"long_name":     "sea water temperature by layer",
		"units":         "degC",
	}
	for t, day := range coords.Time.Values {
		season := math.Sin(2 * math.Pi * (day - 80) / 365)
		for y, lat := range coords.Lat.Values {
			surface := cfg.Forcing.SSTMean - 0.35*math.Abs(lat) +
				cfg.Forcing.SSTAmplitude*season*math.Sin(lat*math.Pi/180)
			for x, lon := range coords.Lon.Values {
				if land(cfg, lat, lon) {
					for z := range coords.Layer.Values {
						a.SetAt(math.NaN(), t, y, x, z)
					}
					continue
				}
				for z := range coords.Layer.Values {
					a.SetAt(surface-cfg.Forcing.LapseRate*float64(z), t, y, x, z)
				}
			}
		}
	}
	return a
}

// PrimaryProduction synthesizes the primary production forcing [time,
// lat, lon]: peaks at the equator, follows the seasonal cycle, zero on
// land.
func PrimaryProduction(cfg *config.Config, coords Coordinates) *grid.Array {
	a := grid.New(stage.VarPrimaryProduction, grid.Float64, coords.Time, coords.Lat, coords.Lon)
	a.Attrs = map[string]string{
		"standard_name": "primary_production",
		"long_name":     "net primary production",
		"units":         "kg m-2 d-1",
	}
	for t, day := range coords.Time.Values {
		season := 1 + 0.3*math.Sin(2*math.Pi*(day-80)/365)
		for y, lat := range coords.Lat.Values {
			base := cfg.Forcing.PPMax * math.Exp(-lat*lat/(2*25*25)) * season
			for x, lon := range coords.Lon.Values {
				if land(cfg, lat, lon) {
					continue
				}
				a.SetAt(base, t, y, x)
			}
		}
	}
	return a
}

// parameterVariables broadcasts the functional-group parameters and run
// constants into state variables.
func parameterVariables(cfg *config.Config, coords Coordinates) []*grid.Array {
	nf := len(cfg.FunctionalGroups)
	nc := coords.Cohort.Len()

	perGroup := func(name string, pick func(config.FunctionalGroup) float64) *grid.Array {
		a := grid.New(name, grid.Float64, coords.FGroup)
		for f, fg := range cfg.FunctionalGroups {
			a.SetAt(pick(fg), f)
		}
		return a
	}

	timestepsNumber := grid.New(stage.ParamTimestepsNumber, grid.Float64, coords.FGroup, coords.Cohort)
	meanTimestep := grid.New(stage.ParamMeanTimestep, grid.Float64, coords.FGroup, coords.Cohort)
	for f := 0; f < nf; f++ {
		spans := cfg.FunctionalGroups[f].CohortTimesteps
		elapsed := 0.0
		for c := 0; c < nc; c++ {
			timestepsNumber.SetAt(spans[c], f, c)
			first := elapsed + 1
			elapsed += spans[c]
			mean := (first + elapsed) / 2 * cfg.Time.TimestepDays
			meanTimestep.SetAt(mean, f, c)
		}
	}

	return []*grid.Array{
		perGroup(stage.ParamEnergyTransfert, func(fg config.FunctionalGroup) float64 { return fg.EnergyTransfert }),
		perGroup(stage.ParamLambda0, func(fg config.FunctionalGroup) float64 { return fg.Lambda0 }),
		perGroup(stage.ParamGammaLambda, func(fg config.FunctionalGroup) float64 { return fg.GammaLambda }),
		perGroup(stage.ParamTr0, func(fg config.FunctionalGroup) float64 { return fg.Tr0 }),
		perGroup(stage.ParamGammaTr, func(fg config.FunctionalGroup) float64 { return fg.GammaTr }),
		perGroup(stage.ParamDayLayer, func(fg config.FunctionalGroup) float64 { return float64(fg.DayLayer) }),
		perGroup(stage.ParamNightLayer, func(fg config.FunctionalGroup) float64 { return float64(fg.NightLayer) }),
		timestepsNumber,
		meanTimestep,
		grid.Scalar(stage.ParamTimestep, cfg.Time.TimestepDays),
		grid.Scalar(stage.ParamResolutionLat, cfg.Grid.LatStep),
		grid.Scalar(stage.ParamResolutionLon, cfg.Grid.LonStep),
	}
}
