package forcing

import (
	"math"
	"testing"

	"github.com/san-kum/marlin/internal/config"
	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/stage"
)

func TestNewCoordinates(t *testing.T) {
	cfg := config.Default()
	coords := NewCoordinates(cfg)

	if got := coords.Lat.Len(); got != 81 {
		t.Errorf("latitude has %d points, want 81", got)
	}
	if coords.Lat.Values[0] != -40 || coords.Lat.Values[80] != 40 {
		t.Errorf("latitude spans [%v, %v], want [-40, 40]", coords.Lat.Values[0], coords.Lat.Values[80])
	}
	if got := coords.Time.Len(); got != cfg.Time.Steps {
		t.Errorf("time has %d points, want %d", got, cfg.Time.Steps)
	}
	if coords.Time.Values[0] != cfg.Time.StartDay {
		t.Errorf("time starts at %v, want %v", coords.Time.Values[0], cfg.Time.StartDay)
	}
	if got := coords.FGroup.Len(); got != len(cfg.FunctionalGroups) {
		t.Errorf("fgroup axis has %d points, want %d", got, len(cfg.FunctionalGroups))
	}
	if got := coords.Cohort.Len(); got != len(cfg.FunctionalGroups[0].CohortTimesteps) {
		t.Errorf("cohort axis has %d points, want %d", got, len(cfg.FunctionalGroups[0].CohortTimesteps))
	}
	if got := coords.Layer.Len(); got != 3 {
		t.Errorf("layer axis has %d points, want 3", got)
	}
}

func TestTemperatureField(t *testing.T) {
	cfg := config.Preset("tiny")
	coords := NewCoordinates(cfg)
	temp := Temperature(cfg, coords)

	if len(temp.Dims()) != 4 {
		t.Fatalf("temperature rank %d, want 4", len(temp.Dims()))
	}
	// Deeper layers are colder by the configured lapse.
	oy, ox := -1, -1
	for y := 0; y < coords.Lat.Len() && oy < 0; y++ {
		for x := 0; x < coords.Lon.Len(); x++ {
			if !math.IsNaN(temp.At(0, y, x, 0)) {
				oy, ox = y, x
				break
			}
		}
	}
	if oy < 0 {
		t.Fatal("no ocean cell in the tiny domain")
	}
	surface := temp.At(0, oy, ox, 0)
	deep := temp.At(0, oy, ox, 2)
	if got := surface - deep; math.Abs(got-2*cfg.Forcing.LapseRate) > 1e-9 {
		t.Errorf("lapse over two layers = %v, want %v", got, 2*cfg.Forcing.LapseRate)
	}
}

func TestTemperatureLandIsNaNOnEveryLayer(t *testing.T) {
	cfg := config.Default()
	coords := NewCoordinates(cfg)
	temp := Temperature(cfg, coords)

	landCells := 0
	for y, lat := range coords.Lat.Values {
		for x, lon := range coords.Lon.Values {
			if !land(cfg, lat, lon) {
				continue
			}
			landCells++
			for z := range coords.Layer.Values {
				if !math.IsNaN(temp.At(0, y, x, z)) {
					t.Fatalf("land cell (%d,%d) finite on layer %d", y, x, z)
				}
			}
		}
	}
	if landCells == 0 {
		t.Error("default land fraction produced no land")
	}
}

func TestPrimaryProductionField(t *testing.T) {
	cfg := config.Default()
	cfg.Forcing.LandFraction = 0
	coords := NewCoordinates(cfg)
	pp := PrimaryProduction(cfg, coords)

	equator := 40 // lat value 0 on the default grid
	high := 0     // lat value -40
	if pp.At(0, equator, 0) <= pp.At(0, high, 0) {
		t.Error("primary production should peak at the equator")
	}
	for _, v := range pp.Data {
		if v < 0 {
			t.Fatal("negative primary production")
		}
	}
}

func TestAssemble(t *testing.T) {
	cfg := config.Preset("tiny")
	st, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	for _, name := range []string{
		stage.VarTemperature,
		stage.VarPrimaryProduction,
		stage.ParamEnergyTransfert,
		stage.ParamLambda0,
		stage.ParamGammaLambda,
		stage.ParamTr0,
		stage.ParamGammaTr,
		stage.ParamDayLayer,
		stage.ParamNightLayer,
		stage.ParamTimestepsNumber,
		stage.ParamMeanTimestep,
		stage.ParamTimestep,
		stage.ParamResolutionLat,
		stage.ParamResolutionLon,
	} {
		if !st.Has(name) {
			t.Errorf("assembled state missing %q", name)
		}
	}
	if !st.Tiled() {
		t.Error("tiny preset tiles an 11x11 grid into 4x4 blocks, state should be tiled")
	}
}

func TestMeanTimestepAccumulates(t *testing.T) {
	cfg := config.Default()
	cfg.Time.TimestepDays = 2
	coords := NewCoordinates(cfg)

	var mean *grid.Array
	for _, a := range parameterVariables(cfg, coords) {
		if a.Name == stage.ParamMeanTimestep {
			mean = a
		}
	}
	if mean == nil {
		t.Fatal("mean_timestep not assembled")
	}
	// Spans 1,1,2,4,8: the first cohort covers timestep 1 only, so its
	// mean age is 1 timestep = 2 days. The second covers timestep 2.
	if got := mean.At(0, 0); got != 2 {
		t.Errorf("mean age of cohort 0 = %v days, want 2", got)
	}
	if got := mean.At(0, 1); got != 4 {
		t.Errorf("mean age of cohort 1 = %v days, want 4", got)
	}
	// Third cohort spans timesteps 3-4: mean 3.5 timesteps = 7 days.
	if got := mean.At(0, 2); got != 7 {
		t.Errorf("mean age of cohort 2 = %v days, want 7", got)
	}
}
