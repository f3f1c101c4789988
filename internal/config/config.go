// Package config loads and validates model configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimestepDays  = 1.0
	DefaultTimeSteps     = 30
	DefaultLatStep       = 1.0
	DefaultLonStep       = 1.0
	DefaultAngleHorizon  = 0.0
	DefaultTileLatitude  = 16
	DefaultTileLongitude = 16
)

// Config is the full model configuration.
type Config struct {
	Name             string            `yaml:"name"`
	Grid             GridConfig        `yaml:"grid"`
	Time             TimeConfig        `yaml:"time"`
	Tiling           TilingConfig      `yaml:"tiling"`
	AngleHorizonSun  float64           `yaml:"angle_horizon_sun"`
	ExportCohorts    bool              `yaml:"export_cohorts"`
	LightMode        bool              `yaml:"light_mode"`
	Workers          int               `yaml:"workers"`
	FunctionalGroups []FunctionalGroup `yaml:"functional_groups"`
	Forcing          ForcingConfig     `yaml:"forcing"`
	Output           OutputConfig      `yaml:"output"`
}

// GridConfig bounds the spatial domain, degrees.
type GridConfig struct {
	LatMin  float64 `yaml:"lat_min"`
	LatMax  float64 `yaml:"lat_max"`
	LatStep float64 `yaml:"lat_step"`
	LonMin  float64 `yaml:"lon_min"`
	LonMax  float64 `yaml:"lon_max"`
	LonStep float64 `yaml:"lon_step"`
}

// TimeConfig sets the simulated period.
type TimeConfig struct {
	Steps        int     `yaml:"steps"`
	TimestepDays float64 `yaml:"timestep_days"`
	StartDay     float64 `yaml:"start_day"`
}

// TilingConfig sets tile lengths for the spatial dimensions. Zero
// disables tiling of that dimension.
type TilingConfig struct {
	Latitude  int `yaml:"latitude"`
	Longitude int `yaml:"longitude"`
}

// FunctionalGroup parametrizes one modeled group.
type FunctionalGroup struct {
	Name            string    `yaml:"name"`
	EnergyTransfert float64   `yaml:"energy_transfert"`
	Lambda0         float64   `yaml:"lambda_temperature_0"`
	GammaLambda     float64   `yaml:"gamma_lambda_temperature"`
	Tr0             float64   `yaml:"tr_0"`
	GammaTr         float64   `yaml:"gamma_tr"`
	DayLayer        int       `yaml:"day_layer"`
	NightLayer      int       `yaml:"night_layer"`
	CohortTimesteps []float64 `yaml:"cohort_timesteps"`
}

// ForcingConfig shapes the synthetic forcing fields.
type ForcingConfig struct {
	SSTMean      float64 `yaml:"sst_mean"`
	SSTAmplitude float64 `yaml:"sst_amplitude"`
	LapseRate    float64 `yaml:"lapse_rate"`
	PPMax        float64 `yaml:"pp_max"`
	LandFraction float64 `yaml:"land_fraction"`
}

// OutputConfig selects what a run persists.
type OutputConfig struct {
	DataDir   string   `yaml:"data_dir"`
	Variables []string `yaml:"variables"`
}

// Default returns a small open-ocean configuration with two functional
// groups, one epipelagic and one migrating.
func Default() *Config {
	return &Config{
		Name: "no-transport",
		Grid: GridConfig{
			LatMin: -40, LatMax: 40, LatStep: DefaultLatStep,
			LonMin: -30, LonMax: 30, LonStep: DefaultLonStep,
		},
		Time: TimeConfig{
			Steps:        DefaultTimeSteps,
			TimestepDays: DefaultTimestepDays,
			StartDay:     1,
		},
		Tiling: TilingConfig{
			Latitude:  DefaultTileLatitude,
			Longitude: DefaultTileLongitude,
		},
		AngleHorizonSun: DefaultAngleHorizon,
		FunctionalGroups: []FunctionalGroup{
			{
				Name:            "epipelagic",
				EnergyTransfert: 0.17,
				Lambda0:         0.025,
				GammaLambda:     0.05,
				Tr0:             30.0,
				GammaTr:         -0.11,
				DayLayer:        1,
				NightLayer:      1,
				CohortTimesteps: []float64{1, 1, 2, 4, 8},
			},
			{
				Name:            "migrant",
				EnergyTransfert: 0.12,
				Lambda0:         0.020,
				GammaLambda:     0.04,
				Tr0:             30.0,
				GammaTr:         -0.11,
				DayLayer:        2,
				NightLayer:      1,
				CohortTimesteps: []float64{1, 1, 2, 4, 8},
			},
		},
		Forcing: ForcingConfig{
			SSTMean:      18.0,
			SSTAmplitude: 8.0,
			LapseRate:    5.0,
			PPMax:        0.5,
			LandFraction: 0.1,
		},
		Output: OutputConfig{
			DataDir:   "data",
			Variables: []string{"biomass"},
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks structural constraints the forcing assembly relies
// on: a non-degenerate grid, at least one group, equal cohort counts
// across groups and cohort spans expressed in whole timesteps.
func (c *Config) Validate() error {
	if c.Grid.LatStep <= 0 || c.Grid.LonStep <= 0 {
		return fmt.Errorf("config: grid steps must be positive")
	}
	if c.Grid.LatMax <= c.Grid.LatMin || c.Grid.LonMax <= c.Grid.LonMin {
		return fmt.Errorf("config: grid extent is empty")
	}
	if c.Time.Steps <= 0 {
		return fmt.Errorf("config: time steps must be positive, got %d", c.Time.Steps)
	}
	if c.Time.TimestepDays <= 0 {
		return fmt.Errorf("config: timestep must be positive, got %f", c.Time.TimestepDays)
	}
	if len(c.FunctionalGroups) == 0 {
		return fmt.Errorf("config: at least one functional group is required")
	}
	cohorts := len(c.FunctionalGroups[0].CohortTimesteps)
	if cohorts == 0 {
		return fmt.Errorf("config: functional group %q has no cohorts", c.FunctionalGroups[0].Name)
	}
	for _, fg := range c.FunctionalGroups {
		if len(fg.CohortTimesteps) != cohorts {
			return fmt.Errorf("config: functional group %q has %d cohorts, want %d",
				fg.Name, len(fg.CohortTimesteps), cohorts)
		}
		for _, span := range fg.CohortTimesteps {
			if span <= 0 || span != float64(int(span)) {
				return fmt.Errorf("config: functional group %q: cohort span %g is not a whole number of timesteps",
					fg.Name, span)
			}
		}
		if fg.DayLayer < 1 || fg.DayLayer > 3 || fg.NightLayer < 1 || fg.NightLayer > 3 {
			return fmt.Errorf("config: functional group %q: layers must be within 1..3", fg.Name)
		}
	}
	return nil
}
