package config

import "sort"

// presets are named ready-to-run configurations.
var presets = map[string]func() *Config{
	"default": Default,
	"tiny": func() *Config {
		cfg := Default()
		cfg.Name = "tiny"
		cfg.Grid = GridConfig{LatMin: -10, LatMax: 10, LatStep: 2, LonMin: -10, LonMax: 10, LonStep: 2}
		cfg.Time.Steps = 10
		cfg.Tiling = TilingConfig{Latitude: 4, Longitude: 4}
		return cfg
	},
	"seasonal": func() *Config {
		cfg := Default()
		cfg.Name = "seasonal"
		cfg.Time.Steps = 365
		cfg.Forcing.SSTAmplitude = 10
		return cfg
	},
	"light": func() *Config {
		cfg := Default()
		cfg.Name = "light"
		cfg.LightMode = true
		return cfg
	},
}

// Preset returns a named preset configuration, or nil when unknown.
func Preset(name string) *Config {
	build, ok := presets[name]
	if !ok {
		return nil
	}
	return build()
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
