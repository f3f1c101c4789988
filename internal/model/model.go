// Package model assembles the no-transport lower-trophic-level model:
// the fixed stage pipeline, the initial state and the execution pool.
package model

import (
	"context"
	"fmt"

	"github.com/san-kum/marlin/internal/config"
	"github.com/san-kum/marlin/internal/exec"
	"github.com/san-kum/marlin/internal/forcing"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/stage"
	"github.com/san-kum/marlin/internal/state"
)

// NewKernel builds the no-transport pipeline. The stage order is a
// fixed dependency chain. light threads eviction lists through the
// stages so intermediates are dropped as soon as their last consumer
// has run; exportCohorts makes the production stage also emit the
// unrecruited cohort field.
func NewKernel(angleHorizonSun float64, exportCohorts, light bool) *kern.Kernel {
	evict := func(names ...string) []string {
		if !light {
			return nil
		}
		return names
	}
	return kern.New("no_transport",
		stage.GlobalMask(),
		stage.CellArea(),
		stage.MaskByFGroup(evict(stage.VarGlobalMask)...),
		stage.DayLength(angleHorizonSun),
		stage.AverageTemperature(evict(stage.VarTemperature, stage.VarDayLength, stage.VarMaskFGroup)...),
		stage.PrimaryProductionByFGroup(evict(stage.VarPrimaryProduction)...),
		stage.MinTemperature(),
		stage.MaskTemperature(evict(stage.VarMinTemperature)...),
		stage.Mortality(evict(stage.VarAvgTemperature)...),
		stage.Production(exportCohorts, evict(stage.VarPPByFGroup, stage.VarMaskTemperature)...),
		stage.Biomass(evict(stage.VarRecruited, stage.VarMortality)...),
	)
}

// Model couples a state, a kernel and the pool carrying tiled
// execution.
type Model struct {
	State  *state.State
	Kernel *kern.Kernel
	Pool   *exec.Pool
}

// FromConfig assembles the model: forcing state, pipeline and pool.
// The configuration is validated first, whether it came from a file, a
// preset or the caller's own construction.
func FromConfig(cfg *config.Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := forcing.Assemble(cfg)
	if err != nil {
		return nil, err
	}
	return &Model{
		State:  st,
		Kernel: NewKernel(cfg.AngleHorizonSun, cfg.ExportCohorts, cfg.LightMode),
		Pool:   exec.NewPool(cfg.Workers),
	}, nil
}

// Run executes the pipeline, replacing the model state with the final
// merged state.
func (m *Model) Run(ctx context.Context) error {
	st, err := m.Kernel.Run(ctx, m.Pool, m.State)
	if err != nil {
		return err
	}
	m.State = st
	return nil
}

// Template generates the empty end-of-run state for shape inspection
// without computing anything.
func (m *Model) Template() (*state.State, error) {
	return m.Kernel.Template(m.State)
}

// ExpectedMemory estimates the storage footprint of a full run from the
// template.
func (m *Model) ExpectedMemory() (int64, error) {
	tmpl, err := m.Template()
	if err != nil {
		return 0, err
	}
	return tmpl.NBytes(), nil
}

// Close releases the execution pool.
func (m *Model) Close() {
	m.Pool.Close()
}

// Describe returns a one-line summary of the pipeline.
func (m *Model) Describe() string {
	return fmt.Sprintf("%s: %d stages, %d variables", m.Kernel.Name(), len(m.Kernel.Units()), m.State.Len())
}
