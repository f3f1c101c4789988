// Package viz renders run results in the terminal.
package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/stage"
	"github.com/san-kum/marlin/internal/state"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// Series reduces a [fgroup, time, lat, lon] field to one spatial-mean
// series per functional group, skipping NaN cells.
func Series(a *grid.Array) [][]float64 {
	nf := a.DimLen(stage.DimFGroup)
	nt := a.DimLen(stage.DimTime)
	ny := a.DimLen(stage.DimY)
	nx := a.DimLen(stage.DimX)

	series := make([][]float64, nf)
	for f := 0; f < nf; f++ {
		series[f] = make([]float64, nt)
		for t := 0; t < nt; t++ {
			sum, n := 0.0, 0
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					v := a.At(f, t, y, x)
					if math.IsNaN(v) {
						continue
					}
					sum += v
					n++
				}
			}
			if n > 0 {
				series[f][t] = sum / float64(n)
			}
		}
	}
	return series
}

// BiomassReport plots the spatial-mean biomass of every functional
// group over time.
func BiomassReport(st *state.State, groupNames []string) (string, error) {
	biomass, err := st.Get(stage.VarBiomass)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("biomass, spatial mean") + "\n\n")
	for f, series := range Series(biomass) {
		name := fmt.Sprintf("group %d", f)
		if f < len(groupNames) {
			name = groupNames[f]
		}
		chart := asciigraph.Plot(series,
			asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption(name))
		b.WriteString(graphStyle.Render(chart) + "\n\n")
	}
	return b.String(), nil
}

// Summary renders a key/value block.
func Summary(title string, pairs [][2]string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	for _, kv := range pairs {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-18s", kv[0])) + valueStyle.Render(kv[1]) + "\n")
	}
	return b.String()
}
