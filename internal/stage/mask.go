package stage

import (
	"fmt"
	"math"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

var globalMaskTemplate = kern.TemplateUnit{
	Name: VarGlobalMask,
	Attrs: map[string]string{
		"standard_name": "sea_binary_mask",
		"long_name":     "global ocean mask",
	},
	Dims:  []kern.Dim{kern.Label(DimY), kern.Label(DimX), kern.Label(DimZ)},
	DType: grid.Bool,
}

// globalMask marks ocean cells: everywhere the temperature forcing is
// finite at the first timestep.
func globalMask(st *state.State) (map[string]*grid.Array, error) {
	temperature, err := st.Get(VarTemperature)
	if err != nil {
		return nil, err
	}
	ny := temperature.DimLen(DimY)
	nx := temperature.DimLen(DimX)
	nz := temperature.DimLen(DimZ)

	mask := grid.New(VarGlobalMask, grid.Bool,
		mustCoord(temperature, DimY), mustCoord(temperature, DimX), mustCoord(temperature, DimZ))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			for z := 0; z < nz; z++ {
				if !math.IsNaN(temperature.At(0, y, x, z)) {
					mask.SetAt(1, y, x, z)
				}
			}
		}
	}
	return map[string]*grid.Array{VarGlobalMask: mask}, nil
}

// GlobalMask builds the ocean-mask stage. The eviction list names
// variables to drop from the state once the stage has merged.
func GlobalMask(evict ...string) kern.Unit {
	return kern.MustUnit("global_mask", []kern.TemplateUnit{globalMaskTemplate}, globalMask, evict...)
}

var maskByFGroupTemplate = kern.TemplateUnit{
	Name: VarMaskFGroup,
	Attrs: map[string]string{
		"standard_name": "sea_binary_mask_by_functional_group",
		"long_name":     "ocean mask by functional group",
	},
	Dims:  []kern.Dim{kern.Label(DimFGroup), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Bool,
}

// maskByFGroup intersects the global mask at each group's day and night
// layers: a cell is habitable for a group only when both layers are
// ocean.
func maskByFGroup(st *state.State) (map[string]*grid.Array, error) {
	dayLayer, err := st.Get(ParamDayLayer)
	if err != nil {
		return nil, err
	}
	nightLayer, err := st.Get(ParamNightLayer)
	if err != nil {
		return nil, err
	}
	mask, err := st.Get(VarGlobalMask)
	if err != nil {
		return nil, err
	}

	nf := dayLayer.DimLen(DimFGroup)
	ny := mask.DimLen(DimY)
	nx := mask.DimLen(DimX)
	out := grid.New(VarMaskFGroup, grid.Bool,
		mustCoord(dayLayer, DimFGroup), mustCoord(mask, DimY), mustCoord(mask, DimX))

	zCoord := mustCoord(mask, DimZ)
	for f := 0; f < nf; f++ {
		dayZ, err := layerIndex(zCoord, dayLayer.At(f))
		if err != nil {
			return nil, err
		}
		nightZ, err := layerIndex(zCoord, nightLayer.At(f))
		if err != nil {
			return nil, err
		}
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if mask.At(y, x, dayZ) != 0 && mask.At(y, x, nightZ) != 0 {
					out.SetAt(1, f, y, x)
				}
			}
		}
	}
	return map[string]*grid.Array{VarMaskFGroup: out}, nil
}

// MaskByFGroup builds the per-group habitat mask stage.
func MaskByFGroup(evict ...string) kern.Unit {
	return kern.MustUnit("mask_by_fgroup", []kern.TemplateUnit{maskByFGroupTemplate}, maskByFGroup, evict...)
}

// layerIndex finds the position of a layer value on the Z coordinate.
func layerIndex(z grid.Coordinate, layer float64) (int, error) {
	for i, v := range z.Values {
		if v == layer {
			return i, nil
		}
	}
	return 0, fmt.Errorf("stage: layer %g not on the %q coordinate", layer, z.Name)
}

// mustCoord fetches a coordinate an input array is known to carry.
func mustCoord(a *grid.Array, dim string) grid.Coordinate {
	c, ok := a.Coord(dim)
	if !ok {
		panic(fmt.Sprintf("stage: array %q lacks dimension %q", a.Name, dim))
	}
	return c
}
