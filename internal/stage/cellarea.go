package stage

import (
	"math"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

const earthRadiusMeters = 6371000.0

var cellAreaTemplate = kern.TemplateUnit{
	Name: VarCellArea,
	Attrs: map[string]string{
		"standard_name": "cell_area",
		"long_name":     "horizontal area of grid cells",
		"units":         "m2",
	},
	Dims:  []kern.Dim{kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

// cellArea computes the spherical area of each grid cell from the
// latitude/longitude resolution parameters.
func cellArea(st *state.State) (map[string]*grid.Array, error) {
	resLat, err := st.Get(ParamResolutionLat)
	if err != nil {
		return nil, err
	}
	resLon, err := st.Get(ParamResolutionLon)
	if err != nil {
		return nil, err
	}
	temperature, err := st.Get(VarTemperature)
	if err != nil {
		return nil, err
	}
	latCoord := mustCoord(temperature, DimY)
	lonCoord := mustCoord(temperature, DimX)

	dLat := resLat.Value() * math.Pi / 180
	dLon := resLon.Value() * math.Pi / 180

	out := grid.New(VarCellArea, grid.Float64, latCoord, lonCoord)
	for y, lat := range latCoord.Values {
		area := earthRadiusMeters * earthRadiusMeters * dLat * dLon * math.Cos(lat*math.Pi/180)
		for x := range lonCoord.Values {
			out.SetAt(area, y, x)
		}
	}
	return map[string]*grid.Array{VarCellArea: out}, nil
}

// CellArea builds the cell-area stage.
func CellArea(evict ...string) kern.Unit {
	return kern.MustUnit("cell_area", []kern.TemplateUnit{cellAreaTemplate}, cellArea, evict...)
}
