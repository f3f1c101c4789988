package stage

import (
	"math"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/kern"
	"github.com/san-kum/marlin/internal/state"
)

const hoursPerDay = 24.0

var dayLengthTemplate = kern.TemplateUnit{
	Name: VarDayLength,
	Attrs: map[string]string{
		"standard_name": "day_length",
		"long_name":     "day length",
		"units":         "day",
	},
	Dims:  []kern.Dim{kern.Label(DimTime), kern.Label(DimY), kern.Label(DimX)},
	DType: grid.Float64,
}

// forsytheDayLength computes day length in hours for a latitude and a
// day of the year with the CBM model of Forsythe et al., Ecological
// Modelling 80 (1995) 87-95. p is the angle between the sun position
// and the horizon in degrees (0 sunrise/sunset, 6 civil twilight, 12
// nautical, 18 astronomical).
func forsytheDayLength(latitude float64, dayOfYear, p float64) float64 {
	theta := 0.2163108 + 2*math.Atan(0.9671396*math.Tan(0.00860*(dayOfYear-186)))
	phi := math.Asin(0.39795 * math.Cos(theta))
	arg := (math.Sin(math.Pi*p/180) + math.Sin(latitude*math.Pi/180)*math.Sin(phi)) /
		(math.Cos(latitude*math.Pi/180) * math.Cos(phi))
	arg = math.Max(-1, math.Min(1, arg))
	return hoursPerDay - (hoursPerDay/math.Pi)*math.Acos(arg)
}

// dayLengthFunc derives the day-length field, as a fraction of a day,
// over time and space. Time coordinate values are day numbers; the day
// of year wraps at 365.
func dayLengthFunc(angleHorizonSun float64) kern.Func {
	return func(st *state.State) (map[string]*grid.Array, error) {
		temperature, err := st.Get(VarTemperature)
		if err != nil {
			return nil, err
		}
		timeCoord := mustCoord(temperature, DimTime)
		latCoord := mustCoord(temperature, DimY)
		lonCoord := mustCoord(temperature, DimX)

		out := grid.New(VarDayLength, grid.Float64, timeCoord, latCoord, lonCoord)
		for t, day := range timeCoord.Values {
			dayOfYear := math.Mod(day, 365)
			for y, lat := range latCoord.Values {
				hours := forsytheDayLength(lat, dayOfYear, angleHorizonSun)
				fraction := hours / hoursPerDay
				for x := range lonCoord.Values {
					out.SetAt(fraction, t, y, x)
				}
			}
		}
		return map[string]*grid.Array{VarDayLength: out}, nil
	}
}

// DayLength builds the day-length stage for the given twilight angle.
func DayLength(angleHorizonSun float64, evict ...string) kern.Unit {
	return kern.MustUnit("day_length", []kern.TemplateUnit{dayLengthTemplate}, dayLengthFunc(angleHorizonSun), evict...)
}
