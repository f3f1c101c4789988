package kern

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/state"
)

func coordY(n int) grid.Coordinate {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}
	return grid.Coordinate{Name: "y", Values: values}
}

func coordX(n int) grid.Coordinate {
	values := make([]float64, n)
	for i := range values {
		values[i] = 10 + float64(i)
	}
	return grid.Coordinate{Name: "x", Values: values}
}

func testState(t *testing.T, tiling grid.Tiling, arrays ...*grid.Array) *state.State {
	t.Helper()
	st := state.New(tiling)
	for _, a := range arrays {
		if err := st.Set(a); err != nil {
			t.Fatalf("set %s: %v", a.Name, err)
		}
	}
	return st
}

func valueArray(name string, ny, nx int, fill func(y, x int) float64) *grid.Array {
	a := grid.New(name, grid.Float64, coordY(ny), coordX(nx))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			a.SetAt(fill(y, x), y, x)
		}
	}
	return a
}

// doubler is a tile-pure stage: out = 2*value, cell by cell.
func doublerUnit(t *testing.T, evict ...string) Unit {
	t.Helper()
	tmpl := TemplateUnit{Name: "doubled", Dims: []Dim{Label("y"), Label("x")}}
	u, err := NewUnit("doubler", []TemplateUnit{tmpl}, func(st *state.State) (map[string]*grid.Array, error) {
		value, err := st.Get("value")
		if err != nil {
			return nil, err
		}
		out := grid.New("doubled", grid.Float64, value.Coords...)
		for i, v := range value.Data {
			out.Data[i] = 2 * v
		}
		return map[string]*grid.Array{"doubled": out}, nil
	}, evict...)
	if err != nil {
		t.Fatalf("new unit: %v", err)
	}
	return u
}

func TestTemplateUnitGenerate(t *testing.T) {
	st := testState(t, nil, valueArray("value", 3, 4, func(y, x int) float64 { return 1 }))

	tmpl := TemplateUnit{Name: "out", Dims: []Dim{Label("y"), Label("x")}, DType: grid.Float64}
	a, err := tmpl.Generate(st)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := a.Shape(); got[0] != 3 || got[1] != 4 {
		t.Errorf("expected shape [3 4], got %v", got)
	}
	for _, v := range a.Data {
		if v != 0 {
			t.Fatal("template array should be zero-filled")
		}
	}
}

func TestTemplateUnitGenerateMissingDim(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	tmpl := TemplateUnit{Name: "out", Dims: []Dim{Label("depth")}}
	_, err := tmpl.Generate(st)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Dim != "depth" {
		t.Errorf("expected dim depth in error, got %q", cfgErr.Dim)
	}
}

func TestTemplateUnitInlineDim(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	cohort := grid.Coordinate{Name: "cohort", Values: []float64{0, 1, 2}}
	tmpl := TemplateUnit{Name: "out", Dims: []Dim{Label("y"), Inline(cohort)}}
	a, err := tmpl.Generate(st)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := a.Shape(); got[0] != 2 || got[1] != 3 {
		t.Errorf("expected shape [2 3], got %v", got)
	}
}

func TestTemplateDuplicateName(t *testing.T) {
	_, err := NewTemplate(
		TemplateUnit{Name: "out", Dims: []Dim{Label("y")}},
		TemplateUnit{Name: "out", Dims: []Dim{Label("x")}},
	)
	if err == nil {
		t.Fatal("expected error for duplicate template name")
	}
}

func TestDimensionValidationBeforeComputation(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	called := false
	u, _ := NewUnit("bad", []TemplateUnit{{Name: "out", Dims: []Dim{Label("depth")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			called = true
			return nil, nil
		})
	_, err := New("p", u).Run(context.Background(), nil, st)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Stage != "bad" {
		t.Errorf("expected stage name in error, got %q", cfgErr.Stage)
	}
	if called {
		t.Error("stage function ran despite invalid template")
	}
}

func TestShapeMismatchLeavesStateUnmodified(t *testing.T) {
	initial := testState(t, nil, valueArray("value", 2, 3, func(y, x int) float64 { return 1 }))

	// Declares [y, x] but produces [y] only.
	u, _ := NewUnit("broken", []TemplateUnit{{Name: "out", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			value, _ := st.Get("value")
			c, _ := value.Coord("y")
			return map[string]*grid.Array{"out": grid.New("out", grid.Float64, c)}, nil
		})
	_, err := New("p", u).Run(context.Background(), nil, initial)
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
	if shapeErr.Stage != "broken" || shapeErr.Variable != "out" {
		t.Errorf("error should carry stage and variable, got %+v", shapeErr)
	}
	if initial.Has("out") {
		t.Error("failed stage must not leave a partial merge")
	}
}

func TestUndeclaredOutputRejected(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	u, _ := NewUnit("chatty", []TemplateUnit{{Name: "out", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			value, _ := st.Get("value")
			return map[string]*grid.Array{
				"out":   value.Clone(),
				"extra": value.Clone(),
			}, nil
		})
	_, err := u.Run(context.Background(), nil, st)
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError for undeclared output, got %v", err)
	}
}

func TestDTypeMismatch(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	u, _ := NewUnit("typed", []TemplateUnit{{Name: "out", Dims: []Dim{Label("y"), Label("x")}, DType: grid.Bool}},
		func(st *state.State) (map[string]*grid.Array, error) {
			value, _ := st.Get("value")
			return map[string]*grid.Array{"out": value.Clone()}, nil
		})
	_, err := u.Run(context.Background(), nil, st)
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError for dtype, got %v", err)
	}
}

func TestComputationErrorCarriesStage(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	boom := errors.New("boom")
	u, _ := NewUnit("fragile", []TemplateUnit{{Name: "out", Dims: []Dim{Label("y")}}},
		func(st *state.State) (map[string]*grid.Array, error) { return nil, boom })
	_, err := New("p", doublerUnit(t), u).Run(context.Background(), nil, st)
	var compErr *ComputationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected ComputationError, got %v", err)
	}
	if compErr.Stage != "fragile" || compErr.Index != 1 {
		t.Errorf("expected stage fragile at index 1, got %q at %d", compErr.Stage, compErr.Index)
	}
	if !errors.Is(err, boom) {
		t.Error("cause should be preserved through Unwrap")
	}
}

func TestMergeVisibility(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 {
		return float64(2*y + x + 1) // [[1,2],[3,4]]
	}))

	maskStage, _ := NewUnit("mask", []TemplateUnit{{Name: "mask", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			value, err := st.Get("value")
			if err != nil {
				return nil, err
			}
			mask := grid.New("mask", grid.Float64, value.Coords...)
			mask.Fill(1)
			return map[string]*grid.Array{"mask": mask}, nil
		})
	applyStage, _ := NewUnit("apply", []TemplateUnit{{Name: "masked_value", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			value, err := st.Get("value")
			if err != nil {
				return nil, err
			}
			mask, err := st.Get("mask")
			if err != nil {
				return nil, err
			}
			out := grid.New("masked_value", grid.Float64, value.Coords...)
			for i := range out.Data {
				out.Data[i] = value.Data[i] * mask.Data[i]
			}
			return map[string]*grid.Array{"masked_value": out}, nil
		})

	final, err := New("p", maskStage, applyStage).Run(context.Background(), nil, st)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	masked, err := final.Get("masked_value")
	if err != nil {
		t.Fatalf("get masked_value: %v", err)
	}
	want := []float64{1, 2, 3, 4}
	for i, v := range masked.Data {
		if v != want[i] {
			t.Errorf("masked_value[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestOverrideLaterStageWins(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	constStage := func(stageName string, v float64) Unit {
		u, _ := NewUnit(stageName, []TemplateUnit{{Name: "temperature_avg", Dims: []Dim{Label("y"), Label("x")}}},
			func(st *state.State) (map[string]*grid.Array, error) {
				value, _ := st.Get("value")
				out := grid.New("temperature_avg", grid.Float64, value.Coords...)
				out.Fill(v)
				return map[string]*grid.Array{"temperature_avg": out}, nil
			})
		return u
	}

	final, err := New("p", constStage("first", 1), constStage("second", 2)).Run(context.Background(), nil, st)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := final.Get("temperature_avg")
	for _, v := range got.Data {
		if v != 2 {
			t.Fatalf("expected second stage's value 2, got %v", v)
		}
	}
}

func TestEvictionTiming(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 3 }))

	var sawDoubled bool
	inspect, _ := NewUnit("inspect", []TemplateUnit{{Name: "probe", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			sawDoubled = st.Has("doubled")
			value, _ := st.Get("value")
			out := grid.New("probe", grid.Float64, value.Coords...)
			return map[string]*grid.Array{"probe": out}, nil
		})

	// doubler evicts its own input after the merge.
	final, err := New("p", doublerUnit(t, "value"), inspect).Run(context.Background(), nil, st)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !sawDoubled {
		t.Error("stage output should be visible to the next stage after merge")
	}
	if final.Has("value") {
		t.Error("evicted variable still present in final state")
	}
	if !final.Has("doubled") {
		t.Error("produced variable missing from final state")
	}
}

func TestEvictedVariableUnreadable(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 3 }))

	reader, _ := NewUnit("reader", []TemplateUnit{{Name: "copy", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			value, err := st.Get("value")
			if err != nil {
				return nil, err
			}
			out := value.Clone()
			out.Name = "copy"
			return map[string]*grid.Array{"copy": out}, nil
		})

	_, err := New("p", doublerUnit(t, "value"), reader).Run(context.Background(), nil, st)
	var missing *state.MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingVariableError for the evicted variable, got %v", err)
	}
	if missing.Name != "value" {
		t.Errorf("expected missing variable value, got %q", missing.Name)
	}
}

func TestEvictionSkipsOwnOutput(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 3 }))

	// The unit names its own output in the eviction list; the output
	// must survive.
	final, err := New("p", doublerUnit(t, "doubled", "value")).Run(context.Background(), nil, st)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !final.Has("doubled") {
		t.Error("eviction must not drop the stage's own output")
	}
}

func TestPipelineTruncation(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	consumer, _ := NewUnit("consumer", []TemplateUnit{{Name: "out", Dims: []Dim{Label("y"), Label("x")}}},
		func(st *state.State) (map[string]*grid.Array, error) {
			biomass, err := st.Get("biomass")
			if err != nil {
				return nil, err
			}
			return map[string]*grid.Array{"out": biomass.Clone()}, nil
		})

	// The stage producing biomass was removed from the sequence.
	_, err := New("p", consumer).Run(context.Background(), nil, st)
	var missing *state.MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingVariableError, got %v", err)
	}
	if missing.Name != "biomass" {
		t.Errorf("expected missing variable biomass, got %q", missing.Name)
	}
	var compErr *ComputationError
	if !errors.As(err, &compErr) || compErr.Stage != "consumer" {
		t.Error("error should identify the failing stage")
	}
}

func TestModeTransparency(t *testing.T) {
	fill := func(y, x int) float64 { return float64(y)*0.5 + float64(x)*1.5 }
	pipeline := func() *Kernel { return New("p", doublerUnit(t)) }

	whole := testState(t, nil, valueArray("value", 7, 5, fill))
	single, err := pipeline().Run(context.Background(), nil, whole)
	if err != nil {
		t.Fatalf("direct run: %v", err)
	}

	tiled := testState(t, grid.Tiling{"y": 3, "x": 2}, valueArray("value", 7, 5, fill))
	many, err := pipeline().Run(context.Background(), nil, tiled)
	if err != nil {
		t.Fatalf("tiled run: %v", err)
	}

	a, _ := single.Get("doubled")
	b, _ := many.Get("doubled")
	if ok, reason := a.SameLayout(b); !ok {
		t.Fatalf("layouts differ: %s", reason)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("tiled and direct runs disagree at %d: %v != %v", i, b.Data[i], a.Data[i])
		}
	}
}

func TestTiledUntiledOutputDims(t *testing.T) {
	// An output that carries none of the tiled dimensions must still
	// come out whole and identical to the direct run.
	reduce := func() Unit {
		u, _ := NewUnit("reduce", []TemplateUnit{{Name: "ymean", Dims: []Dim{Label("y")}}},
			func(st *state.State) (map[string]*grid.Array, error) {
				value, err := st.Get("value")
				if err != nil {
					return nil, err
				}
				c, _ := value.Coord("y")
				out := grid.New("ymean", grid.Float64, c)
				nx := value.DimLen("x")
				for y := 0; y < c.Len(); y++ {
					sum := 0.0
					for x := 0; x < nx; x++ {
						sum += value.At(y, x)
					}
					out.SetAt(sum/float64(nx), y)
				}
				return map[string]*grid.Array{"ymean": out}, nil
			})
		return u
	}

	fill := func(y, x int) float64 { return float64(y) } // constant over x: tile-pure reduction
	whole := testState(t, nil, valueArray("value", 4, 6, fill))
	direct, err := New("p", reduce()).Run(context.Background(), nil, whole)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}

	tiled := testState(t, grid.Tiling{"x": 2}, valueArray("value", 4, 6, fill))
	split, err := New("p", reduce()).Run(context.Background(), nil, tiled)
	if err != nil {
		t.Fatalf("tiled: %v", err)
	}

	a, _ := direct.Get("ymean")
	b, _ := split.Get("ymean")
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("ymean[%d]: tiled %v != direct %v", i, b.Data[i], a.Data[i])
		}
	}
}

func TestDeterminism(t *testing.T) {
	fill := func(y, x int) float64 { return math.Sin(float64(y*13+x)) }
	run := func() []float64 {
		st := testState(t, grid.Tiling{"y": 2}, valueArray("value", 6, 4, fill))
		final, err := New("p", doublerUnit(t)).Run(context.Background(), nil, st)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		a, _ := final.Get("doubled")
		return a.Data
	}
	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("runs differ at %d", i)
		}
	}
}

func TestKernelTemplatePreview(t *testing.T) {
	st := testState(t, nil, valueArray("value", 3, 3, func(y, x int) float64 { return 1 }))

	tmpl, err := New("p", doublerUnit(t)).Template(st)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if !tmpl.Has("doubled") || !tmpl.Has("value") {
		t.Error("template preview should contain existing and declared variables")
	}
	doubled, _ := tmpl.Get("doubled")
	if got := doubled.Shape(); got[0] != 3 || got[1] != 3 {
		t.Errorf("expected shape [3 3], got %v", got)
	}
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) UnitStart(name string, index, total int) {
	r.events = append(r.events, "start "+name)
}

func (r *recordingObserver) UnitDone(name string, index, total int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "err"
	}
	r.events = append(r.events, "done "+name+" "+status)
}

func TestObserverNotifications(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	boom := errors.New("boom")
	failing, _ := NewUnit("failing", []TemplateUnit{{Name: "out", Dims: []Dim{Label("y")}}},
		func(st *state.State) (map[string]*grid.Array, error) { return nil, boom })

	k := New("p", doublerUnit(t), failing)
	rec := &recordingObserver{}
	k.AddObserver(rec)

	if _, err := k.Run(context.Background(), nil, st); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	want := []string{"start doubler", "done doubler ok", "start failing", "done failing err"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

func TestContextCancellation(t *testing.T) {
	st := testState(t, nil, valueArray("value", 2, 2, func(y, x int) float64 { return 1 }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("p", doublerUnit(t)).Run(ctx, nil, st)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
