package kern

import (
	"context"
	"fmt"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/state"
)

// Func is a stage's transformation: it reads variables from the state
// it is given and returns the variables it produces. When executed
// tiled it receives a tile-local state and must honor the tile-purity
// contract described in the package comment.
type Func func(st *state.State) (map[string]*grid.Array, error)

// Pool runs n independent tasks, bounding concurrency and collecting
// the first error. The tiled execution strategy fans tile tasks out
// through it. Implemented by exec.Pool; the caller owns its lifecycle.
type Pool interface {
	Apply(ctx context.Context, n int, task func(i int) error) error
}

// Unit is one named pipeline stage: a transformation function bound to
// the template declaring its outputs, plus the variables to evict from
// the state once the stage has run.
type Unit struct {
	Name     string
	Template Template
	Func     Func
	Evict    []string
}

// NewUnit bundles a stage descriptor. Stages differing only in their
// eviction list are the same descriptor parametrized differently.
func NewUnit(name string, units []TemplateUnit, fn Func, evict ...string) (Unit, error) {
	if name == "" {
		return Unit{}, fmt.Errorf("kern: unit needs a name")
	}
	if fn == nil {
		return Unit{}, fmt.Errorf("kern: unit %q needs a function", name)
	}
	tmpl, err := NewTemplate(units...)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Name: name, Template: tmpl, Func: fn, Evict: evict}, nil
}

// MustUnit is NewUnit for statically declared stages.
func MustUnit(name string, units []TemplateUnit, fn Func, evict ...string) Unit {
	u, err := NewUnit(name, units, fn, evict...)
	if err != nil {
		panic(err)
	}
	return u
}

// Run executes the stage and returns exactly the variables its template
// declares, shaped exactly as declared. The strategy is chosen by
// inspecting the state: a state organized into more than one tile runs
// function-per-tile against a pre-generated template, anything else
// runs the function once in full.
func (u Unit) Run(ctx context.Context, pool Pool, st *state.State) (map[string]*grid.Array, error) {
	if st.Tiled() {
		return u.runTiled(ctx, pool, st)
	}
	return u.runDirect(st)
}

func (u Unit) runDirect(st *state.State) (map[string]*grid.Array, error) {
	// Resolve every declared dimension first so a template error
	// surfaces before any computation.
	expected := make(map[string][]grid.Coordinate, len(u.Template.units))
	for _, tu := range u.Template.units {
		coords, err := tu.resolve(st)
		if err != nil {
			return nil, u.tag(err)
		}
		expected[tu.Name] = coords
	}

	results, err := u.Func(st)
	if err != nil {
		return nil, &ComputationError{Stage: u.Name, Err: err}
	}

	for name := range results {
		if !u.Template.Declares(name) {
			return nil, &ShapeMismatchError{Stage: u.Name, Variable: name, Reason: "not declared by the template"}
		}
	}
	out := make(map[string]*grid.Array, len(u.Template.units))
	for _, tu := range u.Template.units {
		a, ok := results[tu.Name]
		if !ok {
			return nil, &ShapeMismatchError{Stage: u.Name, Variable: tu.Name, Reason: "not produced"}
		}
		if reason := verifyLayout(expected[tu.Name], tu.DType, a); reason != "" {
			return nil, &ShapeMismatchError{Stage: u.Name, Variable: tu.Name, Reason: reason}
		}
		a.Attrs = tu.Attrs
		out[tu.Name] = a
	}
	return out, nil
}

func (u Unit) runTiled(ctx context.Context, pool Pool, st *state.State) (map[string]*grid.Array, error) {
	targets, err := u.Template.Generate(st)
	if err != nil {
		return nil, u.tag(err)
	}
	tiles := st.Tiling().Tiles(st.DimLens())

	task := func(i int) error {
		tile := tiles[i]
		sub := st.Slice(tile)
		results, err := u.Func(sub)
		if err != nil {
			return &ComputationError{Stage: u.Name, Err: err}
		}
		for name := range results {
			if !u.Template.Declares(name) {
				return &ShapeMismatchError{Stage: u.Name, Variable: name, Reason: "not declared by the template"}
			}
		}
		for _, tu := range u.Template.units {
			a, ok := results[tu.Name]
			if !ok {
				return &ShapeMismatchError{Stage: u.Name, Variable: tu.Name, Reason: "not produced"}
			}
			expected := tileCoords(targets[tu.Name], tile)
			if reason := verifyLayout(expected, tu.DType, a); reason != "" {
				return &ShapeMismatchError{Stage: u.Name, Variable: tu.Name, Reason: reason}
			}
			// Tiles are disjoint regions of the target, so concurrent
			// writes never overlap. An output none of whose dimensions
			// are tiled is identical across tiles (tile purity); only
			// the first tile writes it.
			if sharesTiledDim(targets[tu.Name], tile) || i == 0 {
				targets[tu.Name].SetRegion(tile, a)
			}
		}
		return nil
	}

	if pool != nil {
		if err := pool.Apply(ctx, len(tiles), task); err != nil {
			return nil, err
		}
	} else {
		for i := range tiles {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := task(i); err != nil {
				return nil, err
			}
		}
	}
	return targets, nil
}

// tag stamps the stage name onto template errors raised below the unit.
func (u Unit) tag(err error) error {
	if ce, ok := err.(*ConfigurationError); ok {
		ce.Stage = u.Name
	}
	return err
}

// sharesTiledDim reports whether the array carries any dimension the
// tile constrains.
func sharesTiledDim(a *grid.Array, tile grid.Tile) bool {
	for dim := range tile.Offsets {
		if a.HasDim(dim) {
			return true
		}
	}
	return false
}

// tileCoords returns the coordinates of the tile-local region of a
// target array.
func tileCoords(target *grid.Array, tile grid.Tile) []grid.Coordinate {
	coords := make([]grid.Coordinate, len(target.Coords))
	for i, c := range target.Coords {
		if offset, ok := tile.Offsets[c.Name]; ok {
			coords[i] = grid.Coordinate{Name: c.Name, Values: c.Values[offset : offset+tile.Lengths[c.Name]]}
		} else {
			coords[i] = c
		}
	}
	return coords
}

// verifyLayout checks an output array against the declared coordinates
// and dtype, returning a description of the first disagreement.
func verifyLayout(expected []grid.Coordinate, dtype grid.DType, got *grid.Array) string {
	if got.DType != dtype {
		return fmt.Sprintf("dtype %s, want %s", got.DType, dtype)
	}
	dims := got.Dims()
	if len(dims) != len(expected) {
		return fmt.Sprintf("rank %d, want %d", len(dims), len(expected))
	}
	for i, c := range expected {
		if dims[i] != c.Name {
			return fmt.Sprintf("dimension %d is %q, want %q", i, dims[i], c.Name)
		}
		if got.DimLen(c.Name) != c.Len() {
			return fmt.Sprintf("dimension %q has length %d, want %d", c.Name, got.DimLen(c.Name), c.Len())
		}
	}
	return ""
}
