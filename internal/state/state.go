// Package state holds the evolving mapping from variable name to named
// array that a kernel run threads through its stages. All variables in a
// state share one coordinate system: two variables carrying the same
// dimension label must agree on that dimension's coordinate values.
package state

import (
	"fmt"
	"sort"

	"github.com/san-kum/marlin/internal/grid"
)

// MissingVariableError reports a read of a variable that is not in the
// state, typically because the stage producing it was removed from the
// pipeline or the variable was evicted too early.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("state: variable %q not found", e.Name)
}

// State is the variable mapping plus the coordinate registry and the
// tiling layout under which the run is organized.
type State struct {
	vars   map[string]*grid.Array
	coords map[string]grid.Coordinate
	tiling grid.Tiling
}

// New returns an empty state with the given tiling layout. A nil tiling
// means the state is never organized into tiles.
func New(tiling grid.Tiling) *State {
	return &State{
		vars:   make(map[string]*grid.Array),
		coords: make(map[string]grid.Coordinate),
		tiling: tiling,
	}
}

// Set adds or replaces a variable. Every dimension of the array must
// agree with the coordinate already registered under the same label.
func (s *State) Set(a *grid.Array) error {
	for _, c := range a.Coords {
		known, ok := s.coords[c.Name]
		if !ok {
			s.coords[c.Name] = c
			continue
		}
		if !known.Equal(c) {
			return fmt.Errorf("state: variable %q redefines dimension %q (length %d, registered length %d)",
				a.Name, c.Name, c.Len(), known.Len())
		}
	}
	s.vars[a.Name] = a
	return nil
}

// Get returns a variable or a MissingVariableError.
func (s *State) Get(name string) (*grid.Array, error) {
	a, ok := s.vars[name]
	if !ok {
		return nil, &MissingVariableError{Name: name}
	}
	return a, nil
}

// Has reports whether the variable is present.
func (s *State) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Names returns the variable names in sorted order.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of variables.
func (s *State) Len() int { return len(s.vars) }

// Coord returns the registered coordinate for a dimension label.
func (s *State) Coord(dim string) (grid.Coordinate, bool) {
	c, ok := s.coords[dim]
	return c, ok
}

// DimLens returns the length of every registered dimension.
func (s *State) DimLens() map[string]int {
	lens := make(map[string]int, len(s.coords))
	for dim, c := range s.coords {
		lens[dim] = c.Len()
	}
	return lens
}

// Tiling returns the tiling layout the state was organized with.
func (s *State) Tiling() grid.Tiling { return s.tiling }

// Tiled reports whether the state is actually split into more than one
// tile under its layout.
func (s *State) Tiled() bool {
	return s.tiling.Splits(s.DimLens())
}

// Merge returns a new state with every given variable added with
// override semantics: a produced name replaces any existing variable of
// the same name, unrelated variables are untouched. The receiver is not
// modified, so a failed stage never leaves a partial merge behind.
func (s *State) Merge(vars map[string]*grid.Array) (*State, error) {
	out := &State{
		vars:   make(map[string]*grid.Array, len(s.vars)+len(vars)),
		coords: make(map[string]grid.Coordinate, len(s.coords)),
		tiling: s.tiling,
	}
	for name, a := range s.vars {
		out.vars[name] = a
	}
	for dim, c := range s.coords {
		out.coords[dim] = c
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := out.Set(vars[name]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Drop removes variables by name. Unknown names are ignored. Registered
// coordinates stay: later stages may still template over them.
func (s *State) Drop(names ...string) {
	for _, name := range names {
		delete(s.vars, name)
	}
}

// Slice returns the tile-local view of the state: every variable is
// restricted to the tile along the dimensions the tile covers. The
// sub-state carries no tiling so nested runs execute directly.
func (s *State) Slice(t grid.Tile) *State {
	out := New(nil)
	for _, name := range s.Names() {
		// Set cannot fail here: slices of consistent variables stay consistent.
		_ = out.Set(s.vars[name].Slice(t))
	}
	return out
}

// NBytes returns the summed storage footprint of all variables.
func (s *State) NBytes() int64 {
	var n int64
	for _, a := range s.vars {
		n += a.NBytes()
	}
	return n
}
