// Package kern composes simulation stages into a pipeline over a shared
// state of named arrays.
//
// A [Unit] binds a pure transformation function to a [Template]
// predeclaring the name, dimensions, dtype and attributes of every
// variable the stage produces, so tiled execution can pre-allocate the
// stage's output before the function runs. A [Kernel] applies its units
// strictly in declared order, merging each stage's output into the
// running state with override semantics and then dropping the stage's
// evicted variables.
//
// Stage functions must be tile-pure: for input restricted to a tile they
// must produce exactly the portion of the full result corresponding to
// that tile, with no cross-tile information and no accumulated state.
// This makes the direct and tiled execution strategies interchangeable
// without touching stage code.
package kern
