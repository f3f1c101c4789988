// Package grid provides named multi-dimensional arrays on labeled
// coordinates, plus the tiling layout used to split arrays into
// contiguous sub-blocks for parallel computation.
//
// Arrays are dense, row-major float64 buffers. Boolean fields share the
// same storage and are tagged with [Bool]; values are 0 or 1. Every
// dimension of an array carries a [Coordinate] giving the dimension its
// label and ordered values.
package grid
