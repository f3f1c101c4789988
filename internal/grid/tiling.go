package grid

import "sort"

// Tiling maps dimension labels to tile lengths. Dimensions not listed
// are never split. A tile length of zero or one covering the whole
// dimension means the dimension stays in one piece.
type Tiling map[string]int

// Clone returns a copy of the tiling.
func (t Tiling) Clone() Tiling {
	c := make(Tiling, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Splits reports whether the tiling actually divides any of the given
// dimension lengths into more than one block.
func (t Tiling) Splits(dimLens map[string]int) bool {
	for dim, size := range t {
		if size <= 0 {
			continue
		}
		if n, ok := dimLens[dim]; ok && n > size {
			return true
		}
	}
	return false
}

// Tile is one contiguous sub-block of the coordinate system: an offset
// and length per tiled dimension. Dimensions absent from the tile are
// taken whole.
type Tile struct {
	Offsets map[string]int
	Lengths map[string]int
}

// Covers reports whether the tile constrains the given dimension.
func (t Tile) Covers(dim string) bool {
	_, ok := t.Offsets[dim]
	return ok
}

// Tiles enumerates every tile of the given dimension lengths under the
// tiling, in row-major order of the tiled dimensions (sorted by label
// for determinism). With an empty tiling it returns a single whole tile.
func (t Tiling) Tiles(dimLens map[string]int) []Tile {
	dims := make([]string, 0, len(t))
	for dim, size := range t {
		if size <= 0 {
			continue
		}
		if _, ok := dimLens[dim]; ok {
			dims = append(dims, dim)
		}
	}
	sort.Strings(dims)

	tiles := []Tile{{Offsets: map[string]int{}, Lengths: map[string]int{}}}
	for _, dim := range dims {
		size := t[dim]
		total := dimLens[dim]
		var next []Tile
		for _, base := range tiles {
			for offset := 0; offset < total; offset += size {
				length := size
				if offset+length > total {
					length = total - offset
				}
				tile := Tile{
					Offsets: make(map[string]int, len(base.Offsets)+1),
					Lengths: make(map[string]int, len(base.Lengths)+1),
				}
				for k, v := range base.Offsets {
					tile.Offsets[k] = v
				}
				for k, v := range base.Lengths {
					tile.Lengths[k] = v
				}
				tile.Offsets[dim] = offset
				tile.Lengths[dim] = length
				next = append(next, tile)
			}
		}
		tiles = next
	}
	return tiles
}

// Slice extracts the tile-local sub-block of the array. Dimensions the
// tile does not cover are kept whole. The result owns its storage.
func (a *Array) Slice(t Tile) *Array {
	coords := make([]Coordinate, len(a.Coords))
	for i, c := range a.Coords {
		if offset, ok := t.Offsets[c.Name]; ok {
			coords[i] = c.slice(offset, t.Lengths[c.Name])
		} else {
			coords[i] = c
		}
	}
	out := New(a.Name, a.DType, coords...)
	out.Attrs = a.Attrs
	copyRegion(out, a, t, false)
	return out
}

// SetRegion writes a tile-shaped source array into the matching region
// of the receiver.
func (a *Array) SetRegion(t Tile, src *Array) {
	copyRegion(src, a, t, true)
}

// copyRegion walks the tile region of full and the whole of sub in
// lockstep. reverse=false copies full->sub, reverse=true copies
// sub->full.
func copyRegion(sub, full *Array, t Tile, reverse bool) {
	rank := len(full.Coords)
	if rank == 0 {
		if reverse {
			full.Data[0] = sub.Data[0]
		} else {
			sub.Data[0] = full.Data[0]
		}
		return
	}
	offsets := make([]int, rank)
	lengths := make([]int, rank)
	for i, c := range full.Coords {
		if o, ok := t.Offsets[c.Name]; ok {
			offsets[i] = o
			lengths[i] = t.Lengths[c.Name]
		} else {
			lengths[i] = full.shape[i]
		}
	}
	idx := make([]int, rank)
	for {
		fullFlat := 0
		subFlat := 0
		for i := range idx {
			fullFlat += (offsets[i] + idx[i]) * full.strides[i]
			subFlat += idx[i] * sub.strides[i]
		}
		if reverse {
			full.Data[fullFlat] = sub.Data[subFlat]
		} else {
			sub.Data[subFlat] = full.Data[fullFlat]
		}
		i := rank - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < lengths[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
