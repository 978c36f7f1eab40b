package zarr

// A mapping of items from chunk to output array. Can be used to extract items
// from the chunk array for loading into an output array. Can also be used to
// extract items from a value array for setting/updating in a chunk array.
type chunkProjection struct {
	// Index of chunk.
	ChunkIX int
	// First item selected within the chunk.
	ChunkSel int
	// First item written in the target (output) array.
	OutSel int
	// Number of items selected.
	Count int
}

// projectRange splits the item range [start, start+count) of a one
// dimensional array with chunks of chunkLen items into per-chunk selections
func projectRange(start, count, chunkLen int) []chunkProjection {
	if count <= 0 || chunkLen <= 0 {
		return nil
	}
	first := start / chunkLen
	last := (start + count - 1) / chunkLen
	ps := make([]chunkProjection, 0, last-first+1)
	out := 0
	for ix := first; ix <= last; ix++ {
		sel := 0
		if ix == first {
			sel = start - ix*chunkLen
		}
		n := chunkLen - sel
		if rem := count - out; n > rem {
			n = rem
		}
		ps = append(ps, chunkProjection{ChunkIX: ix, ChunkSel: sel, OutSel: out, Count: n})
		out += n
	}
	return ps
}
