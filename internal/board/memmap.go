package board

import "sort"

// memoryMap is a linearization of slots whose ExportMemorySize is nonzero,
// in slot-insertion order. Ranges are pairwise disjoint, monotonically
// increasing, and the first base is 0. It is built once, at boot, and never
// mutated afterward while the machine runs (spec §3, Memory map).
type memoryMap struct {
	regions []mappedRegion
}

type mappedRegion struct {
	base uint64
	size uint32
	slot *slot
}

// finalizeMemoryMap scans slots in insertion order and assigns each mapped slot a
// contiguous global range, starting at zero.
func finalizeMemoryMap(slots []*slot) memoryMap {
	mm := memoryMap{}

	var base uint64

	for _, s := range slots {
		size := s.device.ExportMemorySize()
		if size == 0 {
			continue
		}

		mm.regions = append(mm.regions, mappedRegion{base: base, size: size, slot: s})
		base += uint64(size)
	}

	return mm
}

// find locates the region containing global address addr, using a binary
// search over region bases, as spec §4.1 directs.
func (mm memoryMap) find(addr uint64) (mappedRegion, bool) {
	idx := sort.Search(len(mm.regions), func(i int) bool {
		return mm.regions[i].base+uint64(mm.regions[i].size) > addr
	})

	if idx == len(mm.regions) {
		return mappedRegion{}, false
	}

	r := mm.regions[idx]
	if addr < r.base {
		return mappedRegion{}, false
	}

	return r, true
}
