package markengine

import "github.com/zbench/stripemark/internal/markstack"

// wordSize is the reference width uses to convert a
// PartialArray entry's length (a count of references) to bytes.
const wordSize = 8

func alignUp(v, align uintptr) uintptr   { return (v + align - 1) &^ (align - 1) }
func alignDown(v, align uintptr) uintptr { return v &^ (align - 1) }

// partialRange is one inline-or-pushed chunk of an object array.
type partialRange struct {
	start, end uintptr
}

// splitArray splits an array whose size exceeds partial_array_min into
// an inline leading range to scan immediately (guaranteed non-empty by
// the "+1" bias) plus a set of partial-array chunks covering the rest
// of the array, trailing-to-leading. The chunks and the inline range
// together cover [addr, addr+size) with no overlap; every chunk start
// is aligned to markstack.PartialArrayMinSize so it round-trips through
// a PartialArray entry's offset field. Chunk ends are aligned too,
// except the trailing chunk's, which is addr+size.
func splitArray(addr, size uintptr) (inline partialRange, chunks []partialRange) {
	const minSize = markstack.PartialArrayMinSize
	end := addr + size
	middleStart := alignUp(addr+1, minSize)
	middleSize := alignDown(end-middleStart, minSize)
	middleEnd := middleStart + middleSize

	if middleEnd < end {
		chunks = append(chunks, partialRange{middleEnd, end})
	}

	lo, hi := middleStart, middleEnd
	for hi > lo {
		half := alignUp(lo+(hi-lo)/2, minSize)
		if half <= lo || half >= hi {
			chunks = append(chunks, partialRange{lo, hi})
			break
		}
		chunks = append(chunks, partialRange{half, hi})
		hi = half
	}
	return partialRange{addr, middleStart}, chunks
}

// entryForChunk packs a partial-array chunk into a MarkStackEntry, per
// offset = absolute_address >> k encoding.
func entryForChunk(c partialRange, finalizable bool) markstack.Entry {
	offset := uint64(c.start) >> markstack.PartialArrayMinShift
	length := uint32((c.end - c.start) / wordSize)
	return markstack.NewPartialArrayEntry(offset, length, finalizable)
}
