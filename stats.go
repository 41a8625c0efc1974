package rangebitmap

import "fmt"

// Stats describes the physical shape of a store.
type Stats struct {
	// Rows is the number of indexed rows.
	Rows uint64

	// Blocks is the number of 65536-row blocks.
	Blocks int

	// SliceCount is the number of bit slices.
	SliceCount int

	// Containers counts the containers actually stored; absent containers
	// encode empty slices for free.
	Containers int

	// SetBits sums the cardinality of every stored container.
	SetBits uint64

	// ContainerBytes is the serialized size of all containers.
	ContainerBytes uint64

	// MaskBytes is the size of the block presence mask region.
	MaskBytes int

	// SizeInBytes is the total serialized size including the header.
	SizeInBytes uint64
}

// Density reports the fraction of (block, slice) cells that hold a
// container. Low density means many blocks answer queries without touching
// any container data.
func (s Stats) Density() float64 {
	cells := s.Blocks * s.SliceCount
	if cells == 0 {
		return 0
	}
	return float64(s.Containers) / float64(cells)
}

func (s Stats) String() string {
	return fmt.Sprintf("rows=%d slices=%d blocks=%d containers=%d density=%.3f bytes=%d",
		s.Rows, s.SliceCount, s.Blocks, s.Containers, s.Density(), s.SizeInBytes)
}

// Stats aggregates container and byte statistics over the store.
func (rb *RangeBitmap) Stats() Stats {
	st := Stats{
		Rows:        uint64(rb.hdr.rows),
		Blocks:      rb.blocks,
		SliceCount:  rb.hdr.sliceCount,
		Containers:  len(rb.containers),
		MaskBytes:   rb.blocks * rb.hdr.maskByteWidth,
		SizeInBytes: uint64(len(rb.buf)),
	}

	for _, c := range rb.containers {
		st.SetBits += c.GetCardinality()
		st.ContainerBytes += c.GetSerializedSizeInBytes()
	}

	return st
}
