package bridge

import (
	"sync"

	svgpng "github.com/wippyai/svgpng"
)

// Allocation is one scratch buffer inside the guest.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Scratch is the set of request-side buffers owned by a single render.
type Scratch struct {
	allocations []Allocation
}

var scratchPool = sync.Pool{
	New: func() any {
		return &Scratch{allocations: make([]Allocation, 0, 16)}
	},
}

func NewScratch() *Scratch {
	return scratchPool.Get().(*Scratch)
}

const maxPooledScratchCapacity = 128

// Release returns to pool. Must call after Free(); scratch invalid after Release.
func (s *Scratch) Release() {
	// Only pool small sets to prevent memory bloat
	if cap(s.allocations) > maxPooledScratchCapacity {
		return
	}
	s.Reset()
	scratchPool.Put(s)
}

func (s *Scratch) FreeAndRelease(allocator svgpng.Allocator) {
	s.Free(allocator)
	s.Release()
}

func (s *Scratch) Add(ptr, size, align uint32) {
	s.allocations = append(s.allocations, Allocation{
		Ptr:   ptr,
		Size:  size,
		Align: align,
	})
}

// Free releases every buffer in reverse allocation order and empties the
// set, so a second call frees nothing.
func (s *Scratch) Free(allocator svgpng.Allocator) {
	if allocator == nil {
		return
	}
	for i := len(s.allocations) - 1; i >= 0; i-- {
		a := s.allocations[i]
		if a.Ptr != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
	s.Reset()
}

func (s *Scratch) Reset() {
	s.allocations = s.allocations[:0]
}

func (s *Scratch) Count() int {
	return len(s.allocations)
}

// Bytes is the total size of all live scratch buffers.
func (s *Scratch) Bytes() uint64 {
	var n uint64
	for _, a := range s.allocations {
		n += uint64(a.Size)
	}
	return n
}
