package marshal

import (
	"sync"

	robotbridge "github.com/wippyai/robot-bridge"
	"github.com/wippyai/robot-bridge/errors"
)

// Region is host data copied into native memory for one call.
type Region struct {
	Ptr uint32
	Len uint32
}

// CopyIn allocates len(data) bytes in native memory and writes data there.
// Empty data needs no allocation and yields the zero Region.
func CopyIn(alloc robotbridge.Allocator, mem robotbridge.Memory, data []byte) (Region, error) {
	if len(data) == 0 {
		return Region{}, nil
	}
	if alloc == nil || mem == nil {
		return Region{}, errors.NotInitialized(errors.PhaseMarshal, "allocator")
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return Region{}, errors.InvalidInput(errors.PhaseMarshal, "buffer exceeds 4GiB")
	}

	size := uint32(len(data))
	ptr, err := alloc.Alloc(size)
	if err != nil {
		return Region{}, errors.AllocationFailed(size, err)
	}
	if ptr == 0 {
		return Region{}, errors.AllocationFailed(size, nil)
	}

	r := Region{Ptr: ptr, Len: size}
	if !(Descriptor(r)).InBounds(mem.Size()) {
		alloc.Free(ptr, size)
		return Region{}, errors.OutOfBounds(errors.PhaseMarshal, ptr, size, mem.Size())
	}
	if err := mem.Write(ptr, data); err != nil {
		alloc.Free(ptr, size)
		return Region{}, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write region")
	}
	return r, nil
}

// Allocations tracks the regions of one native call.
type Allocations struct {
	regions []Region
}

var allocationsPool = sync.Pool{
	New: func() any {
		return &Allocations{regions: make([]Region, 0, 4)}
	},
}

const maxPooledAllocations = 64

// NewAllocations returns an empty list from the pool.
func NewAllocations() *Allocations {
	return allocationsPool.Get().(*Allocations)
}

// Add records r.
func (a *Allocations) Add(r Region) {
	if r.Ptr != 0 {
		a.regions = append(a.regions, r)
	}
}

// Count returns the number of recorded regions.
func (a *Allocations) Count() int {
	return len(a.regions)
}

// Free releases every region, newest first, and returns the list to the pool.
// The list must not be used afterwards.
func (a *Allocations) Free(alloc robotbridge.Allocator) {
	if alloc != nil {
		for i := len(a.regions) - 1; i >= 0; i-- {
			alloc.Free(a.regions[i].Ptr, a.regions[i].Len)
		}
	}
	if cap(a.regions) > maxPooledAllocations {
		return
	}
	a.regions = a.regions[:0]
	allocationsPool.Put(a)
}
