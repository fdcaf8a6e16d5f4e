package marshal

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// SliceMemory is an in-process linear memory with a stack allocator. It lets
// Go implementations of the native side share the marshaling path with the
// wasm engine.
type SliceMemory struct {
	buf  []byte
	heap uint32
	base uint32
	mu   sync.Mutex
}

// NewSliceMemory creates a memory of size bytes. Allocations start at base.
func NewSliceMemory(size, base uint32) *SliceMemory {
	return &SliceMemory{buf: make([]byte, size), heap: base, base: base}
}

func (m *SliceMemory) bounds(offset, length uint32) bool {
	return uint64(offset)+uint64(length) <= uint64(len(m.buf))
}

// Read returns a view of length bytes at offset.
func (m *SliceMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if !m.bounds(offset, length) {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return m.buf[offset : offset+length], nil
}

// Write copies data to offset.
func (m *SliceMemory) Write(offset uint32, data []byte) error {
	if !m.bounds(offset, uint32(len(data))) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(m.buf[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *SliceMemory) ReadU8(offset uint32) (uint8, error) {
	if !m.bounds(offset, 1) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return m.buf[offset], nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *SliceMemory) ReadU32(offset uint32) (uint32, error) {
	if !m.bounds(offset, 4) {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *SliceMemory) WriteU32(offset uint32, value uint32) error {
	if !m.bounds(offset, 4) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], value)
	return nil
}

// Size returns the memory size in bytes.
func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.buf))
}

// Alloc reserves size bytes, 8-byte aligned. It returns 0 when full.
func (m *SliceMemory) Alloc(size uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ptr := m.heap
	next := uint64(ptr) + uint64(align8(size))
	if next > uint64(len(m.buf)) {
		return 0, fmt.Errorf("out of memory: %d bytes requested", size)
	}
	m.heap = uint32(next)
	return ptr, nil
}

// Free releases the most recent allocation; other frees are ignored.
func (m *SliceMemory) Free(ptr, size uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ptr+align8(size) == m.heap {
		m.heap = ptr
	}
}

// InUse returns the number of allocated bytes.
func (m *SliceMemory) InUse() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heap - m.base
}

func align8(n uint32) uint32 {
	return (n + 7) &^ 7
}
