package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	robotbridge "github.com/wippyai/robot-bridge"
)

// memoryView adapts wazero api.Memory to robotbridge.Memory.
type memoryView struct {
	mem api.Memory
}

var _ robotbridge.Memory = (*memoryView)(nil)

func (m *memoryView) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *memoryView) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *memoryView) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *memoryView) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *memoryView) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *memoryView) Size() uint32 {
	return m.mem.Size()
}

// allocator calls the module's malloc and free exports. ctx is set by the
// instance before each native call.
type allocator struct {
	ctx    context.Context
	malloc api.Function
	free   api.Function
}

var _ robotbridge.Allocator = (*allocator)(nil)

func (a *allocator) context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

func (a *allocator) Alloc(size uint32) (uint32, error) {
	results, err := a.malloc.Call(a.context(), uint64(size))
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("malloc returned no result")
	}
	return uint32(results[0]), nil
}

func (a *allocator) Free(ptr, size uint32) {
	_, _ = a.free.Call(a.context(), uint64(ptr), uint64(size))
}
