package marshal

import (
	robotbridge "github.com/wippyai/robot-bridge"
	"github.com/wippyai/robot-bridge/errors"
)

// DescriptorSize is the byte size of an encoded Descriptor.
const DescriptorSize = 8

const (
	ptrOffset = 0
	lenOffset = 4
)

// Descriptor describes a byte region in native memory.
type Descriptor struct {
	Ptr uint32
	Len uint32
}

// End returns the exclusive end offset of the region as a 64-bit value, so
// it cannot wrap.
func (d Descriptor) End() uint64 {
	return uint64(d.Ptr) + uint64(d.Len)
}

// InBounds reports whether the region fits in a memory of size bytes.
func (d Descriptor) InBounds(size uint32) bool {
	return d.End() <= uint64(size)
}

// ReadDescriptor decodes the descriptor stored at addr.
func ReadDescriptor(mem robotbridge.Memory, addr uint32) (Descriptor, error) {
	if mem == nil {
		return Descriptor{}, errors.NotInitialized(errors.PhaseMarshal, "memory")
	}
	header := Descriptor{Ptr: addr, Len: DescriptorSize}
	if !header.InBounds(mem.Size()) {
		return Descriptor{}, errors.OutOfBounds(errors.PhaseMarshal, addr, DescriptorSize, mem.Size())
	}

	ptr, err := mem.ReadU32(addr + ptrOffset)
	if err != nil {
		return Descriptor{}, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "read descriptor ptr")
	}
	length, err := mem.ReadU32(addr + lenOffset)
	if err != nil {
		return Descriptor{}, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "read descriptor len")
	}
	return Descriptor{Ptr: ptr, Len: length}, nil
}

// WriteDescriptor encodes d at addr.
func WriteDescriptor(mem robotbridge.Memory, addr uint32, d Descriptor) error {
	if err := mem.WriteU32(addr+ptrOffset, d.Ptr); err != nil {
		return errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write descriptor ptr")
	}
	if err := mem.WriteU32(addr+lenOffset, d.Len); err != nil {
		return errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "write descriptor len")
	}
	return nil
}

// CopyOut copies the region described by d into a new host slice. A zero
// length yields an empty, non-nil slice. Regions outside memory are rejected
// before any byte is read.
func CopyOut(mem robotbridge.Memory, d Descriptor) ([]byte, error) {
	if mem == nil {
		return nil, errors.NotInitialized(errors.PhaseMarshal, "memory")
	}
	if d.Len == 0 {
		return []byte{}, nil
	}
	if !d.InBounds(mem.Size()) {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, d.Ptr, d.Len, mem.Size())
	}

	view, err := mem.Read(d.Ptr, d.Len)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, "read region")
	}
	if uint32(len(view)) != d.Len {
		return nil, errors.InvalidData(errors.PhaseMarshal, "short read from native memory")
	}

	out := make([]byte, d.Len)
	copy(out, view)
	return out, nil
}

// ReadBuffer decodes the descriptor at addr and copies its region out.
func ReadBuffer(mem robotbridge.Memory, addr uint32) ([]byte, error) {
	d, err := ReadDescriptor(mem, addr)
	if err != nil {
		return nil, err
	}
	return CopyOut(mem, d)
}
