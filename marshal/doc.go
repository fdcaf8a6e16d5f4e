// Package marshal copies byte sequences across the native memory boundary.
//
// Native to host, the native side describes a region with a fixed-layout
// Descriptor:
//
//	offset 0  ptr  u32 little-endian
//	offset 4  len  u32 little-endian
//
// CopyOut copies exactly len bytes into a fresh host slice after checking the
// whole region lies inside linear memory; nothing returned aliases native
// memory. The length always comes from the descriptor, never from a host
// buffer's capacity.
//
// Host to native, CopyIn allocates a Region through the native allocator and
// writes the bytes there for the duration of one call. Allocations collects
// the regions of a call and frees them in reverse order afterwards.
package marshal
