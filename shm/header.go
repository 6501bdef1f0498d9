package shm

import "fmt"

// Magic identifies a region as an rtipc shared-memory segment.
const Magic uint32 = 0x1F0C

// Version is the on-disk layout version this package reads and writes.
const Version uint32 = 1

// AtomicWordSize is the width in bytes of every tail/head/chain word.
const AtomicWordSize uint32 = 4

// DefaultCachelineSize is used when the caller does not know the host's
// actual cacheline size; 64 bytes covers the overwhelming majority of
// production x86_64 and arm64 hosts.
const DefaultCachelineSize uint32 = 64

// Header is the fixed-size record at the start of every region, written by
// the owner and validated by the mapper before it trusts anything else in
// the region.
type Header struct {
	Magic         uint32
	Version       uint32
	CachelineSize uint32
	AtomicSize    uint32
	NumConsumers  uint32
	NumProducers  uint32
}

// HeaderSize is the encoded size of Header in bytes.
const HeaderSize = 6 * 4

// NewHeader builds a header for a region with the given channel counts,
// using DefaultCachelineSize.
func NewHeader(numConsumers, numProducers int) Header {
	return Header{
		Magic:         Magic,
		Version:       Version,
		CachelineSize: DefaultCachelineSize,
		AtomicSize:    AtomicWordSize,
		NumConsumers:  uint32(numConsumers),
		NumProducers:  uint32(numProducers),
	}
}

// Validate checks h against this implementation's expectations. A mapper
// must call this before trusting any other field in a mapped region: a
// mismatch means the owner was built against an incompatible layout.
// Cacheline size must match this host's exactly — every queue offset in
// the region depends on it, so a region built with a different value
// cannot be interpreted, only rejected.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("shm: bad magic 0x%x, want 0x%x", h.Magic, Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("shm: unsupported version %d, want %d", h.Version, Version)
	}
	if h.CachelineSize != DefaultCachelineSize {
		return fmt.Errorf("shm: cacheline size %d, want %d", h.CachelineSize, DefaultCachelineSize)
	}
	if h.AtomicSize != AtomicWordSize {
		return fmt.Errorf("shm: atomic word size %d, want %d", h.AtomicSize, AtomicWordSize)
	}
	return nil
}
