// Package wire implements the pure byte-level encode/decode of a
// handshake request: no socket I/O happens here (see package handshake
// for the AF_UNIX SOCK_SEQPACKET transport that carries these bytes plus
// the accompanying file descriptors).
package wire

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a byte sequence as an rtipc handshake request.
const Magic uint16 = 0x1F0C

// Version is the on-wire format version this package reads and writes.
const Version uint16 = 1

// HeaderSize is the encoded size of Header in bytes.
const HeaderSize = 4 * 2

// Header is the first 8 bytes of every handshake request, validated by the
// receiver before it trusts anything else in the message.
type Header struct {
	Magic         uint16
	Version       uint16
	CachelineSize uint16
	AtomicSize    uint16
}

// NewHeader builds a header describing this implementation's fixed
// layout parameters.
func NewHeader(cachelineSize uint16) Header {
	return Header{Magic: Magic, Version: Version, CachelineSize: cachelineSize, AtomicSize: 4}
}

// Validate checks h against this implementation's expectations.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("wire: bad magic 0x%x, want 0x%x", h.Magic, Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("wire: unsupported version %d, want %d", h.Version, Version)
	}
	if h.AtomicSize != 4 {
		return fmt.Errorf("wire: atomic word size %d, want 4", h.AtomicSize)
	}
	if h.CachelineSize == 0 || h.CachelineSize&(h.CachelineSize-1) != 0 {
		return fmt.Errorf("wire: cacheline size %d is not a power of two", h.CachelineSize)
	}
	return nil
}

func (h Header) encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], h.Magic)
	binary.LittleEndian.PutUint16(b[2:4], h.Version)
	binary.LittleEndian.PutUint16(b[4:6], h.CachelineSize)
	binary.LittleEndian.PutUint16(b[6:8], h.AtomicSize)
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:         binary.LittleEndian.Uint16(b[0:2]),
		Version:       binary.LittleEndian.Uint16(b[2:4]),
		CachelineSize: binary.LittleEndian.Uint16(b[4:6]),
		AtomicSize:    binary.LittleEndian.Uint16(b[6:8]),
	}
}
