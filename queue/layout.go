package queue

// Params describes one channel's slot geometry, chosen by whichever side
// of the handshake requests the channel.
type Params struct {
	// MsgSize is the size in bytes of one message.
	MsgSize int
	// AddMsgs is the number of extra slots beyond the 3-slot minimum
	// (producer current, producer head, consumer tail each need their own
	// slot at a minimum to guarantee forward progress without blocking).
	AddMsgs int
}

// MinMsgs is the minimum number of slots a queue can be built with.
const MinMsgs = 3

// NMsgs returns the total slot count for p.
func (p Params) NMsgs() int { return MinMsgs + p.AddMsgs }

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// Layout describes the byte offsets of one queue's on-arena sub-regions,
// relative to the start of the arena passed to New. Index words (tail,
// head, chain) are packed as a contiguous [2+NMsgs]uint32 array; messages
// follow, each cacheline-aligned so concurrent slot writes never share a
// cacheline.
type Layout struct {
	NMsgs         int
	MsgSize       int
	MsgStride     int
	CachelineSize int

	IndicesOffset int
	IndicesSize   int
	MsgsOffset    int
	MsgsSize      int
}

// CalcLayout computes the arena layout for p using the given cacheline
// size (for message-slot alignment) and atomic word width (4 bytes for
// uint32, always 4 in this implementation).
func CalcLayout(p Params, cachelineSize int) Layout {
	nMsgs := p.NMsgs()
	indicesSize := (2 + nMsgs) * 4
	indicesSize = alignUp(indicesSize, cachelineSize)

	stride := alignUp(p.MsgSize, cachelineSize)

	return Layout{
		NMsgs:         nMsgs,
		MsgSize:       p.MsgSize,
		MsgStride:     stride,
		CachelineSize: cachelineSize,
		IndicesOffset: 0,
		IndicesSize:   indicesSize,
		MsgsOffset:    indicesSize,
		MsgsSize:      stride * nMsgs,
	}
}

// Size returns the total number of bytes an arena built with l must have.
func (l Layout) Size() int { return l.IndicesSize + l.MsgsSize }
