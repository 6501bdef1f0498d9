// Package queue implements the lock-free single-producer/single-consumer
// overwrite queue that underlies every channel in this module.
package queue

// Index identifies a slot in a Queue's message arena, or carries the
// ConsumedFlag bit alongside a slot index in the tail/chain atomic words.
type Index = uint32

const (
	// Invalid marks a tail/head/chain word that does not reference a slot.
	// It is all-ones, so ORing ConsumedFlag into it is a no-op: an invalid
	// word stays invalid no matter which side last touched it.
	Invalid Index = ^Index(0)

	// ConsumedFlag is OR'd into the tail word by the consumer to mark that
	// it has observed the current tail value. The producer inspects this
	// bit to decide whether the consumer has released a slot back to it.
	ConsumedFlag Index = 1 << 31

	// IndexMask isolates the slot-index bits of a tail/chain word.
	IndexMask Index = ^ConsumedFlag
)

// SlotIndex strips the ConsumedFlag bit, returning the raw slot index.
func SlotIndex(w Index) Index { return w & IndexMask }

// IsConsumed reports whether w has the ConsumedFlag bit set.
func IsConsumed(w Index) bool { return w&ConsumedFlag != 0 }

// IsInvalid reports whether w (with or without ConsumedFlag set) denotes
// no slot at all.
func IsInvalid(w Index) bool { return w|ConsumedFlag == Invalid }

func inRange(idx Index, nMsgs int) bool { return int(idx) < nMsgs }
