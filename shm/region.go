// Package shm lays out and maps the shared-memory region a session lives
// in: a validated header, the channel descriptor table, and one
// cacheline-aligned queue arena per channel.
package shm

import (
	"fmt"

	"github.com/rtipc/rtipc/queue"
)

// Region is a mapped shared-memory segment plus the resolved queue layouts
// within it. Queue order and channel counts are always recorded from the
// owner's point of view; the mapper side swaps the roles when it builds
// endpoints (session.FromMapper), since the owner's producer channel is
// the mapper's consumer channel.
type Region struct {
	mem   []byte
	fd    int
	plan  Plan
	owner bool
}

// Bytes returns the raw mapped region.
func (r *Region) Bytes() []byte { return r.mem }

// FD returns the underlying memfd/shm-backed file descriptor, for passing
// over a handshake carrier.
func (r *Region) FD() int { return r.fd }

// Plan returns the resolved layout.
func (r *Region) Plan() Plan { return r.plan }

// Queue returns the i'th queue in table order (consumers then producers)
// as a *queue.Queue bound into this region's bytes.
func (r *Region) Queue(i int) *queue.Queue {
	off := r.plan.QueueOffsets[i]
	l := r.plan.QueueLayouts[i]
	return queue.New(r.mem[off:off+l.Size()], l)
}

// NumConsumers and NumProducers report the channel counts as recorded in
// the region's header (from the owner's perspective regardless of which
// side mapped it).
func (r *Region) NumConsumers() int { return len(r.plan.ConsumerParams) }
func (r *Region) NumProducers() int { return len(r.plan.ProducerParams) }

// mapFromHeader is shared by the fd-mapping paths (MapFD, MapOwnerNamed): once
// the raw bytes are mapped, parse the header and descriptor table out of
// them and resolve a Plan against the rest of the region.
func mapFromHeader(mem []byte, fd int, owner bool) (*Region, error) {
	h, err := ReadHeader(mem)
	if err != nil {
		return nil, err
	}

	consumers, producers, err := ReadDescriptorTable(mem, int(h.NumConsumers), int(h.NumProducers))
	if err != nil {
		return nil, err
	}

	plan := NewPlan(consumers, producers)
	plan.Header = h // preserve the header exactly as stored, not recomputed

	if len(mem) < plan.TotalSize {
		return nil, fmt.Errorf("shm: mapped region is %d bytes, layout needs %d", len(mem), plan.TotalSize)
	}

	return &Region{mem: mem, fd: fd, plan: plan, owner: owner}, nil
}
