package session

import (
	"github.com/rtipc/rtipc/channel"
	"github.com/rtipc/rtipc/shm"
)

// ChannelMeta carries the per-channel opaque metadata blob and optional
// eventfd resolved for one channel slot, supplied by the handshake layer
// once it has parsed the wire request and taken ownership of the
// transferred file descriptors.
type ChannelMeta struct {
	Meta []byte
	EFD  channel.EventFD
}

// FromOwner builds a Vector for the side that allocated region (the
// dialer, per this implementation's handshake flow — see package
// handshake). The owner's consumer channels become this vector's
// consumers and its producer channels become its producers: no mirroring,
// since this IS the owner's own point of view.
func FromOwner(region *shm.Region, consumerMeta, producerMeta []ChannelMeta, info []byte) *Vector {
	holders := int32(1 + len(consumerMeta) + len(producerMeta))
	ref := newRegionRef(region, holders)

	v := &Vector{region: region, ref: ref, info: info}

	n := region.NumConsumers()
	v.consumers = make([]*Consumer, n)
	for i := 0; i < n; i++ {
		q := region.Queue(i)
		c := channel.NewConsumer(q, consumerMeta[i].EFD, consumerMeta[i].Meta)
		v.consumers[i] = &Consumer{Consumer: c, efd: consumerMeta[i].EFD, ref: ref}
	}

	m := region.NumProducers()
	v.producers = make([]*Producer, m)
	for i := 0; i < m; i++ {
		q := region.Queue(n + i)
		p := channel.NewProducer(q, producerMeta[i].EFD, producerMeta[i].Meta)
		v.producers[i] = &Producer{Producer: p, efd: producerMeta[i].EFD, ref: ref}
	}

	return v
}

// FromMapper builds a Vector for the side that received region over a
// handshake (the listener, per this implementation's flow). Roles are
// mirrored relative to the owner: the region's consumer queues (the
// owner reads them) become this vector's producers, and the region's
// producer queues become this vector's consumers.
func FromMapper(region *shm.Region, consumerMeta, producerMeta []ChannelMeta, info []byte) *Vector {
	holders := int32(1 + len(consumerMeta) + len(producerMeta))
	ref := newRegionRef(region, holders)

	v := &Vector{region: region, ref: ref, info: info}

	n := region.NumConsumers()
	v.producers = make([]*Producer, n)
	for i := 0; i < n; i++ {
		q := region.Queue(i)
		p := channel.NewProducer(q, consumerMeta[i].EFD, consumerMeta[i].Meta)
		v.producers[i] = &Producer{Producer: p, efd: consumerMeta[i].EFD, ref: ref}
	}

	m := region.NumProducers()
	v.consumers = make([]*Consumer, m)
	for i := 0; i < m; i++ {
		q := region.Queue(n + i)
		c := channel.NewConsumer(q, producerMeta[i].EFD, producerMeta[i].Meta)
		v.consumers[i] = &Consumer{Consumer: c, efd: producerMeta[i].EFD, ref: ref}
	}

	return v
}
