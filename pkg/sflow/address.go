// Package sflow implements the sFlow v5 sampling agent: a stochastic flow
// sampler, a periodic counter poller, and a datagram encoder, embeddable in
// a host server that owns the socket and the sampling-rate decision.
package sflow

import "fmt"

// AddressType identifies the kind of address carried by an Address.
type AddressType uint32

// Address types as they appear on the wire (www.sflow.org).
const (
	AddressUndefined AddressType = 0
	AddressIPv4      AddressType = 1
	AddressIPv6      AddressType = 2
)

// Address is a tagged IPv4/IPv6 value. The zero Address is Undefined and
// encodes on the wire as IPv4 0.0.0.0, per spec.
type Address struct {
	Type  AddressType
	Bytes []byte // 4 bytes for IPv4, 16 for IPv6, nil for Undefined
}

// NewIPv4Address builds an Address from four octets.
func NewIPv4Address(a, b, c, d byte) Address {
	return Address{Type: AddressIPv4, Bytes: []byte{a, b, c, d}}
}

// NewIPv6Address builds an Address from sixteen octets.
func NewIPv6Address(b16 [16]byte) Address {
	buf := make([]byte, 16)
	copy(buf, b16[:])
	return Address{Type: AddressIPv6, Bytes: buf}
}

func (a Address) String() string {
	switch a.Type {
	case AddressIPv4:
		if len(a.Bytes) == 4 {
			return fmt.Sprintf("%d.%d.%d.%d", a.Bytes[0], a.Bytes[1], a.Bytes[2], a.Bytes[3])
		}
	case AddressIPv6:
		if len(a.Bytes) == 16 {
			return fmt.Sprintf("%x", a.Bytes)
		}
	}
	return "undefined"
}

// DSClass is the class component of a data-source instance.
type DSClass uint32

// Data-source classes, per spec §3.
const (
	DSClassIfIndex         DSClass = 0
	DSClassVLAN            DSClass = 1
	DSClassPhysicalEntity  DSClass = 2
	DSClassLogicalEntity   DSClass = 3
)

// DataSourceInstance identifies the logical origin of samples within the
// agent: (class, index, instance). Ordering is lexicographic over the
// triple, used to keep sampler/poller registries sorted.
type DataSourceInstance struct {
	Class    DSClass
	Index    uint32
	Instance uint32
}

// SourceID encodes the (class, index) pair into the single 32-bit value
// that appears on the wire as a flow/counters sample's source_id.
func (dsi DataSourceInstance) SourceID() uint32 {
	return (uint32(dsi.Class) << 24) | dsi.Index
}

// Compare returns <0, 0, >0 as dsi sorts before, equal to, or after other,
// comparing (Class, Index, Instance) lexicographically.
func (dsi DataSourceInstance) Compare(other DataSourceInstance) int {
	if dsi.Class != other.Class {
		return int(dsi.Class) - int(other.Class)
	}
	if dsi.Index != other.Index {
		if dsi.Index < other.Index {
			return -1
		}
		return 1
	}
	if dsi.Instance != other.Instance {
		if dsi.Instance < other.Instance {
			return -1
		}
		return 1
	}
	return 0
}
