package sflow

import "encoding/binary"

// Datagram and buffer size limits, per spec §3/§6 (SFL_MAX_DATAGRAM_SIZE,
// SFL_MIN_DATAGRAM_SIZE, SFL_DEFAULT_DATAGRAM_SIZE, SFL_DATA_PAD in the
// original C header).
const (
	MaxDatagramSize     = 1500
	MinDatagramSize     = 200
	DefaultDatagramSize = 1400
	dataPad             = 400
	bufferCapacity      = MaxDatagramSize + dataPad

	// DefaultCollectorPort is the default sFlow collector UDP port.
	DefaultCollectorPort = 6343
)

// sampleCollector is the fixed-capacity buffer a Receiver assembles one
// datagram into. It mirrors SFLSampleCollector from the original C: a
// quad-aligned byte array, a write offset, the accumulated packet length,
// the packet sequence number, and the number of samples buffered so far.
type sampleCollector struct {
	data        [bufferCapacity]byte
	writeOff    int
	pktLen      uint32
	packetSeqNo uint32
	numSamples  uint32
}

// putRaw copies b verbatim into the buffer. It is used for values that are
// already in their correct on-wire byte order — chiefly the raw octets of
// an IPv4/IPv6 address — matching put32()/put128() in the original encoder,
// which never byte-swap: the caller hands them bytes that are already
// network-order.
func (c *sampleCollector) putRaw(b []byte) {
	n := copy(c.data[c.writeOff:], b)
	c.writeOff += n
}

// put128 writes a 16-byte value, zero-padding short input up to 16 bytes.
func (c *sampleCollector) put128(b []byte) {
	var buf [16]byte
	copy(buf[:], b)
	c.putRaw(buf[:])
}

// putNet32 writes v big-endian.
func (c *sampleCollector) putNet32(v uint32) {
	binary.BigEndian.PutUint32(c.data[c.writeOff:c.writeOff+4], v)
	c.writeOff += 4
}

// putNet64 writes v big-endian.
func (c *sampleCollector) putNet64(v uint64) {
	binary.BigEndian.PutUint64(c.data[c.writeOff:c.writeOff+8], v)
	c.writeOff += 8
}

// putString writes an XDR string: a big-endian length prefix followed by
// the raw bytes, zero-padded to a 4-byte boundary.
func (c *sampleCollector) putString(s string) {
	c.putNet32(uint32(len(s)))
	c.putRaw([]byte(s))
	if pad := (4 - len(s)%4) % 4; pad != 0 {
		c.writeOff += pad
	}
}

// stringEncodingLength returns the XDR-encoded byte length of s: a 4-byte
// length prefix plus the string rounded up to a 4-byte boundary.
func stringEncodingLength(s string) uint32 {
	return 4 + uint32((len(s)+3)/4*4)
}

// putAddress writes an sFlow Address: a big-endian type tag followed by 4
// or 16 raw bytes. An Undefined address is encoded as IPv4 0.0.0.0, per
// spec §3.
func (c *sampleCollector) putAddress(addr Address) {
	if addr.Type == AddressUndefined {
		c.putNet32(uint32(AddressIPv4))
		c.putRaw([]byte{0, 0, 0, 0})
		return
	}
	c.putNet32(uint32(addr.Type))
	if addr.Type == AddressIPv4 {
		c.putRaw(addr.Bytes)
	} else {
		c.put128(addr.Bytes)
	}
}

// addressHeaderQuads returns how many 32-bit quads the datagram header
// occupies for an agent with the given address type: 7 for IPv4 (28
// bytes), 10 for IPv6 (40 bytes). This is also how far into the buffer the
// first sample is written, leaving room for the header to be back-patched
// on flush.
func addressHeaderQuads(t AddressType) int {
	if t == AddressIPv6 {
		return 10
	}
	return 7
}
