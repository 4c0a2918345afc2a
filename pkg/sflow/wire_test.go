package sflow

import "testing"

func TestStringEncodingLengthPadding(t *testing.T) {
	cases := map[string]uint32{
		"":     4,
		"a":    8,
		"ab":   8,
		"abc":  8,
		"abcd": 12,
		"memcache-key-123": 4 + 16,
	}
	for s, want := range cases {
		if got := stringEncodingLength(s); got != want {
			t.Errorf("stringEncodingLength(%q) = %d, want %d", s, got, want)
		}
	}
}

func TestPutStringRoundTripsLength(t *testing.T) {
	var c sampleCollector
	c.putString("foo")
	if c.writeOff != int(stringEncodingLength("foo")) {
		t.Fatalf("writeOff = %d, want %d", c.writeOff, stringEncodingLength("foo"))
	}
	// length prefix
	if got := beU32(c.data[0:4]); got != 3 {
		t.Errorf("length prefix = %d, want 3", got)
	}
	if string(c.data[4:7]) != "foo" {
		t.Errorf("string body = %q, want foo", c.data[4:7])
	}
	// one padding byte beyond "foo" to reach the 4-byte boundary
	if c.data[7] != 0 {
		t.Errorf("padding byte not zero")
	}
}

func TestPutNet32BigEndian(t *testing.T) {
	var c sampleCollector
	c.putNet32(0x01020304)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	for i, b := range want {
		if c.data[i] != b {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, c.data[i], b)
		}
	}
}

func TestPutNet64BigEndian(t *testing.T) {
	var c sampleCollector
	c.putNet64(0x0102030405060708)
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	for i, b := range want {
		if c.data[i] != b {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, c.data[i], b)
		}
	}
}

func TestAddressHeaderQuads(t *testing.T) {
	if got := addressHeaderQuads(AddressIPv4); got != 7 {
		t.Errorf("IPv4 header quads = %d, want 7", got)
	}
	if got := addressHeaderQuads(AddressIPv6); got != 10 {
		t.Errorf("IPv6 header quads = %d, want 10", got)
	}
}

func TestPutAddressUndefinedEncodesZeroIPv4(t *testing.T) {
	var c sampleCollector
	c.putAddress(Address{})
	if beU32(c.data[0:4]) != uint32(AddressIPv4) {
		t.Fatalf("undefined address did not encode as IPv4 tag")
	}
	for i := 4; i < 8; i++ {
		if c.data[i] != 0 {
			t.Fatalf("undefined address body not zero at byte %d", i)
		}
	}
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
