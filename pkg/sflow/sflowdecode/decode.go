// Package sflowdecode decodes sFlow v5 datagrams produced by pkg/sflow's
// Receiver back into structured samples. It exists for round-trip testing
// and for the collector-side demo command; the core agent library never
// needs to decode its own output.
package sflowdecode

import (
	"encoding/binary"
	"fmt"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

// FlowElement is one decoded flow-sample element. Exactly one of the
// pointer fields is non-nil, selected by Tag.
type FlowElement struct {
	Tag      uint32
	Socket4  *sflow.ExtendedSocket4
	Socket6  *sflow.ExtendedSocket6
	Memcache *sflow.MemcacheOperation
}

// CounterElement is one decoded counters-sample element.
type CounterElement struct {
	Tag      uint32
	Memcache *sflow.MemcacheCounters
}

// FlowSample is a decoded flow sample, field-for-field what a Receiver
// encoded via pkg/sflow.FlowSample.
type FlowSample struct {
	SequenceNumber uint32
	SourceID       uint32
	SamplingRate   uint32
	SamplePool     uint32
	Drops          uint32
	Input          uint32
	Output         uint32
	Elements       []FlowElement
}

// CountersSample is a decoded counters sample.
type CountersSample struct {
	SequenceNumber uint32
	SourceID       uint32
	Elements       []CounterElement
}

// Datagram is one fully decoded sFlow v5 datagram.
type Datagram struct {
	Version         uint32
	AgentAddress    sflow.Address
	SubAgentID      uint32
	SequenceNumber  uint32
	Uptime          uint32
	FlowSamples     []FlowSample
	CountersSamples []CountersSample
}

// Decoder decodes sFlow v5 datagrams, tracking simple running statistics
// in the style of a long-lived collector-side parser.
type Decoder struct {
	PacketsParsed uint64
	SamplesParsed uint64
	ParseErrors   uint64
}

// NewDecoder returns a ready-to-use Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses one complete sFlow v5 datagram.
func (d *Decoder) Decode(data []byte) (*Datagram, error) {
	dg, err := d.decode(data)
	if err != nil {
		d.ParseErrors++
		return nil, err
	}
	d.PacketsParsed++
	d.SamplesParsed += uint64(len(dg.FlowSamples) + len(dg.CountersSamples))
	return dg, nil
}

func (d *Decoder) decode(data []byte) (*Datagram, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("sflowdecode: datagram too short: %d bytes", len(data))
	}

	off := 0
	dg := &Datagram{}

	dg.Version = binary.BigEndian.Uint32(data[off:])
	off += 4
	if dg.Version != 5 {
		return nil, fmt.Errorf("sflowdecode: unsupported version %d", dg.Version)
	}

	addrType := binary.BigEndian.Uint32(data[off:])
	off += 4
	switch sflow.AddressType(addrType) {
	case sflow.AddressIPv4:
		if len(data) < off+4 {
			return nil, fmt.Errorf("sflowdecode: truncated IPv4 agent address")
		}
		b := make([]byte, 4)
		copy(b, data[off:off+4])
		dg.AgentAddress = sflow.Address{Type: sflow.AddressIPv4, Bytes: b}
		off += 4
	case sflow.AddressIPv6:
		if len(data) < off+16 {
			return nil, fmt.Errorf("sflowdecode: truncated IPv6 agent address")
		}
		b := make([]byte, 16)
		copy(b, data[off:off+16])
		dg.AgentAddress = sflow.Address{Type: sflow.AddressIPv6, Bytes: b}
		off += 16
	default:
		return nil, fmt.Errorf("sflowdecode: invalid agent address type %d", addrType)
	}

	if len(data) < off+16 {
		return nil, fmt.Errorf("sflowdecode: truncated datagram header")
	}
	dg.SubAgentID = binary.BigEndian.Uint32(data[off:])
	off += 4
	dg.SequenceNumber = binary.BigEndian.Uint32(data[off:])
	off += 4
	dg.Uptime = binary.BigEndian.Uint32(data[off:])
	off += 4
	numSamples := binary.BigEndian.Uint32(data[off:])
	off += 4

	for i := uint32(0); i < numSamples; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("sflowdecode: truncated sample header at index %d", i)
		}
		tag := binary.BigEndian.Uint32(data[off:])
		off += 4
		length := binary.BigEndian.Uint32(data[off:])
		off += 4
		if off+int(length) > len(data) {
			return nil, fmt.Errorf("sflowdecode: sample length %d overruns datagram", length)
		}
		body := data[off : off+int(length)]
		off += int(length)

		switch tag {
		case sflow.TagFlowSample:
			fs, err := decodeFlowSample(body)
			if err != nil {
				return nil, err
			}
			dg.FlowSamples = append(dg.FlowSamples, *fs)
		case sflow.TagCountersSample:
			cs, err := decodeCountersSample(body)
			if err != nil {
				return nil, err
			}
			dg.CountersSamples = append(dg.CountersSamples, *cs)
		default:
			return nil, fmt.Errorf("sflowdecode: unknown sample tag %d", tag)
		}
	}

	return dg, nil
}

func decodeFlowSample(data []byte) (*FlowSample, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("sflowdecode: flow sample too short: %d bytes", len(data))
	}
	off := 0
	fs := &FlowSample{}
	fs.SequenceNumber = binary.BigEndian.Uint32(data[off:])
	off += 4
	fs.SourceID = binary.BigEndian.Uint32(data[off:])
	off += 4
	fs.SamplingRate = binary.BigEndian.Uint32(data[off:])
	off += 4
	fs.SamplePool = binary.BigEndian.Uint32(data[off:])
	off += 4
	fs.Drops = binary.BigEndian.Uint32(data[off:])
	off += 4
	fs.Input = binary.BigEndian.Uint32(data[off:])
	off += 4
	fs.Output = binary.BigEndian.Uint32(data[off:])
	off += 4
	numElements := binary.BigEndian.Uint32(data[off:])
	off += 4

	for i := uint32(0); i < numElements; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("sflowdecode: truncated flow element header")
		}
		tag := binary.BigEndian.Uint32(data[off:])
		off += 4
		length := binary.BigEndian.Uint32(data[off:])
		off += 4
		if off+int(length) > len(data) {
			return nil, fmt.Errorf("sflowdecode: flow element length %d overruns sample", length)
		}
		body := data[off : off+int(length)]
		off += int(length)

		el := FlowElement{Tag: tag}
		switch tag {
		case sflow.TagExSocket4:
			s, err := decodeSocket4(body)
			if err != nil {
				return nil, err
			}
			el.Socket4 = s
		case sflow.TagExSocket6:
			s, err := decodeSocket6(body)
			if err != nil {
				return nil, err
			}
			el.Socket6 = s
		case sflow.TagMemcache:
			m, err := decodeMemcacheOperation(body)
			if err != nil {
				return nil, err
			}
			el.Memcache = m
		default:
			return nil, fmt.Errorf("sflowdecode: unknown flow element tag %d", tag)
		}
		fs.Elements = append(fs.Elements, el)
	}
	return fs, nil
}

func decodeCountersSample(data []byte) (*CountersSample, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("sflowdecode: counters sample too short: %d bytes", len(data))
	}
	off := 0
	cs := &CountersSample{}
	cs.SequenceNumber = binary.BigEndian.Uint32(data[off:])
	off += 4
	cs.SourceID = binary.BigEndian.Uint32(data[off:])
	off += 4
	numElements := binary.BigEndian.Uint32(data[off:])
	off += 4

	for i := uint32(0); i < numElements; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("sflowdecode: truncated counter element header")
		}
		tag := binary.BigEndian.Uint32(data[off:])
		off += 4
		length := binary.BigEndian.Uint32(data[off:])
		off += 4
		if off+int(length) > len(data) {
			return nil, fmt.Errorf("sflowdecode: counter element length %d overruns sample", length)
		}
		body := data[off : off+int(length)]
		off += int(length)

		el := CounterElement{Tag: tag}
		switch tag {
		case sflow.TagMemcache:
			m, err := decodeMemcacheCounters(body)
			if err != nil {
				return nil, err
			}
			el.Memcache = m
		default:
			return nil, fmt.Errorf("sflowdecode: unknown counter element tag %d", tag)
		}
		cs.Elements = append(cs.Elements, el)
	}
	return cs, nil
}

func decodeSocket4(data []byte) (*sflow.ExtendedSocket4, error) {
	if len(data) != 20 {
		return nil, fmt.Errorf("sflowdecode: extended_socket4 wrong size %d", len(data))
	}
	s := &sflow.ExtendedSocket4{}
	s.Protocol = binary.BigEndian.Uint32(data[0:])
	copy(s.LocalIP[:], data[4:8])
	copy(s.RemoteIP[:], data[8:12])
	s.LocalPort = binary.BigEndian.Uint32(data[12:])
	s.RemotePort = binary.BigEndian.Uint32(data[16:])
	return s, nil
}

func decodeSocket6(data []byte) (*sflow.ExtendedSocket6, error) {
	if len(data) != 44 {
		return nil, fmt.Errorf("sflowdecode: extended_socket6 wrong size %d", len(data))
	}
	s := &sflow.ExtendedSocket6{}
	s.Protocol = binary.BigEndian.Uint32(data[0:])
	copy(s.LocalIP[:], data[4:20])
	copy(s.RemoteIP[:], data[20:36])
	s.LocalPort = binary.BigEndian.Uint32(data[36:])
	s.RemotePort = binary.BigEndian.Uint32(data[40:])
	return s, nil
}

func decodeXDRString(data []byte, off int) (string, int, error) {
	if off+4 > len(data) {
		return "", off, fmt.Errorf("sflowdecode: truncated string length")
	}
	n := int(binary.BigEndian.Uint32(data[off:]))
	off += 4
	padded := (n + 3) / 4 * 4
	if off+padded > len(data) {
		return "", off, fmt.Errorf("sflowdecode: truncated string body")
	}
	s := string(data[off : off+n])
	off += padded
	return s, off, nil
}

func decodeMemcacheOperation(data []byte) (*sflow.MemcacheOperation, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("sflowdecode: memcache operation too short: %d bytes", len(data))
	}
	off := 0
	m := &sflow.MemcacheOperation{}
	m.Protocol = sflow.MemcacheProtocol(binary.BigEndian.Uint32(data[off:]))
	off += 4
	m.Command = sflow.MemcacheCommand(binary.BigEndian.Uint32(data[off:]))
	off += 4
	key, newOff, err := decodeXDRString(data, off)
	if err != nil {
		return nil, err
	}
	m.Key = key
	off = newOff
	if off+16 > len(data) {
		return nil, fmt.Errorf("sflowdecode: truncated memcache operation tail")
	}
	m.NKeys = binary.BigEndian.Uint32(data[off:])
	off += 4
	m.ValueBytes = binary.BigEndian.Uint32(data[off:])
	off += 4
	m.DurationUs = binary.BigEndian.Uint32(data[off:])
	off += 4
	m.Status = sflow.MemcacheStatus(binary.BigEndian.Uint32(data[off:]))
	return m, nil
}

func decodeMemcacheCounters(data []byte) (*sflow.MemcacheCounters, error) {
	if len(data) != 144 {
		return nil, fmt.Errorf("sflowdecode: memcache counters wrong size %d", len(data))
	}
	u32 := func(off int) uint32 { return binary.BigEndian.Uint32(data[off:]) }
	u64 := func(off int) uint64 { return binary.BigEndian.Uint64(data[off:]) }
	return &sflow.MemcacheCounters{
		Uptime:               u32(0),
		RusageUser:           u32(4),
		RusageSystem:         u32(8),
		CurrConnections:      u32(12),
		TotalConnections:     u32(16),
		ConnectionStructures: u32(20),
		CmdGet:               u32(24),
		CmdSet:               u32(28),
		CmdFlush:             u32(32),
		GetHits:              u32(36),
		GetMisses:            u32(40),
		DeleteMisses:         u32(44),
		DeleteHits:           u32(48),
		IncrMisses:           u32(52),
		IncrHits:             u32(56),
		DecrMisses:           u32(60),
		DecrHits:             u32(64),
		CasMisses:            u32(68),
		CasHits:              u32(72),
		CasBadval:            u32(76),
		AuthCmds:             u32(80),
		AuthErrors:           u32(84),
		BytesRead:            u64(88),
		BytesWritten:         u64(96),
		LimitMaxbytes:        u32(104),
		AcceptingConns:       u32(108),
		ListenDisabledNum:    u32(112),
		Threads:              u32(116),
		ConnYields:           u32(120),
		Bytes:                u64(124),
		CurrItems:            u32(132),
		TotalItems:           u32(136),
		Evictions:            u32(140),
	}, nil
}
