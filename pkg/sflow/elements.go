package sflow

// Element tags, preserved verbatim from the sFlow v5 wire format (spec §6).
const (
	TagFlowSample     = 1
	TagCountersSample = 2

	TagExSocket4 = 2100
	TagExSocket6 = 2101
	TagMemcache  = 2200 // used by both flow and counter memcache elements
)

// MemcacheProtocol is the wire protocol a sampled memcache operation used.
type MemcacheProtocol uint32

// Memcache protocol constants, from sflow_api.h SFLMemcache_prot.
const (
	MemcacheProtoOther  MemcacheProtocol = 0
	MemcacheProtoASCII  MemcacheProtocol = 1
	MemcacheProtoBinary MemcacheProtocol = 2
)

// MemcacheCommand is the memcache verb a sampled operation invoked.
type MemcacheCommand uint32

// Memcache command constants, from sflow_mc.h SFLMemcache_cmd.
const (
	MemcacheCmdOther   MemcacheCommand = 0
	MemcacheCmdSet     MemcacheCommand = 1
	MemcacheCmdAdd     MemcacheCommand = 2
	MemcacheCmdReplace MemcacheCommand = 3
	MemcacheCmdAppend  MemcacheCommand = 4
	MemcacheCmdPrepend MemcacheCommand = 5
	MemcacheCmdCAS     MemcacheCommand = 6
	MemcacheCmdGet     MemcacheCommand = 7
	MemcacheCmdGets    MemcacheCommand = 8
	MemcacheCmdIncr    MemcacheCommand = 9
	MemcacheCmdDecr    MemcacheCommand = 10
	MemcacheCmdDelete  MemcacheCommand = 11
	MemcacheCmdStats   MemcacheCommand = 12
	MemcacheCmdFlush   MemcacheCommand = 13
	MemcacheCmdVersion MemcacheCommand = 14
	MemcacheCmdQuit    MemcacheCommand = 15
)

// MemcacheStatus is the outcome of a sampled memcache operation.
type MemcacheStatus uint32

// Memcache operation status constants, from sflow_api.h
// SFLMemcache_operation_status.
const (
	MemcacheStatusUnknown      MemcacheStatus = 0
	MemcacheStatusOK           MemcacheStatus = 1
	MemcacheStatusError        MemcacheStatus = 2
	MemcacheStatusClientError  MemcacheStatus = 3
	MemcacheStatusServerError  MemcacheStatus = 4
	MemcacheStatusStored       MemcacheStatus = 5
	MemcacheStatusNotStored    MemcacheStatus = 6
	MemcacheStatusExists       MemcacheStatus = 7
	MemcacheStatusNotFound     MemcacheStatus = 8
	MemcacheStatusDeleted      MemcacheStatus = 9
)

// isKnownFlowTag reports whether tag is one this encoder knows how to
// validate ahead of encoding. A FlowSample carrying any other tag is
// rejected outright by Receiver.WriteFlowSample with ErrUnknownTag before
// a single byte is written, per spec §8 scenario F.
func isKnownFlowTag(tag uint32) bool {
	switch tag {
	case TagExSocket4, TagExSocket6, TagMemcache:
		return true
	default:
		return false
	}
}

// isKnownCounterTag is isKnownFlowTag's counters-sample counterpart.
func isKnownCounterTag(tag uint32) bool {
	return tag == TagMemcache
}

// FlowElement is a tagged flow-sample element. The two in-scope variants
// are ExtendedSocket4/6 and MemcacheOperation (spec §3). Implementations
// must report their exact XDR payload size (excluding the 8-byte tag+length
// header) via size(), computed before any byte is written, per spec §4.1.
type FlowElement interface {
	Tag() uint32
	size() uint32
	encode(c *sampleCollector)
}

// ExtendedSocket4 describes an IPv4 socket endpoint pair associated with a
// sampled event. Fixed wire size 20 bytes.
type ExtendedSocket4 struct {
	Protocol   uint32 // IP protocol, e.g. TCP=6, UDP=17
	LocalIP    [4]byte
	RemoteIP   [4]byte
	LocalPort  uint32
	RemotePort uint32
}

// Tag implements FlowElement.
func (ExtendedSocket4) Tag() uint32 { return TagExSocket4 }

func (ExtendedSocket4) size() uint32 { return 20 }

func (s ExtendedSocket4) encode(c *sampleCollector) {
	c.putNet32(s.Protocol)
	c.putRaw(s.LocalIP[:])
	c.putRaw(s.RemoteIP[:])
	c.putNet32(s.LocalPort)
	c.putNet32(s.RemotePort)
}

// ExtendedSocket6 describes an IPv6 socket endpoint pair. Fixed wire size
// 44 bytes.
type ExtendedSocket6 struct {
	Protocol   uint32
	LocalIP    [16]byte
	RemoteIP   [16]byte
	LocalPort  uint32
	RemotePort uint32
}

// Tag implements FlowElement.
func (ExtendedSocket6) Tag() uint32 { return TagExSocket6 }

func (ExtendedSocket6) size() uint32 { return 44 }

func (s ExtendedSocket6) encode(c *sampleCollector) {
	c.putNet32(s.Protocol)
	c.putRaw(s.LocalIP[:])
	c.putRaw(s.RemoteIP[:])
	c.putNet32(s.LocalPort)
	c.putNet32(s.RemotePort)
}

// MemcacheOperation describes one sampled memcache request: protocol,
// command, the key touched, how many keys the command addressed, the
// value size moved, the request's wall-clock duration, and its outcome.
// Variable wire size: 24 + the XDR-encoded length of Key.
type MemcacheOperation struct {
	Protocol   MemcacheProtocol
	Command    MemcacheCommand
	Key        string // up to 255 chars
	NKeys      uint32
	ValueBytes uint32
	DurationUs uint32
	Status     MemcacheStatus
}

// Tag implements FlowElement.
func (MemcacheOperation) Tag() uint32 { return TagMemcache }

func (m MemcacheOperation) size() uint32 {
	return 24 + stringEncodingLength(m.Key)
}

func (m MemcacheOperation) encode(c *sampleCollector) {
	c.putNet32(uint32(m.Protocol))
	c.putNet32(uint32(m.Command))
	c.putString(m.Key)
	c.putNet32(m.NKeys)
	c.putNet32(m.ValueBytes)
	c.putNet32(m.DurationUs)
	c.putNet32(uint32(m.Status))
}

// CounterElement is a tagged counters-sample element. The single in-scope
// variant is MemcacheCounters.
type CounterElement interface {
	Tag() uint32
	size() uint32
	encode(c *sampleCollector)
}

// MemcacheCounters is one full block of memcached server counters, mirrored
// field-for-field from SFLMemcache_counters in the original C header.
// Fixed wire size 144 bytes (XDRSIZ_SFLMEMCACHE_COUNTERS).
type MemcacheCounters struct {
	Uptime               uint32
	RusageUser           uint32
	RusageSystem         uint32
	CurrConnections      uint32
	TotalConnections     uint32
	ConnectionStructures uint32
	CmdGet               uint32
	CmdSet               uint32
	CmdFlush             uint32
	GetHits              uint32
	GetMisses            uint32
	DeleteMisses         uint32
	DeleteHits           uint32
	IncrMisses           uint32
	IncrHits             uint32
	DecrMisses           uint32
	DecrHits             uint32
	CasMisses            uint32
	CasHits              uint32
	CasBadval            uint32
	AuthCmds             uint32
	AuthErrors           uint32
	BytesRead            uint64
	BytesWritten         uint64
	LimitMaxbytes        uint32
	AcceptingConns       uint32
	ListenDisabledNum    uint32
	Threads              uint32
	ConnYields           uint32
	Bytes                uint64
	CurrItems            uint32
	TotalItems           uint32
	Evictions            uint32
}

// Tag implements CounterElement.
func (MemcacheCounters) Tag() uint32 { return TagMemcache }

func (MemcacheCounters) size() uint32 { return 144 }

func (m MemcacheCounters) encode(c *sampleCollector) {
	c.putNet32(m.Uptime)
	c.putNet32(m.RusageUser)
	c.putNet32(m.RusageSystem)
	c.putNet32(m.CurrConnections)
	c.putNet32(m.TotalConnections)
	c.putNet32(m.ConnectionStructures)
	c.putNet32(m.CmdGet)
	c.putNet32(m.CmdSet)
	c.putNet32(m.CmdFlush)
	c.putNet32(m.GetHits)
	c.putNet32(m.GetMisses)
	c.putNet32(m.DeleteMisses)
	c.putNet32(m.DeleteHits)
	c.putNet32(m.IncrMisses)
	c.putNet32(m.IncrHits)
	c.putNet32(m.DecrMisses)
	c.putNet32(m.DecrHits)
	c.putNet32(m.CasMisses)
	c.putNet32(m.CasHits)
	c.putNet32(m.CasBadval)
	c.putNet32(m.AuthCmds)
	c.putNet32(m.AuthErrors)
	c.putNet64(m.BytesRead)
	c.putNet64(m.BytesWritten)
	c.putNet32(m.LimitMaxbytes)
	c.putNet32(m.AcceptingConns)
	c.putNet32(m.ListenDisabledNum)
	c.putNet32(m.Threads)
	c.putNet32(m.ConnYields)
	c.putNet64(m.Bytes)
	c.putNet32(m.CurrItems)
	c.putNet32(m.TotalItems)
	c.putNet32(m.Evictions)
}
