package sflow

import (
	"testing"
	"time"
)

type capturingCaps struct {
	sent   [][]byte
	errors []string
}

func (c *capturingCaps) Send(datagram []byte) {
	cp := make([]byte, len(datagram))
	copy(cp, datagram)
	c.sent = append(c.sent, cp)
}

func (c *capturingCaps) Error(module, message string) {
	c.errors = append(c.errors, module+": "+message)
}

func newTestAgent(addr Address) (*Agent, *capturingCaps) {
	caps := &capturingCaps{}
	agent := &Agent{}
	boot := time.Unix(1000, 0)
	agent.Init(addr, 0, boot, boot, caps)
	return agent, caps
}

// Scenario A: one EX_SOCKET4 flow sample on a fresh v4 agent produces a
// single 96-byte datagram with num_records=1 and sequence_number=1.
func TestScenarioAFlowSampleRoundTripSize(t *testing.T) {
	agent, caps := newTestAgent(NewIPv4Address(10, 1, 2, 3))
	recv := agent.AddReceiver()
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 65537})
	samp.BindReceiver(recv)
	samp.SetRate(400)

	fs := &FlowSample{
		Elements: []FlowElement{
			ExtendedSocket4{
				Protocol:   6,
				LocalIP:    [4]byte{10, 1, 2, 3},
				RemoteIP:   [4]byte{10, 1, 2, 4},
				LocalPort:  11211,
				RemotePort: 54321,
			},
		},
	}
	if err := samp.WriteFlowSample(fs); err != nil {
		t.Fatalf("WriteFlowSample: %v", err)
	}
	agent.Tick(time.Unix(1001, 0))

	if len(caps.sent) != 1 {
		t.Fatalf("got %d datagrams, want 1", len(caps.sent))
	}
	dg := caps.sent[0]
	if len(dg) != 96 {
		t.Fatalf("datagram length = %d, want 96", len(dg))
	}
	if numRecords := beU32(dg[24:28]); numRecords != 1 {
		t.Fatalf("num_records = %d, want 1", numRecords)
	}
	// sequence_number lives right after the sample tag+length+header
	// fields start at byte 28 (sample tag), 32 (length), 36 (seq no).
	if seq := beU32(dg[36:40]); seq != 1 {
		t.Fatalf("flow sequence_number = %d, want 1", seq)
	}
}

// Scenario C: poller interval 5, countdown phase-scattered to 3 by
// seeding the shared LCG; 20 ticks should invoke getCountersFn at ticks
// 3, 8, 13, 18 with counter sequence numbers 1..4.
func TestScenarioCPollCadence(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	recv := agent.AddReceiver()

	var invokedAtTick []int
	tick := 0
	poller := agent.AddPoller(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1}, nil,
		func(magic interface{}, p *Poller) *CountersSample {
			invokedAtTick = append(invokedAtTick, tick)
			return &CountersSample{Elements: []CounterElement{MemcacheCounters{}}}
		})
	poller.BindReceiver(recv)

	// Force the phase-scattered countdown to 3 regardless of LCG state by
	// seeding the agent's shared LCG so Uniform(5) yields 3, then calling
	// SetInterval to consume that draw.
	seedLCGForUniform(t, agent.lcg, 5, 3)
	poller.SetInterval(5)

	for tick = 1; tick <= 20; tick++ {
		if err := poller.Tick(); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	want := []int{3, 8, 13, 18}
	if len(invokedAtTick) != len(want) {
		t.Fatalf("getCountersFn invoked %d times at %v, want %v", len(invokedAtTick), invokedAtTick, want)
	}
	for i, w := range want {
		if invokedAtTick[i] != w {
			t.Errorf("invocation %d at tick %d, want %d", i, invokedAtTick[i], w)
		}
	}
	if poller.CountersSeqNo() != 4 {
		t.Fatalf("final counters sequence number = %d, want 4", poller.CountersSeqNo())
	}
}

// seedLCGForUniform brute-forces a state for g such that g.Uniform(lim)
// returns want on the very next call, so tests can pin phase-scatter
// outcomes without depending on NewLCG's fixed starting state.
func seedLCGForUniform(t *testing.T, g *LCG, lim, want uint32) {
	t.Helper()
	for seed := uint32(0); seed < 100000; seed++ {
		probe := &LCG{state: seed}
		if probe.Uniform(lim) == want {
			g.state = seed
			return
		}
	}
	t.Fatalf("could not find an LCG seed producing Uniform(%d) == %d", lim, want)
}

// Scenario D: after ResetFlowSeqNo, the next sample carries sequence 1.
func TestScenarioDResetDiscontinuity(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(192, 168, 0, 1))
	recv := agent.AddReceiver()
	recv.SetMaxDatagramSize(MaxDatagramSize)
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})
	samp.BindReceiver(recv)

	for i := 0; i < 5; i++ {
		if err := samp.WriteFlowSample(&FlowSample{}); err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
	}
	if samp.FlowSeqNo() != 5 {
		t.Fatalf("flow seq after 5 writes = %d, want 5", samp.FlowSeqNo())
	}

	samp.ResetFlowSeqNo()
	if err := samp.WriteFlowSample(&FlowSample{}); err != nil {
		t.Fatalf("post-reset sample: %v", err)
	}
	if samp.FlowSeqNo() != 1 {
		t.Fatalf("flow seq after reset = %d, want 1", samp.FlowSeqNo())
	}
}

// Scenario E: a v6 agent address produces a 40-byte (10-quad) header.
func TestScenarioEIPv6AgentHeader(t *testing.T) {
	var addrBytes [16]byte
	addrBytes[0], addrBytes[1] = 0x20, 0x01
	addrBytes[2], addrBytes[3] = 0x0d, 0xb8
	addrBytes[15] = 0x01
	agent, caps := newTestAgent(NewIPv6Address(addrBytes))
	recv := agent.AddReceiver()
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})
	samp.BindReceiver(recv)

	if err := samp.WriteFlowSample(&FlowSample{}); err != nil {
		t.Fatalf("WriteFlowSample: %v", err)
	}
	agent.Tick(time.Unix(1001, 0))

	if len(caps.sent) != 1 {
		t.Fatalf("got %d datagrams, want 1", len(caps.sent))
	}
	dg := caps.sent[0]
	if got := beU32(dg[4:8]); got != uint32(AddressIPv6) {
		t.Fatalf("address type = %d, want %d", got, AddressIPv6)
	}
	// version(4) + type(4) + 16 address bytes + sub_agent(4) + seq(4) +
	// uptime(4) + num_records(4) = 40 bytes of header.
	if beU32(dg[36:40]) != 1 { // num_records
		t.Fatalf("num_records at offset 36 = %d, want 1", beU32(dg[36:40]))
	}
}

// Scenario F: an element carrying an unrecognized tag is rejected and the
// buffer's pending length is left exactly as it was before the call.
func TestScenarioFUnknownTagRejected(t *testing.T) {
	agent, caps := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	recv := agent.AddReceiver()
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})
	samp.BindReceiver(recv)

	preLen := recv.collector.pktLen

	err := samp.WriteFlowSample(&FlowSample{Elements: []FlowElement{unknownTagElement{}}})
	if err == nil {
		t.Fatalf("expected an error for an unknown element tag")
	}
	ee, ok := err.(*EncodeError)
	if !ok || ee.Kind != ErrUnknownTag {
		t.Fatalf("got error %v, want an ErrUnknownTag EncodeError", err)
	}
	if recv.collector.pktLen != preLen {
		t.Fatalf("pktLen changed from %d to %d on a rejected sample", preLen, recv.collector.pktLen)
	}
	if len(caps.errors) == 0 {
		t.Fatalf("expected the rejection to be reported via Capabilities.Error")
	}
}

type unknownTagElement struct{}

func (unknownTagElement) Tag() uint32             { return 9999 }
func (unknownTagElement) size() uint32            { return 4 }
func (unknownTagElement) encode(c *sampleCollector) { c.putNet32(0) }

// Idempotent registration: adding the same DSI twice returns the same
// Sampler/Poller and keeps the registries sorted.
func TestIdempotentRegistration(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))

	dsi := DataSourceInstance{Class: DSClassLogicalEntity, Index: 42}
	s1 := agent.AddSampler(dsi)
	s2 := agent.AddSampler(dsi)
	if s1 != s2 {
		t.Fatalf("AddSampler returned distinct objects for the same DSI")
	}
	if len(agent.Samplers()) != 1 {
		t.Fatalf("registry has %d samplers, want 1", len(agent.Samplers()))
	}

	p1 := agent.AddPoller(dsi, nil, nil)
	p2 := agent.AddPoller(dsi, nil, nil)
	if p1 != p2 {
		t.Fatalf("AddPoller returned distinct objects for the same DSI")
	}

	// Insert out of order, then verify sorted order is maintained.
	agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 5})
	agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 100})
	samplers := agent.Samplers()
	for i := 1; i < len(samplers); i++ {
		if samplers[i-1].DSI().Compare(samplers[i].DSI()) >= 0 {
			t.Fatalf("samplers not sorted: %+v before %+v", samplers[i-1].DSI(), samplers[i].DSI())
		}
	}
}

// Phase scatter: N fresh samplers seeded with a deterministic LCG draw
// their initial skip from [1..R].
func TestPhaseScatterRange(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	agent.lcg.Seed(77)

	const rate = 50
	for i := uint32(0); i < 20; i++ {
		s := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: i + 1})
		s.SetRate(rate)
		if s.skip < 1 || s.skip > rate {
			t.Fatalf("sampler %d skip = %d, want [1,%d]", i, s.skip, rate)
		}
	}
}

// Boundary: a sample that would land the buffer at exactly the configured
// maxDatagramSize triggers a flush of the already-buffered sample first,
// rather than being packed alongside it into an oversize datagram.
func TestWriteFlowSampleFlushesOnExactBoundary(t *testing.T) {
	agent, caps := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	recv := agent.AddReceiver()
	recv.SetMaxDatagramSize(204)
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})
	samp.BindReceiver(recv)

	// Each sample packs to 80 bytes (32-byte fixed fs fields + 8-byte
	// element header + 40-byte MemcacheOperation body for a 9-char key),
	// chosen so the second sample's write would land the buffer at exactly
	// headerSize(28) + pktLen(88) + 8 + 80 == 204 == maxDatagramSize.
	newSample := func() *FlowSample {
		return &FlowSample{Elements: []FlowElement{
			MemcacheOperation{Command: MemcacheCmdGet, Key: "123456789"},
		}}
	}

	if err := samp.WriteFlowSample(newSample()); err != nil {
		t.Fatalf("first sample: %v", err)
	}
	if len(caps.sent) != 0 {
		t.Fatalf("got %d datagrams after the first sample, want 0", len(caps.sent))
	}

	if err := samp.WriteFlowSample(newSample()); err != nil {
		t.Fatalf("second sample: %v", err)
	}
	if len(caps.sent) != 1 {
		t.Fatalf("got %d datagrams after the boundary sample, want 1 (flushed before the write)", len(caps.sent))
	}
	if numRecords := beU32(caps.sent[0][24:28]); numRecords != 1 {
		t.Fatalf("flushed datagram num_records = %d, want 1", numRecords)
	}

	agent.Tick(time.Unix(1001, 0))
	if len(caps.sent) != 2 {
		t.Fatalf("got %d datagrams after Tick, want 2", len(caps.sent))
	}
}

// Datagram size bound: after any write, buffered pktLen (plus header and
// the reserved tag/length framing) never exceeds the receiver's
// configured maximum.
func TestDatagramSizeBound(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	recv := agent.AddReceiver()
	recv.SetMaxDatagramSize(300)
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})
	samp.BindReceiver(recv)

	for i := 0; i < 50; i++ {
		fs := &FlowSample{Elements: []FlowElement{
			ExtendedSocket4{LocalIP: [4]byte{1, 2, 3, 4}, RemoteIP: [4]byte{5, 6, 7, 8}},
		}}
		if err := samp.WriteFlowSample(fs); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if recv.headerSize()+recv.collector.pktLen > recv.maxDatagramSize {
			t.Fatalf("write %d: buffered size exceeded max datagram size", i)
		}
	}
}
