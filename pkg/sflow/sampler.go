package sflow

// Sampler drives one data source's stochastic flow sampling: it tracks the
// configured rate, the current skip count phase-scattered at startup, the
// running sample pool and drop counters, and the monotonic flow sequence
// number, then hands completed FlowSamples to its bound Receiver.
//
// The actual per-event "keep or drop this one" decision is the host's
// job, using a SamplingDecider on worker-local state (spec §4.6) — the
// Sampler here only owns the bookkeeping fields that travel on the wire
// and the registration/binding lifecycle, mirroring SFLSampler in
// sflow_api.c.
type Sampler struct {
	dsi        DataSourceInstance
	agent      *Agent
	receiver   *Receiver
	rate       uint32
	skip       uint32
	samplePool uint32
	dropEvents uint32
	flowSeqNo  uint32
}

func newSampler(agent *Agent, dsi DataSourceInstance) *Sampler {
	return &Sampler{agent: agent, dsi: dsi, rate: 1}
}

// DSI returns the data-source instance this sampler was registered under.
func (s *Sampler) DSI() DataSourceInstance { return s.dsi }

// BindReceiver attaches the receiver that completed flow samples are sent
// to. A sampler with no bound receiver silently drops samples, matching
// the original's "sampler with no receiver is a no-op" behavior.
func (s *Sampler) BindReceiver(r *Receiver) { s.receiver = r }

// Receiver returns the bound receiver, or nil if none is bound.
func (s *Sampler) Receiver() *Receiver { return s.receiver }

// SetRate sets the sampling rate (1-in-N) and phase-scatters the initial
// skip count using the agent's shared LCG, so that a fleet of samplers
// that all start at rate N do not all take their first sample on the same
// packet (spec §4.2/§9). A rate of 0 disables the sampler entirely (spec
// §6); it is stored verbatim rather than coerced to 1, since rate 1 and
// rate 0 are distinct, observable states via Rate(). The original C's
// sfl_sampler_set_sFlowFsPacketSamplingRate calls sfl_random(rate)
// unconditionally, so every SetRate call draws from the shared LCG
// regardless of rate, keeping the draw sequence in sync with the other
// samplers/pollers sharing the same agent; Uniform's lim argument is
// clamped to at least 1 since Uniform(0) is a caller bug.
func (s *Sampler) SetRate(rate uint32) {
	s.rate = rate
	lim := rate
	if lim == 0 {
		lim = 1
	}
	draw := s.agent.lcg.Uniform(lim)
	if rate <= 1 {
		s.skip = 0
		return
	}
	s.skip = draw
}

// Rate returns the currently configured sampling rate.
func (s *Sampler) Rate() uint32 { return s.rate }

// NextSkip draws the next skip count after a sample fires, using
// uniform(2N-1) over the shared LCG, matching sfl_sampler_next_skip in the
// original C. Exported so hosts running their own skip-counter loop
// (rather than per-event xorshift32 decisions) can reproduce the same
// phase-scatter behavior. The draw happens unconditionally, even when the
// sampler is disabled (rate 0) or at rate 1, to keep the shared LCG's draw
// sequence synchronized with the original; 2*s.rate-1 can never be 0 for
// any uint32 rate, so the draw is always safe to make.
func (s *Sampler) NextSkip() uint32 {
	draw := s.agent.lcg.Uniform(2*s.rate - 1)
	if s.rate <= 1 {
		return 0
	}
	return draw
}

// SamplePool returns the running count of events this sampler has
// considered for sampling (used to fill FlowSample.SamplePool when the
// caller leaves it zero).
func (s *Sampler) SamplePool() uint32 { return s.samplePool }

// AddToSamplePool advances the running sample-pool counter, called by the
// host once per event considered, regardless of outcome.
func (s *Sampler) AddToSamplePool(n uint32) { s.samplePool += n }

// AddDrops records events dropped due to resource exhaustion rather than
// the sampling decision itself (spec §4.2's drops counter).
func (s *Sampler) AddDrops(n uint32) {
	s.dropEvents += n
	flowDropsTotal.Add(float64(n))
}

// Drops returns the running drop counter.
func (s *Sampler) Drops() uint32 { return s.dropEvents }

// ResetFlowSeqNo resets the flow sequence number to zero, used when the
// host detects a discontinuity (e.g. a restart that did not also reset
// the receiver) so the next sample signals sequence 1 to the collector,
// per spec §8's discontinuity-signalling property.
func (s *Sampler) ResetFlowSeqNo() { s.flowSeqNo = 0 }

// FlowSeqNo returns the most recently assigned flow sequence number.
func (s *Sampler) FlowSeqNo() uint32 { return s.flowSeqNo }

// WriteFlowSample assigns the next flow sequence number and source ID,
// fills SamplingRate/SamplePool/Drops from the sampler's own bookkeeping
// when the caller left them at zero, and forwards the sample to the bound
// receiver. A sampler with no bound receiver drops the sample silently.
func (s *Sampler) WriteFlowSample(fs *FlowSample) error {
	if s.receiver == nil {
		return nil
	}
	s.flowSeqNo++
	fs.SequenceNumber = s.flowSeqNo
	fs.SourceID = s.dsi.SourceID()
	if fs.SamplingRate == 0 {
		fs.SamplingRate = s.rate
	}
	if fs.SamplePool == 0 {
		fs.SamplePool = s.samplePool
	}
	if fs.Drops == 0 {
		fs.Drops = s.dropEvents
	}
	return s.receiver.WriteFlowSample(fs)
}
