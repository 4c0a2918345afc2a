package sflow

// GetCountersFunc is the host callback a Poller invokes when its interval
// elapses. magic is the opaque value passed to Agent.AddPoller, round-
// tripped back here so the host can recover which data source this poller
// belongs to without a map lookup. The callback builds and returns a
// CountersSample; if it returns a nil sample, the tick produces no output
// (e.g. the underlying resource has gone away).
type GetCountersFunc func(magic interface{}, poller *Poller) *CountersSample

// Poller drives one data source's periodic counters emission: it tracks
// the configured interval, the current countdown (phase-scattered at
// startup the same way a Sampler's skip count is), and the monotonic
// counters sequence number, then hands completed CountersSamples to its
// bound Receiver.
//
// Grounded in SFLPoller / sfl_poller_init/set_interval/tick in
// sflow_api.c.
type Poller struct {
	dsi               DataSourceInstance
	agent             *Agent
	receiver          *Receiver
	magic             interface{}
	getCountersFn     GetCountersFunc
	cpInterval        uint32
	countersCountdown uint32
	countersSeqNo     uint32
}

func newPoller(agent *Agent, dsi DataSourceInstance, magic interface{}, fn GetCountersFunc) *Poller {
	return &Poller{agent: agent, dsi: dsi, magic: magic, getCountersFn: fn}
}

// DSI returns the data-source instance this poller was registered under.
func (p *Poller) DSI() DataSourceInstance { return p.dsi }

// BindReceiver attaches the receiver that completed counters samples are
// sent to.
func (p *Poller) BindReceiver(r *Receiver) { p.receiver = r }

// Receiver returns the bound receiver, or nil if none is bound.
func (p *Poller) Receiver() *Receiver { return p.receiver }

// SetInterval sets the counters polling interval in seconds and
// phase-scatters the initial countdown using the agent's shared LCG, so a
// fleet of pollers started together do not all emit counters on the same
// tick (spec §4.3/§9). An interval of 0 disables polling for this poller.
func (p *Poller) SetInterval(seconds uint32) {
	p.cpInterval = seconds
	if seconds == 0 {
		p.countersCountdown = 0
		return
	}
	p.countersCountdown = p.agent.lcg.Uniform(seconds)
}

// Interval returns the currently configured polling interval in seconds.
func (p *Poller) Interval() uint32 { return p.cpInterval }

// Tick advances the countdown by one second of wall-clock progress. When
// it reaches zero, the configured GetCountersFunc is invoked, its result
// (if any) is written to the bound receiver, and the countdown reloads to
// the full interval.
func (p *Poller) Tick() error {
	if p.cpInterval == 0 {
		return nil
	}
	p.countersCountdown--
	if p.countersCountdown > 0 {
		return nil
	}
	p.countersCountdown = p.cpInterval
	if p.getCountersFn == nil {
		return nil
	}
	pollInvocationsTotal.Inc()
	cs := p.getCountersFn(p.magic, p)
	if cs == nil {
		return nil
	}
	return p.WriteCountersSample(cs)
}

// ResetCountersSeqNo resets the counters sequence number to zero, for the
// same discontinuity-signalling purpose as Sampler.ResetFlowSeqNo.
func (p *Poller) ResetCountersSeqNo() { p.countersSeqNo = 0 }

// CountersSeqNo returns the most recently assigned counters sequence
// number.
func (p *Poller) CountersSeqNo() uint32 { return p.countersSeqNo }

// WriteCountersSample assigns the next counters sequence number and
// source ID and forwards the sample to the bound receiver. A poller with
// no bound receiver drops the sample silently.
func (p *Poller) WriteCountersSample(cs *CountersSample) error {
	if p.receiver == nil {
		return nil
	}
	p.countersSeqNo++
	cs.SequenceNumber = p.countersSeqNo
	cs.SourceID = p.dsi.SourceID()
	return p.receiver.WriteCountersSample(cs)
}
