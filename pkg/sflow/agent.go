package sflow

import "time"

// Capabilities is the set of callbacks a host must supply to an Agent.
// The core never touches a socket, a logger, or an allocator directly —
// every side effect crosses this boundary, mirroring the five host
// callbacks (alloc/free/error/send/get-counters) described in spec §4.5
// and §9's "capability interface" design note. GetCountersFunc values
// passed to AddPoller serve the get-counters callback per data source;
// Capabilities covers the agent-wide ones.
type Capabilities interface {
	// Send transmits one complete, ready-to-send datagram. The slice is
	// only valid for the duration of the call — implementations that need
	// to retain it must copy.
	Send(datagram []byte)
	// Error reports a data-path problem (encode failure, misuse) that the
	// agent could not recover from on its own. module is a short tag like
	// "receiver" or "sampler"; message is human-readable.
	Error(module, message string)
}

// Agent is the lifecycle root of the sFlow core: it owns an ordered set of
// samplers, pollers and receivers, the shared phase-scatter LCG, and the
// host capability bindings. The agent itself runs single-threaded — any
// concurrency safety is the host's responsibility, applied as a mutex
// around mutating calls (spec §5).
//
// Grounded in SFLAgent / sfl_agent_init/release/tick/addReceiver/
// addSampler/addPoller in sflow_api.c.
type Agent struct {
	address    Address
	subAgentID uint32
	bootTime   time.Time
	now        time.Time
	caps       Capabilities
	lcg        *LCG

	samplers  []*Sampler
	pollers   []*Poller
	receivers []*Receiver
}

// Init prepares the agent for use. agentIP identifies this agent in every
// datagram header it emits; subAgentID distinguishes multiple agent
// instances sharing one IP (e.g. several worker processes); bootTime and
// now seed the agent's uptime clock; caps supplies the host callbacks.
//
// Init may be called again on a zero Agent to reuse it, matching
// sfl_agent_init's re-initialization semantics.
func (a *Agent) Init(agentIP Address, subAgentID uint32, bootTime, now time.Time, caps Capabilities) {
	a.address = agentIP
	a.subAgentID = subAgentID
	a.bootTime = bootTime
	a.now = now
	a.caps = caps
	a.lcg = NewLCG()
	a.samplers = nil
	a.pollers = nil
	a.receivers = nil
}

func (a *Agent) uptimeMillis() uint32 {
	return uint32(a.now.Sub(a.bootTime).Milliseconds())
}

func (a *Agent) reportError(module, message string) {
	if a.caps != nil {
		a.caps.Error(module, message)
	}
}

// AddReceiver appends a new, unbound Receiver and returns it. Receivers
// are never sorted or deduplicated — a host may add as many as it has
// distinct collector destinations for.
func (a *Agent) AddReceiver() *Receiver {
	r := newReceiver(a)
	a.receivers = append(a.receivers, r)
	return r
}

// AddSampler registers a Sampler for dsi, returning the existing one if
// dsi is already registered (idempotent registration, spec §8). Samplers
// are kept sorted by DataSourceInstance.Compare.
func (a *Agent) AddSampler(dsi DataSourceInstance) *Sampler {
	idx, found := a.findSampler(dsi)
	if found {
		return a.samplers[idx]
	}
	s := newSampler(a, dsi)
	a.samplers = append(a.samplers, nil)
	copy(a.samplers[idx+1:], a.samplers[idx:])
	a.samplers[idx] = s
	return s
}

func (a *Agent) findSampler(dsi DataSourceInstance) (int, bool) {
	lo, hi := 0, len(a.samplers)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case a.samplers[mid].dsi.Compare(dsi) < 0:
			lo = mid + 1
		case a.samplers[mid].dsi.Compare(dsi) > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// AddPoller registers a Poller for dsi the same way AddSampler registers a
// Sampler: idempotent, kept sorted by DataSourceInstance.Compare. magic
// and fn are only used the first time dsi is registered.
func (a *Agent) AddPoller(dsi DataSourceInstance, magic interface{}, fn GetCountersFunc) *Poller {
	idx, found := a.findPoller(dsi)
	if found {
		return a.pollers[idx]
	}
	p := newPoller(a, dsi, magic, fn)
	a.pollers = append(a.pollers, nil)
	copy(a.pollers[idx+1:], a.pollers[idx:])
	a.pollers[idx] = p
	return p
}

func (a *Agent) findPoller(dsi DataSourceInstance) (int, bool) {
	lo, hi := 0, len(a.pollers)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case a.pollers[mid].dsi.Compare(dsi) < 0:
			lo = mid + 1
		case a.pollers[mid].dsi.Compare(dsi) > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// Samplers returns the registered samplers in sorted DSI order.
func (a *Agent) Samplers() []*Sampler { return a.samplers }

// Pollers returns the registered pollers in sorted DSI order.
func (a *Agent) Pollers() []*Poller { return a.pollers }

// Receivers returns the registered receivers in registration order.
func (a *Agent) Receivers() []*Receiver { return a.receivers }

// Tick advances the agent's notion of the current time and drives one
// round of periodic work: every receiver is flushed first, then every
// poller is ticked, matching the ordering in sfl_agent_tick so that a
// counters sample produced by this tick's polling goes out on the next
// flush rather than sitting buffered behind it.
func (a *Agent) Tick(now time.Time) {
	a.now = now
	for _, r := range a.receivers {
		if err := r.Tick(); err != nil {
			a.reportError("agent", err.Error())
		}
	}
	for _, p := range a.pollers {
		if err := p.Tick(); err != nil {
			a.reportError("agent", err.Error())
		}
	}
}

// Release flushes every receiver one last time and clears the agent's
// registries. Call it before discarding an Agent so buffered-but-unsent
// samples are not silently lost.
func (a *Agent) Release() {
	for _, r := range a.receivers {
		_ = r.Tick()
	}
	a.samplers = nil
	a.pollers = nil
	a.receivers = nil
}
