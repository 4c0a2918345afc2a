package sflow

import "math"

// LCG is the low-quality, low-frequency random source used to stagger
// sampler skip counts and poller countdowns across a fleet that boots
// simultaneously. It must never be used for the hot-path sampling decision
// (that is xorshift32, below) — see spec §4.6/§9.
//
// Recurrence: s' = (s*32719 + 3) mod 32749; uniform(lim) = (s' mod lim) + 1.
// This is Gerhard's generator, reproduced verbatim from sfl_random() in the
// original C so that seeding it deterministically in tests reproduces the
// exact phase-scatter sequence the C implementation would produce.
type LCG struct {
	state uint32
}

// NewLCG returns an LCG seeded the way the C source starts (state 1).
func NewLCG() *LCG {
	return &LCG{state: 1}
}

// Seed sets the generator's state directly, for deterministic tests.
func (g *LCG) Seed(seed uint32) {
	g.state = seed
}

// Uniform returns a value in [1, lim], advancing the generator by one step.
// lim must be >= 1; Uniform(0) would divide by zero and is a caller bug.
func (g *LCG) Uniform(lim uint32) uint32 {
	g.state = (g.state*32719 + 3) % 32749
	return (g.state % lim) + 1
}

// xorshift32 is the fast-path per-worker PRNG used for the sampling
// decision. The core does not run it — it lives with the host's worker
// state (spec §4.6/§9) — but publishing the (seed, threshold) pair and
// stepping the generator is common enough logic that hosts benefit from
// sharing this implementation instead of hand-rolling it.
type xorshift32 struct {
	state uint32
}

func newXorshift32(seed uint32) *xorshift32 {
	if seed == 0 {
		seed = 1
	}
	return &xorshift32{state: seed}
}

func (x *xorshift32) next() uint32 {
	s := x.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	x.state = s
	return s
}

// SamplingDecider holds the per-worker xorshift32 state and the threshold
// derived from the current sampling rate. Sample(...) reports whether a
// given event should be kept; it runs lock-free and touches no sampler or
// receiver state, matching the "fast-path sampling decision runs lock-free
// on worker-local state" requirement of spec §5.
type SamplingDecider struct {
	rng       *xorshift32
	threshold uint32
	rate      uint32
}

// NewSamplingDecider derives per-worker state from a fleet-wide seed and a
// worker index, per spec §4.6 ("seed per-worker as global_seed XOR
// worker_index").
func NewSamplingDecider(globalSeed uint32, workerIndex uint32, rate uint32) *SamplingDecider {
	d := &SamplingDecider{rng: newXorshift32(globalSeed ^ workerIndex)}
	d.SetRate(rate)
	return d
}

// SetRate recomputes the threshold for a new sampling rate. rate == 1 means
// sample every event; the threshold is set to 0 as a fast-path shortcut
// (Sample always returns true without touching the generator state is NOT
// done here — the generator still advances, matching the original
// behavior of evaluating "seed <= threshold" every call).
func (d *SamplingDecider) SetRate(rate uint32) {
	d.rate = rate
	if rate <= 1 {
		d.threshold = 0
	} else {
		d.threshold = math.MaxUint32 / rate
	}
}

// Rate returns the sampling rate currently in effect.
func (d *SamplingDecider) Rate() uint32 { return d.rate }

// Sample advances the generator and reports whether this event should be
// kept. rate == 1 always samples, matching the "rate=1 shortcut" of
// spec §4.6. rate == 0 disables the sampler (spec §6) and Sample always
// returns false; the generator still advances either way so a later
// SetRate back to a live rate does not jump the sequence.
func (d *SamplingDecider) Sample() bool {
	switch {
	case d.rate == 0:
		d.rng.next()
		return false
	case d.rate == 1:
		d.rng.next()
		return true
	default:
		return d.rng.next() <= d.threshold
	}
}

// DeriveSamplingSeed folds an agent's boot time and IP address into a
// fleet-wide seed so that large clusters booting simultaneously do not
// synchronize their per-worker sample selection (spec §4.6, grounded in
// sflow_mc.c's seed derivation: hash = boot_sec XOR boot_usec, then
// hash = hash*3 + (b[i]<<8|b[i+1]) folded across the address bytes).
//
// addr must be 4 bytes (IPv4, zero-padded to 16 conceptually) or 16 bytes
// (IPv6); shorter addresses are treated as all-zero for the missing bytes.
func DeriveSamplingSeed(bootSec, bootUsec uint32, addr []byte) uint32 {
	hash := bootSec ^ bootUsec
	full := make([]byte, 16)
	copy(full, addr)
	for i := 0; i < 16; i += 2 {
		hash = hash*3 + (uint32(full[i])<<8 | uint32(full[i+1]))
	}
	return hash
}
