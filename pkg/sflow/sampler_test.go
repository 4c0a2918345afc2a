package sflow

import "testing"

// A rate of 0 disables the sampler: SetRate stores it verbatim (distinct
// from rate 1), NextSkip never reports a nonzero skip, and neither call
// panics despite drawing from the shared LCG underneath.
func TestSamplerRateZeroDisables(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})

	samp.SetRate(0)
	if samp.Rate() != 0 {
		t.Fatalf("Rate() = %d, want 0", samp.Rate())
	}
	if samp.skip != 0 {
		t.Fatalf("skip after SetRate(0) = %d, want 0", samp.skip)
	}
	for i := 0; i < 100; i++ {
		if got := samp.NextSkip(); got != 0 {
			t.Fatalf("NextSkip() on a disabled sampler = %d, want 0 (iteration %d)", got, i)
		}
	}
}

// SetRate(0) still draws exactly one value from the agent's shared LCG,
// keeping its draw sequence synchronized with any other sampler/poller
// sharing the same agent — the original C's sfl_random(rate) call is
// unconditional regardless of rate.
func TestSamplerSetRateZeroStillDrawsFromSharedLCG(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	agent.lcg.Seed(55)

	reference := &LCG{state: 55}
	wantState := reference
	wantState.Uniform(1) // SetRate(0) clamps Uniform's lim to 1 internally

	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})
	samp.SetRate(0)

	if agent.lcg.state != wantState.state {
		t.Fatalf("shared LCG state after SetRate(0) = %d, want %d (one draw consumed)", agent.lcg.state, wantState.state)
	}
}

// Rate 1 and rate 0 are distinguishable states, not aliases of one another.
func TestSamplerRateOneVersusZero(t *testing.T) {
	agent, _ := newTestAgent(NewIPv4Address(10, 0, 0, 1))
	samp := agent.AddSampler(DataSourceInstance{Class: DSClassLogicalEntity, Index: 1})

	samp.SetRate(1)
	if samp.Rate() != 1 {
		t.Fatalf("Rate() after SetRate(1) = %d, want 1", samp.Rate())
	}

	samp.SetRate(0)
	if samp.Rate() != 0 {
		t.Fatalf("Rate() after SetRate(0) = %d, want 0", samp.Rate())
	}
}
