package sflow

import "testing"

func TestFixedElementSizes(t *testing.T) {
	if got := (ExtendedSocket4{}).size(); got != 20 {
		t.Errorf("ExtendedSocket4 size = %d, want 20", got)
	}
	if got := (ExtendedSocket6{}).size(); got != 44 {
		t.Errorf("ExtendedSocket6 size = %d, want 44", got)
	}
	if got := (MemcacheCounters{}).size(); got != 144 {
		t.Errorf("MemcacheCounters size = %d, want 144", got)
	}
}

func TestMemcacheOperationSizeVariesWithKey(t *testing.T) {
	short := MemcacheOperation{Key: "a"}
	long := MemcacheOperation{Key: "a-much-longer-cache-key"}
	if short.size() >= long.size() {
		t.Fatalf("longer key did not produce a larger encoded size: %d vs %d", short.size(), long.size())
	}
	if got, want := short.size(), uint32(24+8); got != want {
		t.Errorf("short key size = %d, want %d", got, want)
	}
}

func TestFlowSampleSizeSumsElements(t *testing.T) {
	fs := &FlowSample{Elements: []FlowElement{
		ExtendedSocket4{},
		MemcacheOperation{Key: "k"},
	}}
	want := uint32(8*4) + (8 + 20) + (8 + 24 + stringEncodingLength("k"))
	if got := fs.size(); got != want {
		t.Errorf("FlowSample size = %d, want %d", got, want)
	}
}

func TestCountersSampleSizeSumsElements(t *testing.T) {
	cs := &CountersSample{Elements: []CounterElement{MemcacheCounters{}}}
	want := uint32(3*4) + (8 + 144)
	if got := cs.size(); got != want {
		t.Errorf("CountersSample size = %d, want %d", got, want)
	}
}

func TestKnownTagClassification(t *testing.T) {
	for _, tag := range []uint32{TagExSocket4, TagExSocket6, TagMemcache} {
		if !isKnownFlowTag(tag) {
			t.Errorf("tag %d should be a known flow tag", tag)
		}
	}
	if isKnownFlowTag(9999) {
		t.Errorf("tag 9999 should not be a known flow tag")
	}
	if !isKnownCounterTag(TagMemcache) {
		t.Errorf("TagMemcache should be a known counter tag")
	}
	if isKnownCounterTag(TagExSocket4) {
		t.Errorf("TagExSocket4 should not be a known counter tag")
	}
}
