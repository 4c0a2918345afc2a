package main

import (
	"testing"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

func TestStoreSetGetDelete(t *testing.T) {
	s := newStore(0)

	if _, ok := s.Get("missing"); ok {
		t.Fatalf("Get on empty store returned ok=true")
	}
	if s.getMisses.Load() != 1 {
		t.Fatalf("getMisses = %d, want 1", s.getMisses.Load())
	}

	s.Set("k", []byte("v"))
	v, ok := s.Get("k")
	if !ok || string(v) != "v" {
		t.Fatalf("Get(%q) = (%q, %v), want (\"v\", true)", "k", v, ok)
	}
	if s.getHits.Load() != 1 {
		t.Fatalf("getHits = %d, want 1", s.getHits.Load())
	}

	if !s.Delete("k") {
		t.Fatalf("Delete(%q) = false, want true", "k")
	}
	if s.Delete("k") {
		t.Fatalf("second Delete(%q) = true, want false", "k")
	}
	if s.deleteHits.Load() != 1 || s.deleteMisses.Load() != 1 {
		t.Fatalf("deleteHits=%d deleteMisses=%d, want 1,1", s.deleteHits.Load(), s.deleteMisses.Load())
	}
}

func TestStoreEvictsAtCapacity(t *testing.T) {
	s := newStore(2)
	s.Set("a", []byte("1"))
	s.Set("b", []byte("2"))
	if s.currItems() != 2 {
		t.Fatalf("currItems = %d, want 2", s.currItems())
	}

	s.Set("c", []byte("3"))
	if s.currItems() != 2 {
		t.Fatalf("currItems after eviction = %d, want 2", s.currItems())
	}
	if s.evictions.Load() != 1 {
		t.Fatalf("evictions = %d, want 1", s.evictions.Load())
	}
}

func TestStoreConnTracking(t *testing.T) {
	s := newStore(0)
	s.connOpened()
	s.connOpened()
	if s.currConnections.Load() != 2 {
		t.Fatalf("currConnections = %d, want 2", s.currConnections.Load())
	}
	if s.totalConnections.Load() != 2 {
		t.Fatalf("totalConnections = %d, want 2", s.totalConnections.Load())
	}
	s.connClosed()
	if s.currConnections.Load() != 1 {
		t.Fatalf("currConnections after close = %d, want 1", s.currConnections.Load())
	}
	if s.totalConnections.Load() != 2 {
		t.Fatalf("totalConnections after close = %d, want 2 (monotonic)", s.totalConnections.Load())
	}
}

func TestStoreCountersSampleReflectsActivity(t *testing.T) {
	s := newStore(0)
	s.connOpened()
	s.Set("k", []byte("value"))
	s.Get("k")
	s.Get("missing")

	cs := s.countersSample(s, nil)
	if len(cs.Elements) != 1 {
		t.Fatalf("expected 1 counter element, got %d", len(cs.Elements))
	}
	mc, ok := cs.Elements[0].(sflow.MemcacheCounters)
	if !ok {
		t.Fatalf("counter element is not a MemcacheCounters")
	}
	if mc.CmdGet != 2 {
		t.Errorf("CmdGet = %d, want 2", mc.CmdGet)
	}
	if mc.GetHits != 1 || mc.GetMisses != 1 {
		t.Errorf("GetHits=%d GetMisses=%d, want 1,1", mc.GetHits, mc.GetMisses)
	}
	if mc.CurrConnections != 1 {
		t.Errorf("CurrConnections = %d, want 1", mc.CurrConnections)
	}
}
