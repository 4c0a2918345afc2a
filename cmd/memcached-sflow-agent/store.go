package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

// store is a minimal in-memory key-value store standing in for a real
// memcached engine. It exists to give the sFlow agent something real to
// sample: every Get/Set/Delete produces a per-request outcome the host
// can fold into a MemcacheOperation flow sample, and its running counters
// are what the poller's GetCountersFunc reports.
type store struct {
	mu      sync.RWMutex
	entries map[string][]byte

	cmdGet       atomic.Uint64
	cmdSet       atomic.Uint64
	cmdDelete    atomic.Uint64
	getHits      atomic.Uint64
	getMisses    atomic.Uint64
	deleteHits   atomic.Uint64
	deleteMisses atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	totalItems   atomic.Uint64
	evictions    atomic.Uint64

	currConnections  atomic.Int64
	totalConnections atomic.Uint64

	maxEntries int
	started    time.Time
}

func (s *store) connOpened() {
	s.currConnections.Add(1)
	s.totalConnections.Add(1)
}

func (s *store) connClosed() {
	s.currConnections.Add(-1)
}

func newStore(maxEntries int) *store {
	return &store{
		entries:    make(map[string][]byte),
		maxEntries: maxEntries,
		started:    time.Now(),
	}
}

func (s *store) Get(key string) ([]byte, bool) {
	s.cmdGet.Add(1)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		s.getHits.Add(1)
		s.bytesWritten.Add(uint64(len(v)))
	} else {
		s.getMisses.Add(1)
	}
	return v, ok
}

func (s *store) Set(key string, value []byte) {
	s.cmdSet.Add(1)
	s.bytesRead.Add(uint64(len(value)))
	s.mu.Lock()
	if _, exists := s.entries[key]; !exists {
		if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
			s.evictOneLocked()
		}
		s.totalItems.Add(1)
	}
	s.entries[key] = value
	s.mu.Unlock()
}

func (s *store) Delete(key string) bool {
	s.cmdDelete.Add(1)
	s.mu.Lock()
	_, existed := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	if existed {
		s.deleteHits.Add(1)
	} else {
		s.deleteMisses.Add(1)
	}
	return existed
}

// evictOneLocked drops an arbitrary entry to make room for a new one.
// Map iteration order in Go is randomized, which is an acceptable stand-in
// for a real eviction policy in this demo store.
func (s *store) evictOneLocked() {
	for k := range s.entries {
		delete(s.entries, k)
		s.evictions.Add(1)
		return
	}
}

func (s *store) currItems() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries))
}

// countersSample builds the periodic MEMCACHE counters element from the
// store's running totals. Passed as a poller's GetCountersFunc.
func (s *store) countersSample(magic interface{}, poller *sflow.Poller) *sflow.CountersSample {
	return &sflow.CountersSample{
		Elements: []sflow.CounterElement{
			sflow.MemcacheCounters{
				Uptime:           uint32(time.Since(s.started).Seconds()),
				CurrConnections:  uint32(s.currConnections.Load()),
				TotalConnections: uint32(s.totalConnections.Load()),
				CmdGet:           uint32(s.cmdGet.Load()),
				CmdSet:           uint32(s.cmdSet.Load()),
				GetHits:          uint32(s.getHits.Load()),
				GetMisses:        uint32(s.getMisses.Load()),
				DeleteHits:       uint32(s.deleteHits.Load()),
				DeleteMisses:     uint32(s.deleteMisses.Load()),
				BytesRead:        s.bytesRead.Load(),
				BytesWritten:     s.bytesWritten.Load(),
				CurrItems:        uint32(s.currItems()),
				TotalItems:       uint32(s.totalItems.Load()),
				Evictions:        uint32(s.evictions.Load()),
			},
		},
	}
}
