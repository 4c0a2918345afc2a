package sflow

// FlowSample is one stochastically-sampled event, handed to a Sampler for
// encoding. SequenceNumber and SourceID are always assigned by the sampler,
// overwriting any caller value; SamplingRate, SamplePool and Drops default
// to the sampler's own bookkeeping when left zero, per
// spec §4.2.
type FlowSample struct {
	SequenceNumber uint32
	SourceID       uint32
	SamplingRate   uint32
	SamplePool     uint32
	Drops          uint32
	Input          uint32 // ifIndex the sample arrived on, 0 if not applicable
	Output         uint32
	Elements       []FlowElement
}

func (fs *FlowSample) size() uint32 {
	// 7 fixed 32-bit fields (seq, source_id, rate, pool, drops, input,
	// output) plus the element count, plus each element's 8-byte
	// tag+length header and payload.
	total := uint32(8 * 4)
	for _, el := range fs.Elements {
		total += 8 + el.size()
	}
	return total
}

// CountersSample is one periodic counters snapshot, handed to a Poller for
// encoding. SequenceNumber and SourceID are always assigned by the poller,
// overwriting any caller value.
type CountersSample struct {
	SequenceNumber uint32
	SourceID       uint32
	Elements       []CounterElement
}

func (cs *CountersSample) size() uint32 {
	total := uint32(3 * 4)
	for _, el := range cs.Elements {
		total += 8 + el.size()
	}
	return total
}
