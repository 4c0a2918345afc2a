package sflow

import "encoding/binary"

// Receiver owns one outbound datagram buffer; completed datagrams leave
// through the agent's Capabilities.Send, and the receiver itself holds no
// collector address. An Agent may own several receivers (spec §4.3); samplers
// and pollers are bound to exactly one receiver each and hand it
// pre-built FlowSample/CountersSample values to encode.
//
// Grounded in sfl_receiver_init/tick/writeFlowSample/writeCountersSample
// and the sendSample/resetSampleCollector helpers in sflow_api.c.
type Receiver struct {
	agent           *Agent
	collector       sampleCollector
	maxDatagramSize uint32
}

func newReceiver(agent *Agent) *Receiver {
	r := &Receiver{agent: agent, maxDatagramSize: DefaultDatagramSize}
	r.resetCollector()
	return r
}

// SetMaxDatagramSize bounds how large a single outbound datagram may grow
// before it is flushed. Values below MinDatagramSize are clamped up to it,
// per spec §4.3.
func (r *Receiver) SetMaxDatagramSize(n uint32) {
	if n < MinDatagramSize {
		n = MinDatagramSize
	}
	r.maxDatagramSize = n
}

// MaxDatagramSize reports the receiver's current datagram size ceiling.
func (r *Receiver) MaxDatagramSize() uint32 { return r.maxDatagramSize }

func (r *Receiver) headerSize() uint32 {
	return uint32(addressHeaderQuads(r.agent.address.Type) * 4)
}

// resetCollector restores the buffer to its just-flushed state: zeroed,
// write offset parked right after the reserved header quads, sample count
// and accumulated length cleared. The packet sequence number survives —
// it only ever increases (spec §8, sequence monotonicity).
func (r *Receiver) resetCollector() {
	c := &r.collector
	for i := range c.data {
		c.data[i] = 0
	}
	c.writeOff = int(r.headerSize())
	c.pktLen = 0
	c.numSamples = 0
}

// Tick flushes any samples buffered since the last flush. Called by
// Agent.Tick on every receiver, unconditionally, so that samples never sit
// in the buffer indefinitely waiting for one more sample to arrive.
func (r *Receiver) Tick() error {
	if r.collector.numSamples == 0 {
		return nil
	}
	return r.flush()
}

// WriteFlowSample encodes fs into the buffer, flushing first if fs would
// not fit in the remaining space. A sample too large to ever fit (even in
// an empty datagram) is rejected with ErrOverflow and dropped; a sample
// whose actual encoded size disagrees with its pre-computed size is an
// encoder bug and flushes the error via the agent's error path, discarding
// the entire in-flight buffer so a corrupt partial sample is never sent.
func (r *Receiver) WriteFlowSample(fs *FlowSample) error {
	for _, el := range fs.Elements {
		if !isKnownFlowTag(el.Tag()) {
			err := newEncodeError(ErrUnknownTag, "flow sample carries unknown element tag %d", el.Tag())
			r.agent.reportError("receiver", err.Msg)
			encodeErrorsTotal.WithLabelValues("unknown_tag").Inc()
			return err
		}
	}
	packed := fs.size()
	if packed+8 > r.maxDatagramSize-32 {
		err := newEncodeError(ErrOverflow, "flow sample of %d bytes exceeds datagram capacity", packed)
		r.agent.reportError("receiver", err.Msg)
		encodeErrorsTotal.WithLabelValues("overflow").Inc()
		return err
	}
	if r.headerSize()+r.collector.pktLen+8+packed >= r.maxDatagramSize {
		if err := r.flush(); err != nil {
			return err
		}
	}

	c := &r.collector
	preOff := c.writeOff
	c.putNet32(TagFlowSample)
	c.putNet32(packed)
	c.putNet32(fs.SequenceNumber)
	c.putNet32(fs.SourceID)
	c.putNet32(fs.SamplingRate)
	c.putNet32(fs.SamplePool)
	c.putNet32(fs.Drops)
	c.putNet32(fs.Input)
	c.putNet32(fs.Output)
	c.putNet32(uint32(len(fs.Elements)))
	for _, el := range fs.Elements {
		c.putNet32(el.Tag())
		c.putNet32(el.size())
		el.encode(c)
	}

	written := uint32(c.writeOff-preOff) - 8
	if written != packed {
		r.discard()
		err := newEncodeError(ErrMismatch, "flow sample pre-size %d disagreed with written size %d", packed, written)
		r.agent.reportError("receiver", err.Msg)
		encodeErrorsTotal.WithLabelValues("mismatch").Inc()
		return err
	}

	c.pktLen += 8 + packed
	c.numSamples++
	samplesEncodedTotal.WithLabelValues("flow").Inc()
	return nil
}

// WriteCountersSample encodes cs, following the same flush/verify
// discipline as WriteFlowSample but with the counters-sample overflow
// guard (half the datagram, since counters samples are not expected to
// dominate a shared datagram the way flow samples can).
func (r *Receiver) WriteCountersSample(cs *CountersSample) error {
	for _, el := range cs.Elements {
		if !isKnownCounterTag(el.Tag()) {
			err := newEncodeError(ErrUnknownTag, "counters sample carries unknown element tag %d", el.Tag())
			r.agent.reportError("receiver", err.Msg)
			encodeErrorsTotal.WithLabelValues("unknown_tag").Inc()
			return err
		}
	}
	packed := cs.size()
	if packed+8 > r.maxDatagramSize/2 {
		err := newEncodeError(ErrOverflow, "counters sample of %d bytes exceeds datagram capacity", packed)
		r.agent.reportError("receiver", err.Msg)
		encodeErrorsTotal.WithLabelValues("overflow").Inc()
		return err
	}
	if r.headerSize()+r.collector.pktLen+8+packed >= r.maxDatagramSize {
		if err := r.flush(); err != nil {
			return err
		}
	}

	c := &r.collector
	preOff := c.writeOff
	c.putNet32(TagCountersSample)
	c.putNet32(packed)
	c.putNet32(cs.SequenceNumber)
	c.putNet32(cs.SourceID)
	c.putNet32(uint32(len(cs.Elements)))
	for _, el := range cs.Elements {
		c.putNet32(el.Tag())
		c.putNet32(el.size())
		el.encode(c)
	}

	written := uint32(c.writeOff-preOff) - 8
	if written != packed {
		r.discard()
		err := newEncodeError(ErrMismatch, "counters sample pre-size %d disagreed with written size %d", packed, written)
		r.agent.reportError("receiver", err.Msg)
		encodeErrorsTotal.WithLabelValues("mismatch").Inc()
		return err
	}

	c.pktLen += 8 + packed
	c.numSamples++
	samplesEncodedTotal.WithLabelValues("counters").Inc()
	return nil
}

// discard drops the buffered datagram without sending it, used when a
// mismatch is detected mid-encode and the buffer can no longer be trusted.
func (r *Receiver) discard() {
	r.resetCollector()
}

// flush advances the packet sequence number, backpatches the datagram
// header (carrying the new sequence number) over the buffer's reserved
// prefix, hands the completed datagram to the agent's Send capability, and
// resets the buffer for the next round.
func (r *Receiver) flush() error {
	c := &r.collector
	c.packetSeqNo++
	r.writeHeader()
	r.agent.caps.Send(c.data[:c.writeOff])
	datagramsSentTotal.Inc()
	r.resetCollector()
	return nil
}

func (r *Receiver) writeHeader() {
	c := &r.collector
	a := r.agent
	off := 0
	binary.BigEndian.PutUint32(c.data[off:], 5) // sFlow version
	off += 4
	addrType := a.address.Type
	if addrType == AddressUndefined {
		addrType = AddressIPv4
	}
	binary.BigEndian.PutUint32(c.data[off:], uint32(addrType))
	off += 4
	if a.address.Type == AddressIPv6 {
		var b16 [16]byte
		copy(b16[:], a.address.Bytes)
		copy(c.data[off:], b16[:])
		off += 16
	} else {
		var b4 [4]byte
		copy(b4[:], a.address.Bytes)
		copy(c.data[off:], b4[:])
		off += 4
	}
	binary.BigEndian.PutUint32(c.data[off:], a.subAgentID)
	off += 4
	binary.BigEndian.PutUint32(c.data[off:], c.packetSeqNo)
	off += 4
	binary.BigEndian.PutUint32(c.data[off:], a.uptimeMillis())
	off += 4
	binary.BigEndian.PutUint32(c.data[off:], c.numSamples)
}
