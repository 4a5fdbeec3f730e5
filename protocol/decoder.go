package protocol

// decoderBufferSize holds several frames of backlog
const decoderBufferSize = 512

// DecoderStats counts what the decoder threw away
type DecoderStats struct {
	Frames      uint64 // valid frames delivered
	Dropped     uint64 // bytes discarded while hunting for a frame
	Resyncs     uint64 // times framing was lost
	LostFrames  uint64 // frames missing according to the sequence
	StreamStart uint64 // times the sender restarted its sequence
}

// FrameDecoder turns a telemetry byte stream into frames. Whenever a
// length, sequence, trailer or checksum is wrong it discards bytes up to
// the next sync byte and starts again there. It is not safe for
// concurrent use.
type FrameDecoder struct {
	input        *FifoBuffer
	synchronized bool
	expectedSeq  uint8
	haveSeq      bool
	pending      []*Message
	stats        DecoderStats
}

// NewFrameDecoder creates a decoder
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{
		input:        NewFifoBuffer(decoderBufferSize),
		synchronized: true,
	}
}

// Write feeds received bytes to the decoder. It always consumes all of p.
func (d *FrameDecoder) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		n := d.input.Write(p)
		p = p[n:]
		d.process(d.input)

		if n == 0 && d.input.Free() == 0 {
			// Backlog the parser cannot use
			d.stats.Dropped += uint64(d.input.Available())
			d.input.Pop(d.input.Available())
			d.synchronized = false
			d.stats.Resyncs++
		}
	}
	return total, nil
}

// Next returns the oldest decoded frame, if any
func (d *FrameDecoder) Next() (*Message, bool) {
	if len(d.pending) == 0 {
		return nil, false
	}
	msg := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	return msg, true
}

// Stats returns the decoder counters
func (d *FrameDecoder) Stats() DecoderStats {
	return d.stats
}

// Reset drops buffered data and sequence state
func (d *FrameDecoder) Reset() {
	d.input.Reset()
	d.synchronized = true
	d.haveSeq = false
	d.pending = nil
}

func (d *FrameDecoder) desync() {
	d.synchronized = false
	d.stats.Resyncs++
}

// process parses every complete frame at the front of input
func (d *FrameDecoder) process(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				d.stats.Dropped += uint64(len(data))
				data = nil
				break
			}
			d.stats.Dropped += uint64(syncPos)
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageMax {
			d.desync()
			continue
		}
		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		payload := make([]byte, msgLen-MessageHeaderSize-MessageTrailerSize)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		d.pending = append(d.pending, &Message{
			Length:    uint8(msgLen),
			Sequence:  seq,
			Payload:   payload,
			CRC:       frameCRC,
			Restarted: d.track(seq),
		})
		d.stats.Frames++
		data = data[msgLen:]
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// track updates sequence accounting for a received frame and reports
// whether the sender restarted
func (d *FrameDecoder) track(seq uint8) (restarted bool) {
	if d.haveSeq && seq != d.expectedSeq {
		if seq == MessageDest {
			d.stats.StreamStart++
			restarted = true
		} else {
			gap := (seq - d.expectedSeq) & MessageSeqMask
			d.stats.LostFrames += uint64(gap)
		}
	}
	d.haveSeq = true
	d.expectedSeq = nextSequence(seq)
	return restarted
}
