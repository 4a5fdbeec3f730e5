package protocol

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var ErrFrameTooLong = errors.New("frame exceeds MessageMax")

// EncodeFrame wraps the payload written by frameData in a header and
// trailer. out must be empty or positioned at a frame boundary.
func EncodeFrame(out OutputBuffer, seq uint8, frameData func(output OutputBuffer)) {
	cursor := out.CurPosition()

	// Length is patched once the payload size is known
	out.Output([]byte{0, seq})
	frameData(out)

	length := len(out.DataSince(cursor)) + MessageTrailerSize
	out.Update(cursor+MessagePositionLen, uint8(length))

	crc := CRC16(out.DataSince(cursor))
	out.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
}

// Transport streams telemetry frames to a writer, numbering them with a
// rolling sequence so the receiver can count lost frames. No
// acknowledgements are expected.
type Transport struct {
	mu       sync.Mutex
	w        io.Writer
	scratch  ScratchOutput
	sequence uint32 // atomic uint8 stored as uint32
}

// NewTransport creates a Transport writing to w
func NewTransport(w io.Writer) *Transport {
	return &Transport{
		w:        w,
		sequence: MessageDest,
	}
}

// Send frames the payload written by frameData and writes it out
func (t *Transport) Send(frameData func(output OutputBuffer)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq := uint8(atomic.LoadUint32(&t.sequence))
	t.scratch.Reset()
	EncodeFrame(&t.scratch, seq, frameData)
	if t.scratch.Overflowed() {
		return ErrFrameTooLong
	}

	if _, err := t.w.Write(t.scratch.Result()); err != nil {
		return err
	}
	atomic.StoreUint32(&t.sequence, uint32(nextSequence(seq)))
	return nil
}

// SendInfo sends a ClockInfo frame
func (t *Transport) SendInfo(info ClockInfo) error {
	return t.Send(func(o OutputBuffer) { encodeInfo(o, info) })
}

// SendSample sends a sample frame
func (t *Transport) SendSample(rec SampleRecord) error {
	return t.Send(func(o OutputBuffer) { encodeSample(o, rec) })
}

// SendViolation sends a violation frame
func (t *Transport) SendViolation(rec ViolationRecord) error {
	return t.Send(func(o OutputBuffer) { encodeViolation(o, rec) })
}

// Sequence returns the sequence byte the next frame will carry
func (t *Transport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.sequence))
}

// Reset restarts the sequence, which tells the receiver the stream began
// again
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.sequence, MessageDest)
}
