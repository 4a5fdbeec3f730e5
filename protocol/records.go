package protocol

import (
	"errors"
	"fmt"

	"tickclock/core"
)

var (
	ErrUnknownMessage = errors.New("unknown message id")
	ErrTrailingData   = errors.New("trailing bytes after record")
)

// ClockInfo describes the clock that produced the stream. Firmware sends
// it on start and periodically so a host can join at any time.
type ClockInfo struct {
	Version  uint32
	Reload   uint32
	InputHz  uint64
	OutputHz uint64
}

// WrapPeriod returns one wrap in output ticks, or 0 when the info is not
// usable
func (i ClockInfo) WrapPeriod() uint64 {
	res, err := core.NewResolution(i.InputHz, i.OutputHz)
	if err != nil {
		return 0
	}
	return res.Scale(uint64(i.Reload))
}

// SampleRecord is one clock reading
type SampleRecord struct {
	Time        uint64 // output ticks
	Raw         uint64
	Wraps       uint64
	Counter     uint32
	Retries     uint8
	Compensated bool
	Exhausted   bool
}

// NewSampleRecord converts a clock sample taken at now output ticks
func NewSampleRecord(now uint64, s core.Sample) SampleRecord {
	return SampleRecord{
		Time:        now,
		Raw:         s.Raw,
		Wraps:       s.Wraps,
		Counter:     s.Counter,
		Retries:     s.Retries,
		Compensated: s.Compensated,
		Exhausted:   s.Exhausted,
	}
}

// ViolationRecord reports a reading that went backwards on the device
type ViolationRecord struct {
	Previous    uint64
	Current     uint64
	MissedWraps uint32
	Starvation  bool
}

// NewViolationRecord converts a checker error
func NewViolationRecord(err *core.ViolationError) ViolationRecord {
	return ViolationRecord{
		Previous:    err.Previous,
		Current:     err.Current,
		MissedWraps: err.MissedWraps,
		Starvation:  err.Starvation,
	}
}

// Sample flag bits
const (
	flagCompensated = 1 << 0
	flagExhausted   = 1 << 1
)

func encodeInfo(out OutputBuffer, info ClockInfo) {
	EncodeVLQUint(out, MsgClockInfo)
	EncodeVLQUint(out, info.Version)
	EncodeVLQUint(out, info.Reload)
	EncodeVLQUint64(out, info.InputHz)
	EncodeVLQUint64(out, info.OutputHz)
}

func encodeSample(out OutputBuffer, rec SampleRecord) {
	var flags uint32
	if rec.Compensated {
		flags |= flagCompensated
	}
	if rec.Exhausted {
		flags |= flagExhausted
	}
	EncodeVLQUint(out, MsgSample)
	EncodeVLQUint64(out, rec.Time)
	EncodeVLQUint64(out, rec.Raw)
	EncodeVLQUint64(out, rec.Wraps)
	EncodeVLQUint(out, rec.Counter)
	EncodeVLQUint(out, uint32(rec.Retries))
	EncodeVLQUint(out, flags)
}

func encodeViolation(out OutputBuffer, rec ViolationRecord) {
	var starvation uint32
	if rec.Starvation {
		starvation = 1
	}
	EncodeVLQUint(out, MsgViolation)
	EncodeVLQUint64(out, rec.Previous)
	EncodeVLQUint64(out, rec.Current)
	EncodeVLQUint(out, rec.MissedWraps)
	EncodeVLQUint(out, starvation)
}

// EncodeInfo writes a complete ClockInfo frame
func EncodeInfo(out OutputBuffer, seq uint8, info ClockInfo) {
	EncodeFrame(out, seq, func(o OutputBuffer) { encodeInfo(o, info) })
}

// EncodeSample writes a complete sample frame
func EncodeSample(out OutputBuffer, seq uint8, rec SampleRecord) {
	EncodeFrame(out, seq, func(o OutputBuffer) { encodeSample(o, rec) })
}

// EncodeViolation writes a complete violation frame
func EncodeViolation(out OutputBuffer, seq uint8, rec ViolationRecord) {
	EncodeFrame(out, seq, func(o OutputBuffer) { encodeViolation(o, rec) })
}

// DecodeRecord parses a frame payload into a ClockInfo, SampleRecord or
// ViolationRecord value
func DecodeRecord(payload []byte) (any, error) {
	data := payload
	id, err := DecodeVLQUint(&data)
	if err != nil {
		return nil, fmt.Errorf("decoding message id: %w", err)
	}

	var rec any
	switch id {
	case MsgClockInfo:
		rec, err = decodeInfo(&data)
	case MsgSample:
		rec, err = decodeSample(&data)
	case MsgViolation:
		rec, err = decodeViolation(&data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding message %d: %w", id, err)
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("message %d: %w", id, ErrTrailingData)
	}
	return rec, nil
}

// decoder reads fields in order and keeps the first error
type decoder struct {
	data *[]byte
	err  error
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := DecodeVLQUint(d.data)
	d.err = err
	return v
}

func (d *decoder) u64() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := DecodeVLQUint64(d.data)
	d.err = err
	return v
}

func decodeInfo(data *[]byte) (ClockInfo, error) {
	d := decoder{data: data}
	info := ClockInfo{
		Version: d.u32(),
		Reload:  d.u32(),
	}
	info.InputHz = d.u64()
	info.OutputHz = d.u64()
	return info, d.err
}

func decodeSample(data *[]byte) (SampleRecord, error) {
	d := decoder{data: data}
	rec := SampleRecord{
		Time:  d.u64(),
		Raw:   d.u64(),
		Wraps: d.u64(),
	}
	rec.Counter = d.u32()
	rec.Retries = uint8(d.u32())
	flags := d.u32()
	rec.Compensated = flags&flagCompensated != 0
	rec.Exhausted = flags&flagExhausted != 0
	return rec, d.err
}

func decodeViolation(data *[]byte) (ViolationRecord, error) {
	d := decoder{data: data}
	rec := ViolationRecord{
		Previous: d.u64(),
		Current:  d.u64(),
	}
	rec.MissedWraps = d.u32()
	rec.Starvation = d.u32() != 0
	return rec, d.err
}
