package protocol

import (
	"bytes"
	"errors"
	"testing"

	"tickclock/core"
)

func TestTransportRecords(t *testing.T) {
	var stream bytes.Buffer
	tr := NewTransport(&stream)

	info := ClockInfo{Version: Version, Reload: 1 << 24, InputHz: 125000000, OutputHz: core.Microseconds}
	sample := SampleRecord{
		Time:        1 << 40,
		Raw:         125 << 40,
		Wraps:       (125 << 40) >> 24,
		Counter:     1<<24 - 1,
		Retries:     2,
		Compensated: true,
	}
	violation := ViolationRecord{Previous: 6000, Current: 5001, MissedWraps: 2, Starvation: true}

	if err := tr.SendInfo(info); err != nil {
		t.Fatal(err)
	}
	if err := tr.SendSample(sample); err != nil {
		t.Fatal(err)
	}
	if err := tr.SendViolation(violation); err != nil {
		t.Fatal(err)
	}
	if tr.Sequence() != MessageDest|3 {
		t.Errorf("Expected sequence 0x13, got 0x%02x", tr.Sequence())
	}

	d := NewFrameDecoder()
	d.Write(stream.Bytes())

	var got []any
	for {
		msg, ok := d.Next()
		if !ok {
			break
		}
		rec, err := DecodeRecord(msg.Payload)
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		got = append(got, rec)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[0] != any(info) {
		t.Errorf("info: expected %+v, got %+v", info, got[0])
	}
	if got[1] != any(sample) {
		t.Errorf("sample: expected %+v, got %+v", sample, got[1])
	}
	if got[2] != any(violation) {
		t.Errorf("violation: expected %+v, got %+v", violation, got[2])
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	if _, err := DecodeRecord(nil); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("empty payload: expected ErrBufferTooSmall, got %v", err)
	}
	if _, err := DecodeRecord([]byte{0x09}); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("unknown id: expected ErrUnknownMessage, got %v", err)
	}

	// A violation cut short after the previous value
	if _, err := DecodeRecord([]byte{MsgViolation, 0x00, 0x05}); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("short record: expected ErrBufferTooSmall, got %v", err)
	}

	// Sample followed by an extra byte
	out := NewScratchOutput()
	encodeSample(out, SampleRecord{})
	payload := append([]byte(nil), out.Result()...)
	payload = append(payload, 0x01)
	if _, err := DecodeRecord(payload); !errors.Is(err, ErrTrailingData) {
		t.Errorf("trailing data: expected ErrTrailingData, got %v", err)
	}
}

func TestRecordConversions(t *testing.T) {
	rec := NewSampleRecord(42, core.Sample{Raw: 4200, Wraps: 4, Counter: 800, Retries: 1, Exhausted: true})
	if rec.Time != 42 || rec.Raw != 4200 || rec.Wraps != 4 || rec.Counter != 800 || !rec.Exhausted || rec.Compensated {
		t.Errorf("Unexpected sample record %+v", rec)
	}

	v := NewViolationRecord(&core.ViolationError{Previous: 10, Current: 3, MissedWraps: 2, Starvation: true})
	if v != (ViolationRecord{Previous: 10, Current: 3, MissedWraps: 2, Starvation: true}) {
		t.Errorf("Unexpected violation record %+v", v)
	}

	info := ClockInfo{Reload: 48000, InputHz: 48000000, OutputHz: core.Microseconds}
	if info.WrapPeriod() != 1000 {
		t.Errorf("Expected a 1000us wrap period, got %d", info.WrapPeriod())
	}
	if (ClockInfo{Reload: 1}).WrapPeriod() != 0 {
		t.Error("Expected 0 for an info without frequencies")
	}
}
