package protocol

import "testing"

func TestVLQInt(t *testing.T) {
	testCases := []struct {
		value int32
		size  int
	}{
		{0, 1},
		{-32, 1},
		{95, 1},
		{96, 2},
		{-33, 2},
		{1000, 2},
		{-1000, 2},
		{1000000, 3},
		{-1000000, 4},
		{1 << 30, 5},
		{-1 << 31, 5},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		encoded := output.Result()
		if len(encoded) != tc.size {
			t.Errorf("%d: expected %d bytes, got %d (%v)", tc.value, tc.size, len(encoded), encoded)
		}

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("%d: decode failed: %v", tc.value, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("expected %d, got %d (encoded as %v)", tc.value, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("%d: %d bytes left over", tc.value, len(data))
		}
	}
}

func TestVLQUint(t *testing.T) {
	testCases := []uint32{0, 127, 128, 16777215, 1 << 31, 0xFFFFFFFF}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)
		data := output.Result()

		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("%d: decode failed: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("expected %d, got %d", expected, decoded)
		}
	}
}

func TestVLQUint64(t *testing.T) {
	testCases := []uint64{0, 1, 1 << 32, 1<<32 - 1, 48000000 * 3600 * 24 * 365, 0xFFFFFFFFFFFFFFFF}

	output := NewScratchOutput()
	for _, v := range testCases {
		EncodeVLQUint64(output, v)
	}

	data := output.Result()
	for _, expected := range testCases {
		decoded, err := DecodeVLQUint64(&data)
		if err != nil {
			t.Fatalf("%d: decode failed: %v", expected, err)
		}
		if decoded != expected {
			t.Errorf("expected %d, got %d", expected, decoded)
		}
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	// continuation bit set with nothing after it
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	// high word present, low word missing
	data = []byte{0x01}
	if _, err := DecodeVLQUint64(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
