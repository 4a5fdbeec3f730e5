// Package protocol frames clock telemetry for a serial link.
//
// Frames use the Klipper block layout: a length byte, a sequence byte, a
// payload of VLQ encoded values, a CRC16 and a trailing sync byte. The
// firmware streams frames without waiting for acknowledgements, so a host
// that joins late or loses bytes resynchronises on the sync byte.
package protocol

// Version is the telemetry format version reported in ClockInfo frames
const Version = 1

// Frame layout
const (
	MessageMax         = 64 // largest frame on the wire
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Sequence bytes carry MessageDest in the high bits
	MessageDest     = 0x10
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)

// Message IDs, the first VLQ of every payload
const (
	MsgClockInfo = 1
	MsgSample    = 2
	MsgViolation = 3
)

// Message is one validated frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // frame data without header and trailer
	CRC      uint16

	// Restarted is set when the sender reset its sequence before this
	// frame, as firmware does after a reboot
	Restarted bool
}

// nextSequence advances a sequence byte, wrapping within MessageDest
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
