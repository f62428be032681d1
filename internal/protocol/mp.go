package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MPType is the frame type of the game's UDP transport.
type MPType uint8

const (
	MPConnect   MPType = 0
	MPAnswer    MPType = 1
	MPData      MPType = 4
	MPAck       MPType = 5
	MPKeepAlive MPType = 6
	MPGoodbye   MPType = 7
	MPNat       MPType = 8
)

var mpTypeStrings = map[MPType]string{
	MPConnect:   "CONNECT",
	MPAnswer:    "ANSWER",
	MPData:      "DATA",
	MPAck:       "ACK",
	MPKeepAlive: "KEEPALIVE",
	MPGoodbye:   "GOODBYE",
	MPNat:       "NAT",
}

// String returns the type name used in logs and recordings.
func (t MPType) String() string {
	if s, ok := mpTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// MPHeaderSize is the fixed header length preceding the payload.
// Format: [type:1][mask:2][serial:2][irt:2][seq:2][expected:2][len:2]
const MPHeaderSize = 13

// MaxDatagramSize bounds a single relayed datagram.
const MaxDatagramSize = 4096

var (
	ErrShortHeader  = errors.New("mp frame shorter than header")
	ErrShortPayload = errors.New("mp frame shorter than advertised payload")
)

// MPHeader is one decoded transport frame.
type MPHeader struct {
	Type     MPType
	Mask     uint16
	Serial   uint16
	IRT      uint16 // serial of the frame this one answers, 0 if none
	Seq      uint16
	Expected uint16
	Payload  []byte
}

// DecodeMP validates and decodes a datagram. The payload is copied, so the
// result does not alias b.
func DecodeMP(b []byte) (MPHeader, error) {
	if len(b) < MPHeaderSize {
		return MPHeader{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	h := MPHeader{
		Type:     MPType(b[0]),
		Mask:     binary.LittleEndian.Uint16(b[1:3]),
		Serial:   binary.LittleEndian.Uint16(b[3:5]),
		IRT:      binary.LittleEndian.Uint16(b[5:7]),
		Seq:      binary.LittleEndian.Uint16(b[7:9]),
		Expected: binary.LittleEndian.Uint16(b[9:11]),
	}
	length := int(binary.LittleEndian.Uint16(b[11:13]))
	if len(b)-MPHeaderSize < length {
		return MPHeader{}, fmt.Errorf("%w: have %d, want %d", ErrShortPayload, len(b)-MPHeaderSize, length)
	}
	if length > 0 {
		h.Payload = make([]byte, length)
		copy(h.Payload, b[MPHeaderSize:MPHeaderSize+length])
	}
	return h, nil
}

// Encode serializes the header followed by its payload.
func (h MPHeader) Encode() []byte {
	buf := make([]byte, MPHeaderSize+len(h.Payload))
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[1:3], h.Mask)
	binary.LittleEndian.PutUint16(buf[3:5], h.Serial)
	binary.LittleEndian.PutUint16(buf[5:7], h.IRT)
	binary.LittleEndian.PutUint16(buf[7:9], h.Seq)
	binary.LittleEndian.PutUint16(buf[9:11], h.Expected)
	binary.LittleEndian.PutUint16(buf[11:13], uint16(len(h.Payload)))
	copy(buf[MPHeaderSize:], h.Payload)
	return buf
}

// BuildSyntheticAck answers a Data frame on behalf of the remote peer.
func BuildSyntheticAck(data MPHeader, serial uint16) MPHeader {
	return MPHeader{
		Type:     MPAck,
		Serial:   serial,
		IRT:      data.Serial,
		Seq:      data.Expected,
		Expected: data.Seq + 1,
	}
}

func (h MPHeader) String() string {
	return fmt.Sprintf("%s serial=%d irt=%d seq=%d expected=%d len=%d",
		h.Type, h.Serial, h.IRT, h.Seq, h.Expected, len(h.Payload))
}
