package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMPEncodeDecode(t *testing.T) {
	testCases := []struct {
		name string
		hdr  MPHeader
	}{
		{
			name: "data with payload",
			hdr:  MPHeader{Type: MPData, Mask: 0x0102, Serial: 7, IRT: 3, Seq: 11, Expected: 12, Payload: []byte("hello")},
		},
		{
			name: "ack without payload",
			hdr:  MPHeader{Type: MPAck, Serial: 65535, IRT: 1, Seq: 0, Expected: 65535},
		},
		{
			name: "keepalive",
			hdr:  MPHeader{Type: MPKeepAlive},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.hdr.Encode()
			require.Len(t, data, MPHeaderSize+len(tc.hdr.Payload))

			got, err := DecodeMP(data)
			require.NoError(t, err)
			assert.Equal(t, tc.hdr, got)
		})
	}
}

func TestMPWireLayout(t *testing.T) {
	data := MPHeader{Type: MPData, Mask: 1, Serial: 0x0203, IRT: 4, Seq: 5, Expected: 6, Payload: []byte{0xAA}}.Encode()
	assert.Equal(t, []byte{4, 1, 0, 3, 2, 4, 0, 5, 0, 6, 0, 1, 0, 0xAA}, data)
}

func TestMPDecodeErrors(t *testing.T) {
	_, err := DecodeMP(make([]byte, MPHeaderSize-1))
	require.ErrorIs(t, err, ErrShortHeader)

	data := MPHeader{Type: MPData, Payload: []byte("abcd")}.Encode()
	_, err = DecodeMP(data[:len(data)-1])
	require.ErrorIs(t, err, ErrShortPayload)
}

func TestMPDecodeDoesNotAlias(t *testing.T) {
	data := MPHeader{Type: MPData, Payload: []byte("abcd")}.Encode()
	h, err := DecodeMP(data)
	require.NoError(t, err)

	data[MPHeaderSize] = 'z'
	assert.Equal(t, []byte("abcd"), h.Payload)
}

func TestSyntheticAck(t *testing.T) {
	data := MPHeader{Type: MPData, Serial: 40, IRT: 39, Seq: 10, Expected: 20, Payload: []byte("x")}
	ack := BuildSyntheticAck(data, 55)

	assert.Equal(t, MPAck, ack.Type)
	assert.Equal(t, uint16(55), ack.Serial)
	assert.Equal(t, uint16(40), ack.IRT)
	assert.Equal(t, uint16(20), ack.Seq)
	assert.Equal(t, uint16(11), ack.Expected)
	assert.Empty(t, ack.Payload)
}

func TestMPTypeString(t *testing.T) {
	assert.Equal(t, "DATA", MPData.String())
	assert.Equal(t, "NAT", MPNat.String())
	assert.Equal(t, "UNKNOWN(2)", MPType(2).String())
}
