package protocol

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCommands() []Command {
	return []Command{
		NewCommand(CmdGameState, StringParam(StateIdle)),
		BuildCreateLobby(0, 6123, "player1", 1, 1),
		BuildJoinGame("127.0.0.1:7123", "player1", 1),
		NewCommand("Empty"),
		NewCommand("", IntParam(0), StringParam("")),
		NewCommand(strings.Repeat("n", MaxStringLen), StringParam(strings.Repeat("s", MaxStringLen))),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, cmd := range sampleCommands() {
		data, err := EncodeCommand(cmd)
		require.NoError(t, err)

		got, n, err := DecodeCommand(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equal(t, cmd.Name, got.Name)
		assert.Equal(t, len(cmd.Params), len(got.Params))
		for i := range cmd.Params {
			assert.Equal(t, cmd.Params[i], got.Params[i], "param %d of %s", i, cmd.Name)
		}
	}
}

func TestEncodeMaxParams(t *testing.T) {
	params := make([]Param, MaxParams)
	for i := range params {
		if i%2 == 0 {
			params[i] = IntParam(uint32(i))
		} else {
			params[i] = StringParam(strings.Repeat("x", i))
		}
	}
	cmd := NewCommand("Many", params...)
	data, err := EncodeCommand(cmd)
	require.NoError(t, err)

	got, _, err := DecodeCommand(data)
	require.NoError(t, err)
	require.Equal(t, cmd.Params, got.Params)
}

func TestCreateLobbyWireLayout(t *testing.T) {
	data, err := EncodeCommand(BuildCreateLobby(0, 6123, "p", 1, 1))
	require.NoError(t, err)

	want := []byte{
		11, 0, 0, 0, 'C', 'r', 'e', 'a', 't', 'e', 'L', 'o', 'b', 'b', 'y',
		5, 0, 0, 0,
		0x00, 0, 0, 0, 0,
		0x00, 0xEB, 0x17, 0, 0,
		0x01, 1, 0, 0, 0, 'p',
		0x00, 1, 0, 0, 0,
		0x00, 1, 0, 0, 0,
	}
	assert.Equal(t, want, data)
}

func TestDecodePartialBufferNeverConsumes(t *testing.T) {
	for _, cmd := range sampleCommands()[:5] {
		data, err := EncodeCommand(cmd)
		require.NoError(t, err)

		for cut := 0; cut < len(data); cut++ {
			_, n, err := DecodeCommand(data[:cut])
			require.ErrorIs(t, err, ErrIncomplete, "cut at %d of %d", cut, len(data))
			require.Zero(t, n)

			var d Decoder
			d.Feed(data[:cut])
			_, err = d.Next()
			require.ErrorIs(t, err, ErrIncomplete)
			require.Equal(t, cut, d.Buffered())

			d.Feed(data[cut:])
			got, err := d.Next()
			require.NoError(t, err)
			require.Equal(t, cmd.Name, got.Name)
			require.Equal(t, len(cmd.Params), len(got.Params))
			require.Zero(t, d.Buffered())
		}
	}
}

func TestDecoderMultipleCommandsInOneRead(t *testing.T) {
	var stream []byte
	cmds := sampleCommands()[:4]
	for _, cmd := range cmds {
		data, err := EncodeCommand(cmd)
		require.NoError(t, err)
		stream = append(stream, data...)
	}
	stream = append(stream, 1, 0) // start of a fifth command

	var d Decoder
	d.Feed(stream)
	for _, want := range cmds {
		got, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
	}
	_, err := d.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 2, d.Buffered())
}

func lengthPrefix(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

func TestDecodeRejectsOversizedName(t *testing.T) {
	// Header alone: the cap must be reported, not "need more data".
	_, n, err := DecodeCommand(lengthPrefix(MaxStringLen + 1))
	require.ErrorIs(t, err, ErrProtocol)
	require.NotErrorIs(t, err, ErrIncomplete)
	require.Zero(t, n)

	// Even when the buffer happens to hold the advertised span.
	buf := append(lengthPrefix(MaxStringLen+1), make([]byte, MaxStringLen+64)...)
	_, _, err = DecodeCommand(buf)
	require.ErrorIs(t, err, ErrProtocol)

	// Exactly at the cap is fine.
	buf = append(lengthPrefix(MaxStringLen), make([]byte, MaxStringLen)...)
	buf = append(buf, lengthPrefix(0)...)
	_, n, err = DecodeCommand(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
}

func TestDecodeRejectsOversizedString(t *testing.T) {
	buf := append(lengthPrefix(1), 'X')
	buf = append(buf, lengthPrefix(1)...)
	buf = append(buf, TagString)
	buf = append(buf, lengthPrefix(MaxStringLen+1)...)

	_, _, err := DecodeCommand(buf)
	require.ErrorIs(t, err, ErrProtocol)

	// Any non-zero tag is a string on the inbound side.
	buf[len(buf)-5] = 0x7F
	_, _, err = DecodeCommand(buf)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeRejectsTooManyParams(t *testing.T) {
	buf := append(lengthPrefix(1), 'X')
	buf = append(buf, lengthPrefix(MaxParams+1)...)

	_, _, err := DecodeCommand(buf)
	require.ErrorIs(t, err, ErrProtocol)

	var d Decoder
	d.Feed(buf)
	_, err = d.Next()
	require.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, len(buf), d.Buffered())
}

func TestEncodeRejectsOverCaps(t *testing.T) {
	_, err := EncodeCommand(NewCommand(strings.Repeat("n", MaxStringLen+1)))
	require.ErrorIs(t, err, ErrProtocol)

	_, err = EncodeCommand(NewCommand("X", StringParam(strings.Repeat("s", MaxStringLen+1))))
	require.ErrorIs(t, err, ErrProtocol)

	_, err = EncodeCommand(NewCommand("X", make([]Param, MaxParams+1)...))
	require.ErrorIs(t, err, ErrProtocol)
}

func TestDecoderSplitsConcatenatedCommands(t *testing.T) {
	var stream []byte
	for _, cmd := range sampleCommands()[:3] {
		data, err := EncodeCommand(cmd)
		require.NoError(t, err)
		stream = append(stream, data...)
	}

	var d Decoder
	d.Feed(stream)
	for _, want := range sampleCommands()[:3] {
		got, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := d.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Zero(t, d.Buffered())
}

func TestCommandArgs(t *testing.T) {
	cmd := BuildJoinGame("127.0.0.1:7123", "player1", 1)

	addr, ok := cmd.StringArg(0)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:7123", addr)

	_, ok = cmd.StringArg(2)
	assert.False(t, ok)

	id, ok := cmd.IntArg(2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), id)

	_, ok = cmd.IntArg(7)
	assert.False(t, ok)

	assert.Equal(t, `JoinGame("127.0.0.1:7123", "player1", 1)`, cmd.String())
}
