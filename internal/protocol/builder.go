package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CommandBuilder constructs outgoing GPGNet commands.
//
// Outgoing values carry a one-byte discriminant (TagInt or TagString)
// followed by either the integer or a length-prefixed string.
type CommandBuilder struct {
	buf bytes.Buffer
}

// NewCommandBuilder starts a command with its name and parameter count.
func NewCommandBuilder(name string, params int) *CommandBuilder {
	b := &CommandBuilder{}
	b.WriteString(name)
	b.WriteUint32(uint32(params))
	return b
}

// Reset clears the builder for reuse.
func (b *CommandBuilder) Reset() {
	b.buf.Reset()
}

// WriteUint32 writes a uint32 in little-endian order.
func (b *CommandBuilder) WriteUint32(v uint32) *CommandBuilder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// WriteString writes a length-prefixed string.
// Format: [length:4][string bytes...]
func (b *CommandBuilder) WriteString(s string) *CommandBuilder {
	b.WriteUint32(uint32(len(s)))
	b.buf.WriteString(s)
	return b
}

// WriteTaggedUint32 writes an integer value.
// Format: [0x00][value:4]
func (b *CommandBuilder) WriteTaggedUint32(v uint32) *CommandBuilder {
	b.buf.WriteByte(TagInt)
	return b.WriteUint32(v)
}

// WriteTaggedString writes a string value.
// Format: [0x01][length:4][string bytes...]
func (b *CommandBuilder) WriteTaggedString(s string) *CommandBuilder {
	b.buf.WriteByte(TagString)
	return b.WriteString(s)
}

// Build returns the constructed command bytes.
func (b *CommandBuilder) Build() []byte {
	return b.buf.Bytes()
}

// Len returns the current size of the command being built.
func (b *CommandBuilder) Len() int {
	return b.buf.Len()
}

// String returns a hex dump of the current command for debugging.
func (b *CommandBuilder) String() string {
	data := b.buf.Bytes()
	return fmt.Sprintf("CommandBuilder[%d bytes]: %x", len(data), data)
}

// ---- Pre-built command constructors ----

// BuildCreateLobby instructs the client to open its lobby.
// Params: [init_mode:int][lobby_port:int][name:str][id:int][offer:int]
func BuildCreateLobby(initMode, lobbyPort uint32, name string, id, offer uint32) Command {
	return NewCommand(CmdCreateLobby,
		IntParam(initMode),
		IntParam(lobbyPort),
		StringParam(name),
		IntParam(id),
		IntParam(offer),
	)
}

// BuildHostGame instructs the host to start hosting a scenario.
// Params: [scenario:str]
func BuildHostGame(scenario string) Command {
	return NewCommand(CmdHostGame, StringParam(scenario))
}

// BuildJoinGame instructs a client to join the host.
// Params: [address:str][host_name:str][host_id:int]
func BuildJoinGame(address, hostName string, hostID uint32) Command {
	return NewCommand(CmdJoinGame, StringParam(address), StringParam(hostName), IntParam(hostID))
}

// BuildConnectToPeer introduces a peer.
// Params: [address:str][name:str][id:int]
func BuildConnectToPeer(address, name string, id uint32) Command {
	return NewCommand(CmdConnectToPeer, StringParam(address), StringParam(name), IntParam(id))
}

// BuildDisconnectFromPeer withdraws a peer introduction.
// Params: [address:str][name:str][id:int]
func BuildDisconnectFromPeer(address, name string, id uint32) Command {
	return NewCommand(CmdDisconnectFromPeer, StringParam(address), StringParam(name), IntParam(id))
}

// BuildGameState is what a game client sends when its state changes.
func BuildGameState(state string) Command {
	return NewCommand(CmdGameState, StringParam(state))
}
