// Package protocol implements the wire formats spoken by gpgnet-mock: the
// GPGNet control protocol between a game client and its lobby orchestrator,
// and the header of the game's own UDP transport ("MP" frames). All
// integers use little-endian byte order.
package protocol

// GPGNet command names.
const (
	// Incoming from the game client
	CmdGameState    = "GameState"
	CmdConnected    = "Connected"
	CmdDisconnected = "Disconnected"
	CmdGameEnded    = "GameEnded"
	CmdChat         = "Chat"

	// Outgoing to the game client
	CmdCreateLobby        = "CreateLobby"
	CmdHostGame           = "HostGame"
	CmdJoinGame           = "JoinGame"
	CmdConnectToPeer      = "ConnectToPeer"
	CmdDisconnectFromPeer = "DisconnectFromPeer"
)

// GameState parameter values reported by the game client.
const (
	StateIdle      = "Idle"
	StateLobby     = "Lobby"
	StateLaunching = "Launching"
	StateEnded     = "Ended"
)

// MaxStringLen caps the command name and every string parameter.
const MaxStringLen = 4096

// MaxParams caps the number of parameters in a single command.
const MaxParams = 32

// Parameter tags. On the inbound side any non-zero tag denotes a string.
const (
	TagInt    byte = 0x00
	TagString byte = 0x01
)

// DefaultPort is the default GPGNet listen port.
const DefaultPort = 7237
