package session

import (
	"fmt"
	"time"

	"github.com/energizer-project/gpgnet-mock/internal/network"
)

// GameState is the lobby state a game client last reported.
type GameState int

const (
	StateNone GameState = iota
	StateIdle
	StateLobby
	StateLaunching
	StateEnded
)

var gameStateNames = map[GameState]string{
	StateNone:      "None",
	StateIdle:      "Idle",
	StateLobby:     "Lobby",
	StateLaunching: "Launching",
	StateEnded:     "Ended",
}

func (s GameState) String() string {
	if name, ok := gameStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

// ParseGameState maps a GameState command argument to a state. "None" is
// not something a client can report.
func ParseGameState(s string) (GameState, bool) {
	for state, name := range gameStateNames {
		if name == s && state != StateNone {
			return state, true
		}
	}
	return StateNone, false
}

// Player is one roster slot and, while connected, the game client in it.
type Player struct {
	ID        uint32
	Name      string
	LobbyPort int
	ProxyPort int
	Host      bool

	State      GameState
	Peers      PeerSet
	NextSerial uint16
	Conn       network.Conn
	Relay      network.Endpoint
	History    History
	Stats      RelayStats

	slot        int
	connectedAt time.Time
}

// Connected reports whether a control connection occupies the slot.
func (p *Player) Connected() bool {
	return p.Conn != nil
}

// Slot returns the player's roster index.
func (p *Player) Slot() int {
	return p.slot
}

// ConnectedAt returns when the current control connection was accepted.
func (p *Player) ConnectedAt() time.Time {
	return p.connectedAt
}

// RelayAddr is the address peers use to reach this player's relay.
func (p *Player) RelayAddr(host string) string {
	return fmt.Sprintf("%s:%d", host, p.ProxyPort)
}
