// Package events defines the session events published while players move
// through the lobby, and the bus that carries them to observers.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Player lifecycle
	EventPlayerConnected    EventType = "player_connected"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventGameStateChanged   EventType = "game_state_changed"

	// Lobby wiring
	EventCommandSent    EventType = "command_sent"
	EventPeerIntroduced EventType = "peer_introduced"
	EventRelayOpened    EventType = "relay_opened"

	// Session
	EventSessionStarted    EventType = "session_started"
	EventSessionTerminated EventType = "session_terminated"

	// AllEvents subscribes a handler to every event type. It is never
	// emitted itself.
	AllEvents EventType = "*"
)

// Event represents a single event in the system.
type Event struct {
	Type      EventType
	SessionID string
	Time      time.Time
	Payload   interface{}
}

// PlayerPayload identifies the player an event concerns.
type PlayerPayload struct {
	PlayerID uint32 `json:"player_id"`
	Name     string `json:"name"`
	Host     bool   `json:"host"`
	Remote   string `json:"remote,omitempty"`
}

// GameStatePayload is emitted on every accepted state transition.
type GameStatePayload struct {
	PlayerID uint32 `json:"player_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// CommandPayload records a GPGNet command sent to a player.
type CommandPayload struct {
	PlayerID uint32 `json:"player_id"`
	Command  string `json:"command"`
	Args     string `json:"args"`
}

// PeerPayload describes an introduction between two players.
type PeerPayload struct {
	PlayerID uint32 `json:"player_id"`
	PeerID   uint32 `json:"peer_id"`
	Address  string `json:"address"`
}

// RelayPayload describes a bound relay endpoint.
type RelayPayload struct {
	PlayerID uint32 `json:"player_id"`
	Port     int    `json:"port"`
}

// SessionPayload describes the session start or end.
type SessionPayload struct {
	Reason string `json:"reason,omitempty"`
	Fatal  bool   `json:"fatal"`
}
