package session

import "time"

// PlayerSnapshot is a read-only copy of one roster slot.
type PlayerSnapshot struct {
	Slot        int        `json:"slot"`
	ID          uint32     `json:"id"`
	Name        string     `json:"name"`
	Host        bool       `json:"host"`
	LobbyPort   int        `json:"lobby_port"`
	ProxyPort   int        `json:"proxy_port"`
	Connected   bool       `json:"connected"`
	Remote      string     `json:"remote,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	State       string     `json:"state"`
	RelayOpen   bool       `json:"relay_open"`
	Peers       []uint32   `json:"peers"`
	NextSerial  uint16     `json:"next_serial"`
	HistoryLen  int        `json:"history_len"`
	Relay       RelayStats `json:"relay"`
}

// Snapshot is a read-only copy of the whole session.
type Snapshot struct {
	SessionID    string           `json:"session_id"`
	StartedAt    time.Time        `json:"started_at"`
	Scenario     string           `json:"scenario"`
	SyntheticAck bool             `json:"synthetic_ack"`
	Terminated   bool             `json:"terminated"`
	Reason       string           `json:"reason,omitempty"`
	Connected    int              `json:"connected"`
	Capacity     int              `json:"capacity"`
	Players      []PlayerSnapshot `json:"players"`
}

// Snapshot copies the current state. Call it on the event loop.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		StartedAt:    s.startedAt,
		Scenario:     s.scenario,
		SyntheticAck: s.syntheticAck,
		Terminated:   s.terminated,
		Reason:       s.reason,
		Connected:    s.registry.Connected(),
		Capacity:     s.registry.Capacity(),
	}
	for _, p := range s.registry.Players() {
		snap.Players = append(snap.Players, snapshotPlayer(p))
	}
	return snap
}

func snapshotPlayer(p *Player) PlayerSnapshot {
	ps := PlayerSnapshot{
		Slot:       p.slot,
		ID:         p.ID,
		Name:       p.Name,
		Host:       p.Host,
		LobbyPort:  p.LobbyPort,
		ProxyPort:  p.ProxyPort,
		Connected:  p.Connected(),
		State:      p.State.String(),
		RelayOpen:  p.Relay != nil,
		Peers:      p.Peers.IDs(),
		NextSerial: p.NextSerial,
		HistoryLen: p.History.Len(),
		Relay:      p.Stats,
	}
	if p.Connected() {
		at := p.connectedAt
		ps.ConnectedAt = &at
		ps.Remote = p.Conn.RemoteAddr()
	}
	return ps
}

// Player returns the snapshot of the player with id.
func (s Snapshot) Player(id uint32) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}
