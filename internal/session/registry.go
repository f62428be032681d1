package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/energizer-project/gpgnet-mock/internal/config"
	"github.com/energizer-project/gpgnet-mock/internal/network"
)

var (
	// ErrSlotsExhausted means every roster slot already has a connection.
	ErrSlotsExhausted = errors.New("no free player slot")

	// ErrUnknownPlayer means no roster slot carries the requested id.
	ErrUnknownPlayer = errors.New("unknown player")
)

// Registry owns the fixed player roster. It is not safe for concurrent use;
// the event loop serializes access.
type Registry struct {
	slots []*Player
}

// NewRegistry builds one slot per roster entry, in order.
func NewRegistry(roster []config.PlayerConfig) *Registry {
	r := &Registry{slots: make([]*Player, len(roster))}
	for i, pc := range roster {
		r.slots[i] = &Player{
			ID:        pc.ID,
			Name:      pc.Name,
			LobbyPort: pc.LobbyPort,
			ProxyPort: pc.ProxyPort,
			Host:      pc.Host,
			Peers:     make(PeerSet),
			slot:      i,
		}
	}
	return r
}

// Allocate binds conn to the first free slot.
func (r *Registry) Allocate(conn network.Conn) (*Player, error) {
	for _, p := range r.slots {
		if p.Conn == nil {
			p.Conn = conn
			p.connectedAt = time.Now()
			return p, nil
		}
	}
	return nil, ErrSlotsExhausted
}

// Release frees p's slot: the connection is dropped, the relay closed and
// all per-connection state reset.
func (r *Registry) Release(p *Player) {
	if p.Conn != nil {
		p.Conn.Close()
		p.Conn = nil
	}
	p.State = StateNone
	if p.Relay != nil {
		p.Relay.Close()
		p.Relay = nil
	}
	p.Peers.Clear()
	p.NextSerial = 0
	p.History.Reset()
	p.Stats = RelayStats{}
}

// lookup returns the player with id.
func (r *Registry) lookup(id uint32) (*Player, error) {
	for _, p := range r.slots {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
}

// Peers returns every other slot in slot order, connected or not.
func (r *Registry) Peers(p *Player) []*Player {
	peers := make([]*Player, 0, len(r.slots)-1)
	for _, other := range r.slots {
		if other != p {
			peers = append(peers, other)
		}
	}
	return peers
}

// Players returns every slot in slot order.
func (r *Registry) Players() []*Player {
	out := make([]*Player, len(r.slots))
	copy(out, r.slots)
	return out
}

// Host returns the host slot, or nil if the roster has none.
func (r *Registry) Host() *Player {
	for _, p := range r.slots {
		if p.Host {
			return p
		}
	}
	return nil
}

// Connected returns the number of occupied slots.
func (r *Registry) Connected() int {
	n := 0
	for _, p := range r.slots {
		if p.Connected() {
			n++
		}
	}
	return n
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}
