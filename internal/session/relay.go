package session

import (
	"github.com/rs/zerolog"

	"github.com/energizer-project/gpgnet-mock/internal/config"
	"github.com/energizer-project/gpgnet-mock/internal/protocol"
	"github.com/energizer-project/gpgnet-mock/internal/recorder"
)

// relayPortOffset separates a game port from the relay port paired with it.
const relayPortOffset = 1000

// RelayStats counts what a player's relay did with its traffic.
type RelayStats struct {
	Forwarded   uint64 `json:"forwarded"`
	Synthesized uint64 `json:"synthesized"`
	Suppressed  uint64 `json:"suppressed"`
	Undecodable uint64 `json:"undecodable"`
	Failed      uint64 `json:"failed"`
}

// relayProxy handles the datagrams arriving on one player's relay endpoint.
// Traffic from a port below config.RelayPortThreshold comes from a game
// process and is passed on to the paired relay port; anything else comes
// from a peer relay and goes back down to the game port.
type relayProxy struct {
	session *Session
	player  *Player
	logger  zerolog.Logger
}

func newRelayProxy(s *Session, p *Player) *relayProxy {
	return &relayProxy{
		session: s,
		player:  p,
		logger:  s.playerLogger(p).With().Str("component", "relay").Logger(),
	}
}

// OnDatagram implements network.DatagramHandler.
func (r *relayProxy) OnDatagram(port int, data []byte) {
	p := r.player
	if p.Relay == nil {
		return
	}

	h, err := protocol.DecodeMP(data)
	if err != nil {
		p.Stats.Undecodable++
		r.logger.Debug().Err(err).Int("port", port).Int("size", len(data)).Msg("undecodable datagram")
	}
	decoded := err == nil

	if port < config.RelayPortThreshold {
		if decoded && !r.fromGame(port, h) {
			return
		}
		r.forward(port+relayPortOffset, data)
		return
	}

	if decoded {
		r.record(recorder.FromPeer, port, h)
		p.History.Push(h)
	}
	r.forward(port-relayPortOffset, data)
}

// fromGame tracks the game's serials and short-circuits acknowledgements.
// It reports whether the frame should still be forwarded.
func (r *relayProxy) fromGame(port int, h protocol.MPHeader) bool {
	p := r.player
	r.record(recorder.FromGame, port, h)

	if h.Serial > p.NextSerial {
		p.NextSerial = h.Serial
	}

	if !r.session.syntheticAck || h.IRT == 0 {
		return true
	}

	switch h.Type {
	case protocol.MPAck:
		if _, ok := p.History.ResolveLineage(h.IRT); ok {
			p.Stats.Suppressed++
			r.logger.Trace().Stringer("header", h).Msg("ack suppressed")
			return false
		}
	case protocol.MPData:
		if _, ok := p.History.ResolveLineage(h.IRT); ok {
			ack := protocol.BuildSyntheticAck(h, p.NextSerial)
			if err := p.Relay.WriteToPort(port, ack.Encode()); err != nil {
				p.Stats.Failed++
				r.logger.Debug().Err(err).Int("port", port).Msg("failed to send synthetic ack")
			} else {
				p.Stats.Synthesized++
				r.logger.Trace().Stringer("header", ack).Msg("synthetic ack sent")
			}
		}
	}
	return true
}

func (r *relayProxy) forward(port int, data []byte) {
	if err := r.player.Relay.WriteToPort(port, data); err != nil {
		r.player.Stats.Failed++
		r.logger.Debug().Err(err).Int("port", port).Msg("forward failed")
		return
	}
	r.player.Stats.Forwarded++
}

func (r *relayProxy) record(dir recorder.Direction, port int, h protocol.MPHeader) {
	r.logger.Trace().Str("dir", string(dir)).Int("port", port).Stringer("header", h).Msg("header")
	if err := r.session.rec.Record(recorder.NewEntry(r.player.ID, dir, port, h)); err != nil {
		r.logger.Debug().Err(err).Msg("failed to record header")
	}
}
