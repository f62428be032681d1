// Package session implements the mock lobby: the player roster, the
// GameState-driven state machine that tells game clients to host, join and
// connect to each other, and the per-player MP relays.
//
// Everything in this package runs on the network event loop and is not safe
// for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/gpgnet-mock/internal/config"
	"github.com/energizer-project/gpgnet-mock/internal/events"
	"github.com/energizer-project/gpgnet-mock/internal/network"
	"github.com/energizer-project/gpgnet-mock/internal/protocol"
	"github.com/energizer-project/gpgnet-mock/internal/recorder"
)

var (
	// ErrWrongState means a GameState transition is not allowed from the
	// player's current state.
	ErrWrongState = errors.New("state transition not allowed")

	// ErrTerminated means the session has shut down.
	ErrTerminated = errors.New("session terminated")
)

// CreateLobby arguments that never change in this harness.
const (
	lobbyInitMode  = 0
	lobbyOfferMode = 1
)

// RelayOpener binds a player's relay endpoint and delivers its datagrams to h.
type RelayOpener func(p *Player, h network.DatagramHandler) (network.Endpoint, error)

// TerminateFunc is called once when the session ends. fatal is set when the
// session could not continue, as opposed to the host leaving.
type TerminateFunc func(reason string, fatal bool)

// Session is one host-owned game lobby.
type Session struct {
	id            string
	scenario      string
	advertiseHost string
	syntheticAck  bool
	targetHost    string

	registry    *Registry
	bus         *events.EventBus
	rec         recorder.Recorder
	openRelay   RelayOpener
	onTerminate TerminateFunc

	startedAt  time.Time
	terminated bool
	reason     string
	logger     zerolog.Logger
}

// NewSession creates a session for cfg's roster. Events go to bus, which
// also supplies the session id.
func NewSession(cfg *config.Config, bus *events.EventBus, openRelay RelayOpener) *Session {
	s := &Session{
		id:            bus.SessionID(),
		scenario:      cfg.GPGNet.Scenario,
		advertiseHost: cfg.GPGNet.AdvertiseHost,
		syntheticAck:  cfg.Relay.SyntheticAck,
		targetHost:    cfg.Relay.TargetHost,
		registry:      NewRegistry(cfg.Players),
		bus:           bus,
		rec:           recorder.Nop{},
		openRelay:     openRelay,
		startedAt:     time.Now(),
	}
	s.logger = log.With().
		Str("component", "session").
		Str("session_id", s.id).
		Logger()
	return s
}

// SetRecorder routes every observed transport header to rec.
func (s *Session) SetRecorder(rec recorder.Recorder) {
	s.rec = rec
}

// OnTerminate registers the shutdown callback.
func (s *Session) OnTerminate(fn TerminateFunc) {
	s.onTerminate = fn
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the player roster.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Terminated reports whether the session has ended.
func (s *Session) Terminated() bool {
	return s.terminated
}

// Accept claims a roster slot for a new control connection.
func (s *Session) Accept(conn network.Conn) (network.Handler, error) {
	if s.terminated {
		return nil, ErrTerminated
	}
	p, err := s.registry.Allocate(conn)
	if err != nil {
		return nil, err
	}
	return newControlHandler(s, p, conn), nil
}

// HandleCommand applies one inbound command from p's game client. An error
// means the client violated the protocol and its connection must be closed.
func (s *Session) HandleCommand(p *Player, cmd protocol.Command) error {
	logger := s.playerLogger(p)
	logger.Debug().Str("cmd", cmd.String()).Msg("command received")

	switch cmd.Name {
	case protocol.CmdGameState:
		arg, ok := cmd.StringArg(0)
		if !ok {
			return fmt.Errorf("%w: %s without a state argument", protocol.ErrProtocol, cmd.Name)
		}
		state, ok := ParseGameState(arg)
		if !ok {
			logger.Warn().Str("state", arg).Msg("ignoring unknown game state")
			return nil
		}
		return s.setState(p, state)
	default:
		logger.Debug().Str("cmd", cmd.Name).Msg("command ignored")
		return nil
	}
}

func (s *Session) setState(p *Player, state GameState) error {
	switch state {
	case StateIdle:
		return s.enterIdle(p)
	case StateLobby:
		return s.enterLobby(p)
	case StateLaunching:
		if p.State != StateLobby && p.State != StateLaunching {
			return fmt.Errorf("%w: %s -> %s", ErrWrongState, p.State, state)
		}
	case StateEnded:
		if p.State < StateLobby {
			return fmt.Errorf("%w: %s -> %s", ErrWrongState, p.State, state)
		}
	}
	s.transition(p, state)
	return nil
}

// enterIdle asks the client to open its lobby and binds its relay.
func (s *Session) enterIdle(p *Player) error {
	if p.State == StateIdle {
		return nil
	}
	if p.State != StateNone && p.State != StateLobby {
		return fmt.Errorf("%w: %s -> %s", ErrWrongState, p.State, StateIdle)
	}

	s.send(p, protocol.BuildCreateLobby(lobbyInitMode, uint32(p.LobbyPort), p.Name, p.ID, lobbyOfferMode))

	if p.Relay == nil {
		ep, err := s.openRelay(p, newRelayProxy(s, p))
		if err != nil {
			logger := s.playerLogger(p)
			logger.Error().Err(err).Int("port", p.ProxyPort).Msg("failed to open relay")
			s.Terminate(fmt.Sprintf("relay for player %d failed to bind", p.ID), true)
			return fmt.Errorf("%w: open relay on port %d: %w", ErrTerminated, p.ProxyPort, err)
		}
		p.Relay = ep
		s.emit(events.EventRelayOpened, events.RelayPayload{PlayerID: p.ID, Port: ep.Port()})
	}

	s.transition(p, StateIdle)
	return nil
}

// enterLobby has the host start the game, or has a joiner join the host.
func (s *Session) enterLobby(p *Player) error {
	if p.State == StateLobby {
		return nil
	}
	if p.State != StateIdle {
		return fmt.Errorf("%w: %s -> %s", ErrWrongState, p.State, StateLobby)
	}
	s.transition(p, StateLobby)

	if p.Host {
		s.send(p, protocol.BuildHostGame(s.scenario))
		return nil
	}

	host := s.registry.Host()
	if host == nil || !host.Connected() {
		logger := s.playerLogger(p)
		logger.Warn().Msg("host not connected, cannot join")
		return nil
	}

	s.send(host, protocol.BuildConnectToPeer(p.RelayAddr(s.advertiseHost), p.Name, p.ID))
	host.Peers.Add(p.ID)
	s.emit(events.EventPeerIntroduced, events.PeerPayload{
		PlayerID: host.ID,
		PeerID:   p.ID,
		Address:  p.RelayAddr(s.advertiseHost),
	})

	s.send(p, protocol.BuildJoinGame(host.RelayAddr(s.advertiseHost), host.Name, host.ID))
	return nil
}

func (s *Session) transition(p *Player, to GameState) {
	from := p.State
	if from == to {
		return
	}
	p.State = to
	logger := s.playerLogger(p)
	logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("game state changed")
	s.emit(events.EventGameStateChanged, events.GameStatePayload{
		PlayerID: p.ID,
		From:     from.String(),
		To:       to.String(),
	})
}

// Introduce tells p about the first lobby peer in slot order it has not been
// introduced to yet. At most one introduction per call.
func (s *Session) Introduce(p *Player) bool {
	if s.terminated || !p.Connected() || p.State != StateLobby {
		return false
	}

	for _, peer := range s.registry.Peers(p) {
		if !peer.Connected() || peer.State != StateLobby || p.Peers.Has(peer.ID) {
			continue
		}

		addr := peer.RelayAddr(s.advertiseHost)
		s.send(p, protocol.BuildConnectToPeer(addr, peer.Name, peer.ID))
		p.Peers.Add(peer.ID)
		s.emit(events.EventPeerIntroduced, events.PeerPayload{
			PlayerID: p.ID,
			PeerID:   peer.ID,
			Address:  addr,
		})
		return true
	}
	return false
}

// Tick runs one introduction pass over every player in slot order.
func (s *Session) Tick() {
	for _, p := range s.registry.Players() {
		s.Introduce(p)
	}
}

// Disconnect withdraws p from every peer it is linked with, in either
// direction, and frees its slot. The host leaving ends the session.
func (s *Session) Disconnect(p *Player) {
	if !p.Connected() {
		return
	}
	logger := s.playerLogger(p)

	if !s.terminated {
		addr := p.RelayAddr(s.advertiseHost)
		for _, peer := range s.registry.Peers(p) {
			if !p.Peers.Has(peer.ID) && !peer.Peers.Has(p.ID) {
				continue
			}
			if peer.Connected() {
				s.send(peer, protocol.BuildDisconnectFromPeer(addr, p.Name, p.ID))
			}
			p.Peers.Remove(peer.ID)
			peer.Peers.Remove(p.ID)
		}
	}

	host := p.Host
	s.registry.Release(p)
	logger.Info().Msg("player disconnected")
	s.emit(events.EventPlayerDisconnected, events.PlayerPayload{PlayerID: p.ID, Name: p.Name, Host: host})

	if host {
		s.Terminate("host disconnected", false)
	}
}

// Terminate closes every relay and control connection and fires the
// shutdown callback. Only the first call has any effect.
func (s *Session) Terminate(reason string, fatal bool) {
	if s.terminated {
		return
	}
	s.terminated = true
	s.reason = reason

	for _, p := range s.registry.Players() {
		if p.Relay != nil {
			p.Relay.Close()
			p.Relay = nil
		}
		if p.Conn != nil {
			p.Conn.Close()
		}
	}

	event := s.logger.Info()
	if fatal {
		event = s.logger.Error()
	}
	event.Str("reason", reason).Msg("session terminated")

	s.emit(events.EventSessionTerminated, events.SessionPayload{Reason: reason, Fatal: fatal})
	if s.onTerminate != nil {
		s.onTerminate(reason, fatal)
	}
}

func (s *Session) send(p *Player, cmd protocol.Command) {
	if p.Conn == nil {
		return
	}
	logger := s.playerLogger(p)
	if err := p.Conn.Send(cmd); err != nil {
		logger.Warn().Err(err).Str("cmd", cmd.Name).Msg("failed to send command")
		return
	}
	logger.Debug().Str("cmd", cmd.String()).Msg("command sent")
	s.emit(events.EventCommandSent, events.CommandPayload{
		PlayerID: p.ID,
		Command:  cmd.Name,
		Args:     cmd.String(),
	})
}

func (s *Session) emit(t events.EventType, payload interface{}) {
	s.bus.Emit(context.Background(), t, payload)
}

func (s *Session) playerLogger(p *Player) zerolog.Logger {
	return s.logger.With().Uint32("player_id", p.ID).Str("player", p.Name).Logger()
}
