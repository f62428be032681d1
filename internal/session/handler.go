package session

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/energizer-project/gpgnet-mock/internal/events"
	"github.com/energizer-project/gpgnet-mock/internal/network"
	"github.com/energizer-project/gpgnet-mock/internal/protocol"
)

// controlHandler drives one game client's GPGNet connection.
type controlHandler struct {
	session *Session
	player  *Player
	conn    network.Conn
	decoder protocol.Decoder
	closed  bool
	logger  zerolog.Logger
}

func newControlHandler(s *Session, p *Player, conn network.Conn) *controlHandler {
	return &controlHandler{
		session: s,
		player:  p,
		conn:    conn,
		logger:  s.playerLogger(p).With().Str("remote", conn.RemoteAddr()).Logger(),
	}
}

func (h *controlHandler) OnOpen() {
	h.logger.Info().Int("slot", h.player.Slot()).Bool("host", h.player.Host).Msg("player connected")
	h.session.emit(events.EventPlayerConnected, events.PlayerPayload{
		PlayerID: h.player.ID,
		Name:     h.player.Name,
		Host:     h.player.Host,
		Remote:   h.conn.RemoteAddr(),
	})
}

func (h *controlHandler) OnReadable(data []byte) {
	if h.closed {
		return
	}
	h.decoder.Feed(data)

	for !h.closed {
		cmd, err := h.decoder.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			return
		}
		if err != nil {
			h.violation(err)
			return
		}
		if err := h.session.HandleCommand(h.player, cmd); err != nil {
			if errors.Is(err, ErrTerminated) {
				h.shutdown(err)
			} else {
				h.violation(err)
			}
			return
		}
	}
}

// shutdown drops the connection of a session that has already terminated.
func (h *controlHandler) shutdown(err error) {
	h.logger.Debug().Err(err).Msg("session terminated, closing connection")
	h.closed = true
	h.conn.Close()
}

// violation drops the connection; OnClose then releases the player.
func (h *controlHandler) violation(err error) {
	h.logger.Warn().Err(err).Msg("protocol violation, closing connection")
	h.closed = true
	h.conn.Close()
}

func (h *controlHandler) OnClose() {
	h.closed = true
	if n := h.decoder.Buffered(); n > 0 {
		h.logger.Debug().Int("bytes", n).Msg("connection closed mid-command")
	}
	if h.player.Conn == h.conn {
		h.session.Disconnect(h.player)
	}
}

func (h *controlHandler) OnTick() {
	if !h.closed {
		h.session.Introduce(h.player)
	}
}
