package session

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/energizer-project/gpgnet-mock/internal/config"
	"github.com/energizer-project/gpgnet-mock/internal/events"
	"github.com/energizer-project/gpgnet-mock/internal/network"
	"github.com/energizer-project/gpgnet-mock/internal/protocol"
	"github.com/energizer-project/gpgnet-mock/internal/recorder"
)

type fakeConn struct {
	remote string
	sent   []protocol.Command
	closed bool
}

func (c *fakeConn) Send(cmd protocol.Command) error {
	if c.closed {
		return net.ErrClosed
	}
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.remote }

// named returns the sent commands called name.
func (c *fakeConn) named(name string) []protocol.Command {
	var out []protocol.Command
	for _, cmd := range c.sent {
		if cmd.Name == name {
			out = append(out, cmd)
		}
	}
	return out
}

type datagramWrite struct {
	port int
	data []byte
}

type fakeEndpoint struct {
	port   int
	writes []datagramWrite
	closed bool
}

func (e *fakeEndpoint) WriteToPort(port int, data []byte) error {
	if e.closed {
		return net.ErrClosed
	}
	e.writes = append(e.writes, datagramWrite{port: port, data: append([]byte(nil), data...)})
	return nil
}

func (e *fakeEndpoint) Port() int    { return e.port }
func (e *fakeEndpoint) Close() error { e.closed = true; return nil }

type fakeRelays struct {
	endpoints map[uint32]*fakeEndpoint
	handlers  map[uint32]network.DatagramHandler
	opens     int
	fail      map[uint32]bool
}

func (f *fakeRelays) open(p *Player, h network.DatagramHandler) (network.Endpoint, error) {
	if f.fail[p.ID] {
		return nil, fmt.Errorf("bind :%d: address already in use", p.ProxyPort)
	}
	f.opens++
	ep := &fakeEndpoint{port: p.ProxyPort}
	f.endpoints[p.ID] = ep
	f.handlers[p.ID] = h
	return ep, nil
}

type memRecorder struct {
	entries []recorder.Entry
}

func (m *memRecorder) Record(e recorder.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) Close() error { return nil }

type termination struct {
	reason string
	fatal  bool
}

type client struct {
	player  *Player
	conn    *fakeConn
	handler network.Handler
}

type harness struct {
	t            *testing.T
	session      *Session
	relays       *fakeRelays
	terminations []termination
}

func roster(n int) []config.PlayerConfig {
	players := make([]config.PlayerConfig, n)
	for i := range players {
		players[i] = config.PlayerConfig{
			ID:        uint32(i + 1),
			Name:      fmt.Sprintf("player%d", i+1),
			LobbyPort: 6123 + i,
			ProxyPort: 7123 + i,
			Host:      i == 0,
		}
	}
	return players
}

func newHarness(t *testing.T, players int, syntheticAck bool) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Players = roster(players)
	cfg.Relay.SyntheticAck = syntheticAck

	bus := events.NewEventBus("test-session")
	t.Cleanup(bus.Stop)

	h := &harness{
		t: t,
		relays: &fakeRelays{
			endpoints: make(map[uint32]*fakeEndpoint),
			handlers:  make(map[uint32]network.DatagramHandler),
			fail:      make(map[uint32]bool),
		},
	}
	h.session = NewSession(cfg, bus, h.relays.open)
	h.session.OnTerminate(func(reason string, fatal bool) {
		h.terminations = append(h.terminations, termination{reason: reason, fatal: fatal})
	})
	return h
}

func (h *harness) connect() *client {
	h.t.Helper()
	conn := &fakeConn{remote: fmt.Sprintf("127.0.0.1:%d", 50000+h.session.Registry().Connected())}
	handler, err := h.session.Accept(conn)
	require.NoError(h.t, err)
	handler.OnOpen()
	return &client{
		player:  handler.(*controlHandler).player,
		conn:    conn,
		handler: handler,
	}
}

func (c *client) send(t *testing.T, cmd protocol.Command) {
	t.Helper()
	data, err := protocol.EncodeCommand(cmd)
	require.NoError(t, err)
	c.handler.OnReadable(data)
}

func (c *client) state(t *testing.T, state string) {
	t.Helper()
	c.send(t, protocol.BuildGameState(state))
}

// lobby connects n clients and walks each through Idle and Lobby in slot order.
func (h *harness) lobby(n int) []*client {
	h.t.Helper()
	clients := make([]*client, n)
	for i := range clients {
		clients[i] = h.connect()
		clients[i].state(h.t, protocol.StateIdle)
		clients[i].state(h.t, protocol.StateLobby)
	}
	return clients
}

func (h *harness) tickUntilConverged(max int) int {
	for i := 0; i < max; i++ {
		converged := true
		for _, p := range h.session.Registry().Players() {
			if p.Connected() && len(p.Peers) != h.session.Registry().Connected()-1 {
				converged = false
			}
		}
		if converged {
			return i
		}
		h.session.Tick()
	}
	return max
}

func mp(t protocol.MPType, serial, irt, seq, expected uint16, payload ...byte) protocol.MPHeader {
	return protocol.MPHeader{
		Type:     t,
		Serial:   serial,
		IRT:      irt,
		Seq:      seq,
		Expected: expected,
		Payload:  payload,
	}
}
