package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/gpgnet-mock/internal/protocol"
)

// WriteTimeout bounds a single control-connection write.
const WriteTimeout = 10 * time.Second

// Conn is the outbound side of a GPGNet control connection as seen by
// session handlers.
type Conn interface {
	Send(cmd protocol.Command) error
	Close() error
	RemoteAddr() string
}

// Handler receives the lifecycle of one control connection. All methods run
// on the loop goroutine; OnClose is delivered exactly once.
type Handler interface {
	Ticker
	OnOpen()
	OnReadable(data []byte)
	OnClose()
}

// Acceptor creates the handler for a freshly accepted connection. Returning
// an error refuses the connection, which is then closed.
type Acceptor interface {
	Accept(conn Conn) (Handler, error)
}

// Connection wraps a TCP control connection from a game client.
type Connection struct {
	mu     sync.Mutex
	conn   net.Conn
	logger zerolog.Logger

	connectedAt  time.Time
	lastActivity time.Time

	closed bool
}

// NewConnection wraps an existing net.Conn.
func NewConnection(conn net.Conn) *Connection {
	now := time.Now()
	return &Connection{
		conn:         conn,
		connectedAt:  now,
		lastActivity: now,
		logger: log.With().
			Str("component", "connection").
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// Send encodes cmd and writes it to the peer.
func (c *Connection) Send(cmd protocol.Command) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Name, err)
	}
	return c.Write(data)
}

// Write sends raw bytes through the connection.
func (c *Connection) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}

	c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}

	c.logger.Trace().Hex("bytes", data).Msg("sent")
	c.lastActivity = time.Now()
	return nil
}

// read blocks for the next chunk of inbound bytes.
func (c *Connection) read(buf []byte) (int, error) {
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.mu.Lock()
		c.lastActivity = time.Now()
		c.mu.Unlock()
		c.logger.Trace().Hex("bytes", buf[:n]).Msg("received")
	}
	return n, err
}

// Close closes the connection. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// IsClosed returns whether the connection has been closed locally.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastActivity returns the time of the last read/write activity.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ConnectedAt returns the time the connection was established.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
