package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const udpBufSize = 4096

// DatagramHandler receives relay traffic on the loop goroutine. port is the
// sender's UDP source port.
type DatagramHandler interface {
	OnDatagram(port int, data []byte)
}

// Endpoint is a bound relay socket as seen by session handlers.
type Endpoint interface {
	WriteToPort(port int, data []byte) error
	Port() int
	Close() error
}

// UDPEndpoint is a relay socket whose datagrams are delivered to a
// DatagramHandler on the event loop. Outbound datagrams always go to the
// configured target host.
type UDPEndpoint struct {
	conn    *net.UDPConn
	port    int
	target  net.IP
	loop    *Loop
	handler DatagramHandler
	closed  atomic.Bool
	stop    chan struct{}
	logger  zerolog.Logger
}

// ListenUDP binds bindHost:port and starts delivering datagrams to handler.
// The endpoint stops when ctx is cancelled or Close is called.
func ListenUDP(ctx context.Context, loop *Loop, bindHost string, port int, targetHost string, handler DatagramHandler) (*UDPEndpoint, error) {
	target := net.ParseIP(targetHost)
	if target == nil {
		return nil, fmt.Errorf("invalid relay target host %q", targetHost)
	}

	addr := &net.UDPAddr{IP: net.ParseIP(bindHost), Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind relay on %s: %w", addr, err)
	}

	e := &UDPEndpoint{
		conn:    conn,
		port:    conn.LocalAddr().(*net.UDPAddr).Port,
		target:  target,
		loop:    loop,
		handler: handler,
		stop:    make(chan struct{}),
		logger: log.With().
			Str("component", "relay_endpoint").
			Int("port", port).
			Logger(),
	}

	go func() {
		select {
		case <-ctx.Done():
			e.Close()
		case <-loop.Done():
			e.Close()
		case <-e.stop:
		}
	}()
	go e.readLoop()

	e.logger.Debug().Str("addr", conn.LocalAddr().String()).Msg("relay endpoint bound")
	return e, nil
}

func (e *UDPEndpoint) readLoop() {
	buf := make([]byte, udpBufSize)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if e.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			e.logger.Debug().Err(err).Msg("relay read error")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		srcPort := from.Port
		ok := e.loop.Post(func() {
			if e.closed.Load() {
				return
			}
			e.handler.OnDatagram(srcPort, data)
		})
		if !ok {
			e.Close()
			return
		}
	}
}

// WriteToPort sends data to targetHost:port.
func (e *UDPEndpoint) WriteToPort(port int, data []byte) error {
	if e.closed.Load() {
		return net.ErrClosed
	}
	_, err := e.conn.WriteToUDP(data, &net.UDPAddr{IP: e.target, Port: port})
	if err != nil {
		return fmt.Errorf("relay write to port %d: %w", port, err)
	}
	return nil
}

// Port returns the bound local port.
func (e *UDPEndpoint) Port() int {
	return e.port
}

// Close releases the socket. Safe to call more than once.
func (e *UDPEndpoint) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	close(e.stop)
	e.logger.Debug().Msg("relay endpoint closed")
	return e.conn.Close()
}
