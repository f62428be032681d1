package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/gpgnet-mock/internal/util"
)

const readBufferSize = 4096

// ControlListener accepts GPGNet control connections and feeds their bytes
// to handlers on the event loop.
type ControlListener struct {
	addr     string
	loop     *Loop
	acceptor Acceptor
	listener net.Listener
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[*Connection]struct{}
	wg    sync.WaitGroup
}

// NewControlListener creates a listener for host:port. Port 0 picks a free port.
func NewControlListener(host string, port int, loop *Loop, acceptor Acceptor) *ControlListener {
	return &ControlListener{
		addr:     net.JoinHostPort(host, fmt.Sprint(port)),
		loop:     loop,
		acceptor: acceptor,
		conns:    make(map[*Connection]struct{}),
		logger:   util.ComponentLogger("control_listener"),
	}
}

// Listen binds the TCP socket.
func (l *ControlListener) Listen(ctx context.Context) error {
	// SO_REUSEADDR allows immediate rebinding after a restart
	lc := ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start control listener on %s: %w", l.addr, err)
	}
	l.listener = ln
	l.logger.Info().Str("addr", ln.Addr().String()).Msg("control listener started")
	return nil
}

// Addr returns the bound address. Valid after Listen.
func (l *ControlListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener closes.
func (l *ControlListener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	for {
		raw, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info().Msg("control listener stopping")
				l.wg.Wait()
				return nil
			}
			l.logger.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		l.logger.Debug().Str("remote", raw.RemoteAddr().String()).Msg("new control connection")

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConnection(ctx, raw)
		}()
	}
}

// handleConnection asks the acceptor for a handler on the loop, then pumps
// inbound bytes to it until the socket fails.
func (l *ControlListener) handleConnection(ctx context.Context, raw net.Conn) {
	conn := NewConnection(raw)
	l.track(conn, true)
	defer l.track(conn, false)

	var handler Handler
	var acceptErr error
	err := l.loop.Do(ctx, func() {
		handler, acceptErr = l.acceptor.Accept(conn)
		if acceptErr != nil {
			return
		}
		l.loop.AddTicker(handler)
		handler.OnOpen()
	})
	if err != nil {
		conn.Close()
		return
	}
	if acceptErr != nil {
		l.logger.Warn().Err(acceptErr).Str("remote", conn.RemoteAddr()).Msg("connection refused")
		conn.Close()
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !l.loop.Post(func() { handler.OnReadable(data) }) {
				conn.Close()
				return
			}
		}
		if err != nil {
			if !conn.IsClosed() {
				l.logger.Debug().
					Err(err).
					Str("remote", conn.RemoteAddr()).
					Dur("duration", time.Since(conn.ConnectedAt())).
					Time("last_activity", conn.LastActivity()).
					Msg("control connection ended")
			}
			break
		}
	}

	conn.Close()
	l.loop.Post(func() {
		l.loop.RemoveTicker(handler)
		handler.OnClose()
	})
}

func (l *ControlListener) track(conn *Connection, add bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if add {
		l.conns[conn] = struct{}{}
	} else {
		delete(l.conns, conn)
	}
}

// Count returns the number of open control connections.
func (l *ControlListener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Stop closes the listener and every open connection.
func (l *ControlListener) Stop() error {
	l.mu.Lock()
	for conn := range l.conns {
		conn.Close()
	}
	l.mu.Unlock()

	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
