package network

import (
	"net"
	"syscall"
)

// ReuseAddrListenConfig returns a ListenConfig that sets SO_REUSEADDR before
// binding, so a restarted harness can take its TCP port back while the
// previous run's sockets are still in TIME_WAIT.
func ReuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) { opErr = setReuseAddr(fd) }); err != nil {
				return err
			}
			return opErr
		},
	}
}
