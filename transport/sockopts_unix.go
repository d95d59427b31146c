//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneListener sets SO_REUSEADDR on the root's listening socket so a
// restarted root doesn't wedge on TIME_WAIT, grounded on aistore's
// golang.org/x/sys dependency for low-level socket control.
func tuneListener(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// tuneConn enables TCP keepalive (at the OS default probe period) so a
// wedged peer (half-open connection) is eventually detected, and sets
// TCP_NODELAY.
func tuneConn(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); e != nil {
			sockErr = e
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
