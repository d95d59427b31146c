//go:build !unix

package transport

import "syscall"

func tuneListener(network, address string, c syscall.RawConn) error { return nil }
func tuneConn(network, address string, c syscall.RawConn) error     { return nil }
