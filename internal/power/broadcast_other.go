//go:build !unix

package power

import "syscall"

func enableBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
