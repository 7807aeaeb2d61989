package transport

import (
	"fmt"
	"net"
	"time"
)

// ApplySocketOptions disables Nagle's algorithm via TCP_NODELAY, since
// the protocol is a tight request/ack loop that benefits from low latency
// over batching small writes, and seeds a read/write deadline from
// DefaultTimeout. SO_REUSEADDR is handled by net.Listen on every platform
// Go supports, so it is not set again here via raw syscalls.
func ApplySocketOptions(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return fmt.Errorf("setting TCP_NODELAY: %w", err)
	}
	if err := SetDeadline(conn, DefaultTimeout); err != nil {
		return err
	}
	return nil
}

// SetDeadline pushes conn's read and write deadline d out from now. The
// sender and receiver state machines call this again before each blocking
// read or write so a single
// slow peer doesn't consume the whole budget across an entire transfer.
func SetDeadline(conn net.Conn, d time.Duration) error {
	if err := conn.SetDeadline(time.Now().Add(d)); err != nil {
		return fmt.Errorf("setting socket deadline: %w", err)
	}
	return nil
}
