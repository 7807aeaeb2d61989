// Package transport owns the TCP plumbing filexfer runs the wire protocol
// over: dialing with bounded retry, accepting with backoff on consecutive
// errors, and the socket options it sets explicitly (TCP_NODELAY and a
// read/write deadline; SO_REUSEADDR is left to net.Listen).
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds every blocking read/write and the initial connect
// attempt unless the caller overrides it.
const DefaultTimeout = 60 * time.Second

// dialBackoffInitial and dialBackoffMax bound ConnectWithRetry's
// exponential backoff between connect attempts.
const (
	dialBackoffInitial = 1 * time.Second
	dialBackoffMax     = 16 * time.Second
)

// ConnectWithRetry dials address, retrying up to maxAttempts times with
// exponential backoff (capped at dialBackoffMax) between attempts. The
// sender is expected to start before the receiver is necessarily
// listening, so a handful of retries absorbs that race without the
// caller needing its own loop.
func ConnectWithRetry(ctx context.Context, address string, maxAttempts int) (net.Conn, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := dialBackoffInitial
	var lastErr error
	dialer := &net.Dialer{Timeout: DefaultTimeout}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if err := ApplySocketOptions(tcpConn); err != nil {
					tcpConn.Close()
					return nil, fmt.Errorf("applying socket options: %w", err)
				}
			}
			return conn, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > dialBackoffMax {
			delay = dialBackoffMax
		}
	}
	return nil, fmt.Errorf("connecting to %s after %d attempts: %w", address, maxAttempts, lastErr)
}

// Listen binds address and returns a *net.TCPListener with SO_REUSEADDR
// applied.
func Listen(address string) (*net.TCPListener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", address, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, errors.New("transport: listener is not a *net.TCPListener")
	}
	return tcpLn, nil
}

// Accept waits for and returns the next connection on ln with socket
// options applied. The receiver's accept loop calls this once per
// revision's single-transfer scope (no concurrent sessions).
func Accept(ln *net.TCPListener) (net.Conn, error) {
	conn, err := ln.AcceptTCP()
	if err != nil {
		return nil, fmt.Errorf("accepting connection: %w", err)
	}
	if err := ApplySocketOptions(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying socket options: %w", err)
	}
	return conn, nil
}

// IsTransient reports whether err is the kind of accept-time failure the
// receiver's accept loop should back off and retry on, rather than treat
// as fatal.
func IsTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// AcceptBackoff returns the delay the accept loop should sleep after
// consecutiveErrors transient failures, capped at 5 seconds.
func AcceptBackoff(consecutiveErrors int) time.Duration {
	delay := time.Duration(consecutiveErrors) * 100 * time.Millisecond
	if delay > 5*time.Second {
		delay = 5 * time.Second
	}
	return delay
}
