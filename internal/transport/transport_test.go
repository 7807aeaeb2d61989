package transport

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestListenAcceptConnectRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverErr := make(chan error, 1)
	received := make(chan string, 1)
	go func() {
		conn, err := Accept(ln)
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			serverErr <- err
			return
		}
		received <- string(buf)
		serverErr <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := ConnectWithRetry(ctx, ln.Addr().String(), 3)
	if err != nil {
		t.Fatalf("ConnectWithRetry: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := <-serverErr; err != nil {
		t.Fatalf("server goroutine: %v", err)
	}
	if got := <-received; got != "hello" {
		t.Fatalf("received %q, want %q", got, "hello")
	}
}

func TestConnectWithRetryFailsAfterAttempts(t *testing.T) {
	// Bind and immediately close so the port is (almost certainly) refused.
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = ConnectWithRetry(ctx, addr, 2)
	if err == nil {
		t.Fatal("expected connection to a closed listener to fail")
	}
}

func TestAcceptBackoffCaps(t *testing.T) {
	if d := AcceptBackoff(1000); d != 5*time.Second {
		t.Fatalf("AcceptBackoff(1000) = %v, want capped at 5s", d)
	}
	if d := AcceptBackoff(1); d != 100*time.Millisecond {
		t.Fatalf("AcceptBackoff(1) = %v, want 100ms", d)
	}
}
