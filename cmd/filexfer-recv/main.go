package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/filexfer/filexfer/internal/config"
	"github.com/filexfer/filexfer/internal/logging"
	"github.com/filexfer/filexfer/internal/receiver"
	"github.com/filexfer/filexfer/internal/transport"
)

func main() {
	cfg, err := config.ParseReceiverArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "filexfer-recv: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(levelFor(cfg.Verbose), cfg.LogFormat, cfg.LogFile)
	defer logCloser.Close()

	address := net.JoinHostPort("", fmt.Sprintf("%d", cfg.Port))
	ln, err := transport.Listen(address)
	if err != nil {
		logger.Error("listen failed", "address", address, "error", err)
		os.Exit(1)
	}
	defer ln.Close()

	logger.Info("listening", "address", ln.Addr().String(), "output_dir", cfg.OutputDir)

	conn, err := acceptOne(ln, logger)
	if err != nil {
		logger.Error("accept failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("connection accepted", "remote", conn.RemoteAddr().String())

	if err := receiver.Receive(conn, receiver.Options{OutputDir: cfg.OutputDir}, logger); err != nil {
		logger.Error("transfer failed", "error", err)
		os.Exit(1)
	}
}

// acceptOne waits for the single inbound connection this revision serves,
// backing off on consecutive transient accept errors, and returns on the
// first successful accept rather than looping forever: this revision
// serves one transfer per process lifetime.
func acceptOne(ln *net.TCPListener, logger *slog.Logger) (net.Conn, error) {
	consecutiveErrors := 0
	for {
		conn, err := transport.Accept(ln)
		if err != nil {
			if !transport.IsTransient(err) {
				return nil, err
			}
			consecutiveErrors++
			logger.Warn("accepting connection", "error", err, "consecutive_errors", consecutiveErrors)
			if consecutiveErrors > 5 {
				return nil, err
			}
			time.Sleep(transport.AcceptBackoff(consecutiveErrors))
			continue
		}
		return conn, nil
	}
}

func levelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}
