package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/filexfer/filexfer/internal/config"
	"github.com/filexfer/filexfer/internal/logging"
	"github.com/filexfer/filexfer/internal/sender"
	"github.com/filexfer/filexfer/internal/throttle"
	"github.com/filexfer/filexfer/internal/transport"
)

const maxConnectAttempts = 5

func main() {
	cfg, err := config.ParseSenderArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "filexfer-send: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(levelFor(cfg.Verbose), cfg.LogFormat, cfg.LogFile)
	defer logCloser.Close()

	ctx := context.Background()
	address := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := transport.ConnectWithRetry(ctx, address, maxConnectAttempts)
	if err != nil {
		logger.Error("connect failed", "address", address, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	opts := sender.Options{
		FilePath:  cfg.FilePath,
		ChunkSize: uint32(cfg.ChunkSize),
		Verbose:   cfg.Verbose,
	}
	if cfg.Bandwidth > 0 {
		bandwidth := cfg.Bandwidth
		opts.Wrap = func(w io.Writer) io.Writer {
			return throttle.NewWriter(ctx, w, bandwidth)
		}
	}

	if err := sender.Send(ctx, conn, opts, logger); err != nil {
		logger.Error("transfer failed", "error", err)
		os.Exit(1)
	}
}

func levelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}
