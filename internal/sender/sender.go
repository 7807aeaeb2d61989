// Package sender implements filexfer-send's transfer state machine:
// handshake, file info exchange, and the chunked upload loop with bounded
// per-chunk retry.
package sender

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/filexfer/filexfer/internal/fsio"
	"github.com/filexfer/filexfer/internal/progress"
	"github.com/filexfer/filexfer/internal/protocol"
	"github.com/filexfer/filexfer/internal/transport"
)

// Options configures a single Send call.
type Options struct {
	FilePath  string
	ChunkSize uint32 // 0 means protocol.DefaultChunkSize
	Verbose   bool
	// Wrap, if set, wraps the raw connection writer (e.g. for bandwidth
	// throttling) before chunk data is written to it.
	Wrap func(io.Writer) io.Writer
}

// Send runs the full sender state machine over conn: handshake, file info,
// then the chunk loop. It returns a *protocol.TransferError on any
// terminal fault, always tagged with the operation's abstract error code.
func Send(ctx context.Context, conn net.Conn, opts Options, logger *slog.Logger) error {
	src, err := fsio.OpenSource(opts.FilePath)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrFileOpen, "open_source", err)
	}
	defer src.Close()

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = protocol.DefaultChunkSize
	}
	totalChunks := (src.Size() + uint64(chunkSize) - 1) / uint64(chunkSize)
	if src.Size() == 0 {
		totalChunks = 0
	}

	logger = logger.With("role", "sender", "file", src.Name(), "size", src.Size(), "chunks", totalChunks)
	logger.Info("starting transfer")

	seq := uint64(0)
	if err := handshake(conn, &seq); err != nil {
		return err
	}

	fi := protocol.FileInfo{
		FilenameLength: uint16(len(src.Name())),
		Filename:       src.Name(),
		FileSize:       src.Size(),
		TotalChunks:    totalChunks,
		ChunkSize:      chunkSize,
		ChecksumType:   protocol.ChecksumCRC32,
		FileMode:       src.Mode(),
		Timestamp:      src.ModTime(),
	}
	logger.Info("sending file info")
	seq++
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		return protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	if err := protocol.WriteFileInfo(conn, seq, fi); err != nil {
		return protocol.NewTransferError(protocol.ErrSend, "send_file_info", err)
	}

	if err := awaitFileAck(conn); err != nil {
		return err
	}

	var reporter *progress.Reporter
	if opts.Verbose {
		reporter = progress.NewReporter("send", totalChunks, src.Size())
	}

	var out io.Writer = conn
	if opts.Wrap != nil {
		out = opts.Wrap(conn)
	}

	chunkBuf := make([]byte, chunkSize)
	var sentBytes uint64
	for chunkID := uint64(0); chunkID < totalChunks; chunkID++ {
		offset := chunkID * uint64(chunkSize)
		expected := uint64(chunkSize)
		if remaining := src.Size() - offset; remaining < expected {
			expected = remaining
		}
		n, err := src.ReadChunk(offset, chunkBuf)
		if err != nil {
			return protocol.NewTransferError(protocol.ErrFileRead, "read_chunk", err)
		}
		if uint64(n) != expected {
			return protocol.NewTransferError(protocol.ErrFileRead, "read_chunk", fmt.Errorf("chunk %d: read %d bytes, want %d (source file shrank?)", chunkID, n, expected))
		}
		data := chunkBuf[:n]

		if err := sendChunkWithRetry(out, conn, &seq, chunkID, offset, data); err != nil {
			return err
		}
		sentBytes += uint64(n)

		if reporter != nil {
			reporter.Update(chunkID+1, sentBytes)
		}
	}

	if reporter != nil {
		reporter.Done(totalChunks, sentBytes)
	}

	logger.Info("transfer complete", "bytes_sent", sentBytes)
	return nil
}

// handshake performs the client side of the handshake: send
// MSG_HANDSHAKE_REQ, expect MSG_HANDSHAKE_ACK with a matching protocol
// version.
func handshake(conn net.Conn, seq *uint64) error {
	hp := protocol.HandshakePayload{Version: protocol.ProtocolVersion}
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		return protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	if err := protocol.WriteHandshake(conn, protocol.MsgHandshakeReq, *seq, hp); err != nil {
		return protocol.NewTransferError(protocol.ErrSend, "send_handshake", err)
	}

	h, payload, err := protocol.ReadExpected(conn, protocol.MsgHandshakeAck)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrRecv, "recv_handshake_ack", err)
	}
	if h.MsgType == protocol.MsgError {
		return errorFromPeer(payload)
	}
	ack, err := protocol.ReadHandshake(payload)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrProtocol, "decode_handshake_ack", err)
	}
	if ack.Version != protocol.ProtocolVersion {
		return protocol.NewTransferError(protocol.ErrVersion, "handshake", nil)
	}
	*seq = h.SequenceNum
	return nil
}

// awaitFileAck reads the receiver's reply to FILE_INFO.
func awaitFileAck(conn net.Conn) error {
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		return protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	h, payload, err := protocol.ReadExpected(conn, protocol.MsgFileAck)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrRecv, "recv_file_ack", err)
	}
	if h.MsgType == protocol.MsgError {
		return errorFromPeer(payload)
	}
	ack, err := protocol.ReadFileAck(payload)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrProtocol, "decode_file_ack", err)
	}
	if ack.Status != protocol.FileAckStatusReady {
		return protocol.NewTransferError(ack.ErrorCode, "file_ack_rejected", nil)
	}
	return nil
}

// sendChunkWithRetry sends one chunk and waits for its ack, making at most
// protocol.MaxChunkRetries attempts in total; a failed send, a failed ack
// read, or a retry-requested ack moves on to the next attempt.
func sendChunkWithRetry(out io.Writer, conn net.Conn, seq *uint64, chunkID, offset uint64, data []byte) error {
	ch := protocol.ChunkHeader{
		ChunkID:     chunkID,
		ChunkOffset: offset,
		ChunkSize:   uint32(len(data)),
		ChunkCRC32:  protocol.CRC32(data),
	}

	var lastErr error
	for attempt := 0; attempt < protocol.MaxChunkRetries; attempt++ {
		*seq++
		if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
			lastErr = err
			continue
		}
		if err := protocol.WriteChunk(out, *seq, ch, data); err != nil {
			lastErr = err
			continue
		}

		if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
			lastErr = err
			continue
		}
		h, payload, err := protocol.ReadExpected(conn, protocol.MsgChunkAck)
		if err != nil {
			lastErr = err
			continue
		}
		if h.MsgType == protocol.MsgError {
			return errorFromPeer(payload)
		}
		ack, err := protocol.ReadChunkAck(payload)
		if err != nil {
			lastErr = err
			continue
		}
		if ack.Status == protocol.ChunkStatusOK {
			return nil
		}
		lastErr = fmt.Errorf("receiver requested retransmit of chunk %d", chunkID)
	}

	return &protocol.TransferError{Code: protocol.ErrSend, Op: "send_chunk", ChunkID: chunkID, Err: lastErr}
}

// errorFromPeer decodes an MSG_ERROR payload into a *protocol.TransferError.
func errorFromPeer(payload []byte) error {
	em, err := protocol.ReadErrorMessage(payload)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrProtocol, "decode_error_message", err)
	}
	return &protocol.TransferError{Code: em.ErrorCode, Op: "peer_reported_error", ChunkID: em.ChunkID, Err: fmt.Errorf("%s", em.Message)}
}
