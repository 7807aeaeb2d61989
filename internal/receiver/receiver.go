// Package receiver implements filexfer-recv's transfer state machine:
// handshake, file info validation, and the chunked download loop with
// checksum-triggered retransmit requests and atomic finalization.
package receiver

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/filexfer/filexfer/internal/fsio"
	"github.com/filexfer/filexfer/internal/protocol"
	"github.com/filexfer/filexfer/internal/transport"
)

// Options configures a single Receive call.
type Options struct {
	OutputDir string
}

// Receive runs the full receiver state machine over conn: handshake, file
// info, then the chunk loop, finishing with an atomic rename into
// OutputDir. It returns a *protocol.TransferError on any terminal fault.
// MSG_ERROR is sent to the peer, best-effort, before returning on a
// rejected filename, a failed or insufficient disk-space check, a failure
// to create the temp file, an out-of-order chunk_id, or a chunk write
// failure; other failures (handshake, read and send errors, finalize)
// return without sending it.
func Receive(conn net.Conn, opts Options, logger *slog.Logger) error {
	seq, err := handshake(conn)
	if err != nil {
		return err
	}

	logger.Info("receiving file info")
	fi, err := awaitFileInfo(conn)
	if err != nil {
		return err
	}
	logger = logger.With("role", "receiver", "file", fi.Filename, "size", fi.FileSize, "chunks", fi.TotalChunks)

	sanitized, err := fsio.SanitizeFilename(fi.Filename)
	if err != nil {
		seq++
		sendError(conn, &seq, protocol.ErrInvalidArg, 0, "invalid filename")
		return protocol.NewTransferError(protocol.ErrInvalidArg, "sanitize_filename", err)
	}

	if ok, err := fsio.HasSpaceFor(opts.OutputDir, fi.FileSize); err != nil {
		seq++
		sendError(conn, &seq, protocol.ErrDiskFull, 0, "disk space check failed")
		return protocol.NewTransferError(protocol.ErrDiskFull, "check_disk_space", err)
	} else if !ok {
		seq++
		sendError(conn, &seq, protocol.ErrDiskFull, 0, "insufficient disk space")
		return protocol.NewTransferError(protocol.ErrDiskFull, "check_disk_space", nil)
	}

	sink, err := fsio.NewSink(opts.OutputDir, sanitized)
	if err != nil {
		seq++
		sendError(conn, &seq, protocol.ErrFileOpen, 0, "cannot create output file")
		return protocol.NewTransferError(protocol.ErrFileOpen, "open_sink", err)
	}

	seq++
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		sink.Abort()
		return protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	if err := protocol.WriteFileAck(conn, seq, protocol.FileAck{Status: protocol.FileAckStatusReady}); err != nil {
		sink.Abort()
		return protocol.NewTransferError(protocol.ErrSend, "send_file_ack", err)
	}

	logger.Info("receiving chunks")
	if err := receiveChunks(conn, sink, fi, &seq, logger); err != nil {
		sink.Abort()
		return err
	}

	finalPath, err := sink.Commit()
	if err != nil {
		return protocol.NewTransferError(protocol.ErrFileWrite, "finalize", err)
	}

	logger.Info("transfer complete", "path", finalPath)
	return nil
}

// handshake performs the server side of the handshake: expect
// MSG_HANDSHAKE_REQ with a matching protocol version, reply with
// MSG_HANDSHAKE_ACK. Returns the sequence number to continue from.
func handshake(conn net.Conn) (uint64, error) {
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		return 0, protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	h, payload, err := protocol.ReadExpected(conn, protocol.MsgHandshakeReq)
	if err != nil {
		return 0, protocol.NewTransferError(protocol.ErrRecv, "recv_handshake", err)
	}
	if h.MsgType == protocol.MsgError {
		return 0, errorFromPeer(payload)
	}
	req, err := protocol.ReadHandshake(payload)
	if err != nil {
		return 0, protocol.NewTransferError(protocol.ErrProtocol, "decode_handshake", err)
	}
	if req.Version != protocol.ProtocolVersion {
		return 0, protocol.NewTransferError(protocol.ErrVersion, "handshake", nil)
	}

	seq := h.SequenceNum + 1
	ack := protocol.HandshakePayload{Version: protocol.ProtocolVersion}
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		return 0, protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	if err := protocol.WriteHandshake(conn, protocol.MsgHandshakeAck, seq, ack); err != nil {
		return 0, protocol.NewTransferError(protocol.ErrSend, "send_handshake_ack", err)
	}
	return seq, nil
}

// awaitFileInfo reads MSG_FILE_INFO.
func awaitFileInfo(conn net.Conn) (protocol.FileInfo, error) {
	if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
		return protocol.FileInfo{}, protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
	}
	h, payload, err := protocol.ReadExpected(conn, protocol.MsgFileInfo)
	if err != nil {
		return protocol.FileInfo{}, protocol.NewTransferError(protocol.ErrRecv, "recv_file_info", err)
	}
	if h.MsgType == protocol.MsgError {
		return protocol.FileInfo{}, errorFromPeer(payload)
	}
	fi, err := protocol.ReadFileInfo(payload)
	if err != nil {
		return protocol.FileInfo{}, protocol.NewTransferError(protocol.ErrProtocol, "decode_file_info", err)
	}
	return fi, nil
}

// receiveChunks reads fi.TotalChunks chunks, writing each to sink and
// acking it. A chunk that fails its CRC check gets a retry ack instead of
// terminating the transfer; a chunk_id that doesn't match the next chunk
// expected is a protocol violation and terminates the transfer, since the
// sender state machine guarantees order and a mismatch means the peer (or
// the connection) is no longer trustworthy.
func receiveChunks(conn net.Conn, sink *fsio.Sink, fi protocol.FileInfo, seq *uint64, logger *slog.Logger) error {
	received := uint64(0)
	for received < fi.TotalChunks {
		if err := transport.SetDeadline(conn, transport.DefaultTimeout); err != nil {
			return protocol.NewTransferError(protocol.ErrSocket, "set_deadline", err)
		}
		h, payload, err := protocol.ReadExpected(conn, protocol.MsgChunkData)
		if err != nil {
			return protocol.NewTransferError(protocol.ErrRecv, "recv_chunk", err)
		}
		if h.MsgType == protocol.MsgError {
			return errorFromPeer(payload)
		}

		ch, data, err := protocol.ReadChunk(payload)
		if err != nil {
			*seq++
			if werr := protocol.WriteChunkAck(conn, *seq, protocol.ChunkAck{ChunkID: ch.ChunkID, Status: protocol.ChunkStatusRetry}); werr != nil {
				return protocol.NewTransferError(protocol.ErrSend, "send_retry_ack", werr)
			}
			continue
		}

		if ch.ChunkID != received {
			*seq++
			sendError(conn, seq, protocol.ErrProtocol, ch.ChunkID, "out-of-order chunk_id")
			return protocol.NewTransferError(protocol.ErrProtocol, "chunk_order", fmt.Errorf("got chunk_id %d, want %d", ch.ChunkID, received))
		}

		if err := sink.WriteChunk(ch.ChunkOffset, data); err != nil {
			*seq++
			sendError(conn, seq, protocol.ErrFileWrite, ch.ChunkID, "write failed")
			return protocol.NewTransferError(protocol.ErrFileWrite, "write_chunk", err)
		}

		*seq++
		if err := protocol.WriteChunkAck(conn, *seq, protocol.ChunkAck{ChunkID: ch.ChunkID, Status: protocol.ChunkStatusOK}); err != nil {
			return protocol.NewTransferError(protocol.ErrSend, "send_chunk_ack", err)
		}

		received++
		if fi.TotalChunks > 0 && received%(fi.TotalChunks/10+1) == 0 {
			logger.Info("progress", "received_chunks", received, "total_chunks", fi.TotalChunks)
		}
	}
	return nil
}

// sendError best-efforts an MSG_ERROR to the peer before the caller
// returns a terminal failure. Send failures here are intentionally
// swallowed: the connection is already being torn down. The message goes
// out at *seq, which the caller has already advanced.
func sendError(conn net.Conn, seq *uint64, code protocol.ErrorCode, chunkID uint64, message string) {
	_ = protocol.WriteError(conn, *seq, protocol.ErrorMessage{ErrorCode: code, ChunkID: chunkID, Message: message})
}

// errorFromPeer decodes an MSG_ERROR payload into a *protocol.TransferError.
func errorFromPeer(payload []byte) error {
	em, err := protocol.ReadErrorMessage(payload)
	if err != nil {
		return protocol.NewTransferError(protocol.ErrProtocol, "decode_error_message", err)
	}
	return &protocol.TransferError{Code: em.ErrorCode, Op: "peer_reported_error", ChunkID: em.ChunkID, Err: fmt.Errorf("%s", em.Message)}
}
