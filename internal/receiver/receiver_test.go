package receiver

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"testing"

	"github.com/filexfer/filexfer/internal/fsio"
	"github.com/filexfer/filexfer/internal/protocol"
)

func newTestSink(dir, name string) (*fsio.Sink, error) {
	return fsio.NewSink(dir, name)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return b
}

func TestHandshake_Success(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		protocol.WriteHandshake(clientConn, protocol.MsgHandshakeReq, 0, protocol.HandshakePayload{Version: protocol.ProtocolVersion})
		protocol.ReadExpected(clientConn, protocol.MsgHandshakeAck)
	}()

	seq, err := handshake(serverConn)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if seq != 1 {
		t.Fatalf("seq = %d, want 1", seq)
	}
}

func TestHandshake_VersionMismatch(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		protocol.WriteHandshake(clientConn, protocol.MsgHandshakeReq, 0, protocol.HandshakePayload{Version: 0x77})
	}()

	_, err := handshake(serverConn)
	var te *protocol.TransferError
	if !errors.As(err, &te) || te.Code != protocol.ErrVersion {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}

func TestAwaitFileInfo(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	fi := protocol.FileInfo{Filename: "notes.txt", FileSize: 10, TotalChunks: 1, ChunkSize: 1024}
	go func() {
		protocol.WriteFileInfo(clientConn, 1, fi)
	}()

	got, err := awaitFileInfo(serverConn)
	if err != nil {
		t.Fatalf("awaitFileInfo: %v", err)
	}
	if got.Filename != fi.Filename || got.FileSize != fi.FileSize {
		t.Fatalf("decoded FileInfo mismatch: %+v", got)
	}
}

func TestReceiveChunks_RetriesOnCorruption(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	dir := t.TempDir()
	sink, err := newTestSink(dir, "out.bin")
	if err != nil {
		t.Fatalf("newTestSink: %v", err)
	}

	data := []byte("abcdefgh")
	fi := protocol.FileInfo{TotalChunks: 1, ChunkSize: uint32(len(data))}

	go func() {
		badPayload := make([]byte, protocol.ChunkHeaderSize+len(data))
		badCh := protocol.ChunkHeader{ChunkID: 0, ChunkSize: uint32(len(data)), ChunkCRC32: 0xBAD}
		copy(badPayload[:protocol.ChunkHeaderSize], protocol.SerializeChunkHeader(badCh))
		copy(badPayload[protocol.ChunkHeaderSize:], data)
		protocol.WriteMessage(clientConn, protocol.MsgChunkData, 1, badPayload)

		h, _, err := protocol.ReadExpected(clientConn, protocol.MsgChunkAck)
		if err != nil || h.MsgType != protocol.MsgChunkAck {
			return
		}

		goodCh := protocol.ChunkHeader{ChunkID: 0, ChunkSize: uint32(len(data)), ChunkCRC32: protocol.CRC32(data)}
		protocol.WriteChunk(clientConn, 2, goodCh, data)
		protocol.ReadExpected(clientConn, protocol.MsgChunkAck)
	}()

	seq := uint64(1)
	logger := testLogger()
	if err := receiveChunks(serverConn, sink, fi, &seq, logger); err != nil {
		t.Fatalf("receiveChunks: %v", err)
	}

	finalPath, err := sink.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got := readFile(t, finalPath)
	if string(got) != string(data) {
		t.Fatalf("committed content = %q, want %q", got, data)
	}
}

func TestReceiveChunks_RejectsOutOfOrderChunkID(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	dir := t.TempDir()
	sink, err := newTestSink(dir, "out.bin")
	if err != nil {
		t.Fatalf("newTestSink: %v", err)
	}
	defer sink.Abort()

	data := []byte("abcdefgh")
	fi := protocol.FileInfo{TotalChunks: 2, ChunkSize: uint32(len(data))}

	go func() {
		// Chunk 1 arrives before chunk 0: a protocol violation even
		// though it passes its own checksum.
		ch := protocol.ChunkHeader{ChunkID: 1, ChunkSize: uint32(len(data)), ChunkCRC32: protocol.CRC32(data)}
		protocol.WriteChunk(clientConn, 1, ch, data)
		protocol.ReadExpected(clientConn, protocol.MsgError)
	}()

	seq := uint64(1)
	logger := testLogger()
	err = receiveChunks(serverConn, sink, fi, &seq, logger)

	var te *protocol.TransferError
	if !errors.As(err, &te) || te.Code != protocol.ErrProtocol {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}
