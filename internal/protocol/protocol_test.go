package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := MessageHeader{
		Magic:       ProtocolMagic,
		Version:     ProtocolVersion,
		MsgType:     MsgFileInfo,
		Flags:       0,
		SequenceNum: 42,
		PayloadSize: 1024,
	}
	raw := SerializeHeader(h)
	if len(raw) != HeaderSize {
		t.Fatalf("serialized header length = %d, want %d", len(raw), HeaderSize)
	}
	if !HeaderChecksumValid(raw) {
		t.Fatal("freshly serialized header should have a valid checksum")
	}

	got, err := DeserializeHeader(raw)
	if err != nil {
		t.Fatalf("DeserializeHeader: %v", err)
	}
	got.HeaderChecksum = 0 // not part of the logical comparison
	h.HeaderChecksum = 0
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeaderChecksumDetectsCorruption(t *testing.T) {
	h := MessageHeader{Magic: ProtocolMagic, Version: ProtocolVersion, MsgType: MsgChunkData, SequenceNum: 7}
	raw := SerializeHeader(h)
	raw[10] ^= 0xFF // flip every bit of one byte inside sequence_num
	if HeaderChecksumValid(raw) {
		t.Fatal("corrupted header should fail checksum validation")
	}
}

func TestValidateHeaderRejectsBadMagic(t *testing.T) {
	h := MessageHeader{Magic: 0xDEADBEEF, Version: ProtocolVersion, MsgType: MsgHandshakeReq}
	if err := ValidateHeader(h); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestValidateHeaderRejectsBadVersion(t *testing.T) {
	h := MessageHeader{Magic: ProtocolMagic, Version: 0x09, MsgType: MsgHandshakeReq}
	if err := ValidateHeader(h); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected ErrInvalidVersion, got %v", err)
	}
}

func TestValidateHeaderRejectsBadType(t *testing.T) {
	h := MessageHeader{Magic: ProtocolMagic, Version: ProtocolVersion, MsgType: MessageType(0x42)}
	if err := ValidateHeader(h); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestFileInfoRoundTrip(t *testing.T) {
	fi := FileInfo{
		FilenameLength: 8,
		Filename:       "test.txt",
		FileSize:       123456,
		TotalChunks:    3,
		ChunkSize:      DefaultChunkSize,
		ChecksumType:   ChecksumCRC32,
		FileMode:       0644,
		Timestamp:      1735689600,
	}
	raw := SerializeFileInfo(fi)
	if len(raw) != FileInfoSize {
		t.Fatalf("serialized FileInfo length = %d, want %d", len(raw), FileInfoSize)
	}
	got, err := DeserializeFileInfo(raw)
	if err != nil {
		t.Fatalf("DeserializeFileInfo: %v", err)
	}
	if got != fi {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, fi)
	}
}

func TestChunkHeaderRoundTrip(t *testing.T) {
	ch := ChunkHeader{ChunkID: 5, ChunkOffset: 5 * DefaultChunkSize, ChunkSize: 1024, ChunkCRC32: 0xCAFEBABE}
	raw := SerializeChunkHeader(ch)
	if len(raw) != ChunkHeaderSize {
		t.Fatalf("serialized ChunkHeader length = %d, want %d", len(raw), ChunkHeaderSize)
	}
	got, err := DeserializeChunkHeader(raw)
	if err != nil {
		t.Fatalf("DeserializeChunkHeader: %v", err)
	}
	if got != ch {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ch)
	}
}

func TestChunkAckRoundTrip(t *testing.T) {
	ca := ChunkAck{ChunkID: 99, Status: ChunkStatusRetry}
	raw := SerializeChunkAck(ca)
	if len(raw) != ChunkAckSize {
		t.Fatalf("serialized ChunkAck length = %d, want %d", len(raw), ChunkAckSize)
	}
	got, err := DeserializeChunkAck(raw)
	if err != nil {
		t.Fatalf("DeserializeChunkAck: %v", err)
	}
	if got != ca {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ca)
	}
}

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fi := FileInfo{Filename: "report.pdf", FileSize: 4096, TotalChunks: 1, ChunkSize: DefaultChunkSize}
	if err := WriteFileInfo(&buf, 3, fi); err != nil {
		t.Fatalf("WriteFileInfo: %v", err)
	}

	h, payload, err := ReadExpected(&buf, MsgFileInfo)
	if err != nil {
		t.Fatalf("ReadExpected: %v", err)
	}
	if h.SequenceNum != 3 {
		t.Fatalf("sequence_num = %d, want 3", h.SequenceNum)
	}
	got, err := ReadFileInfo(payload)
	if err != nil {
		t.Fatalf("ReadFileInfo: %v", err)
	}
	if got.Filename != fi.Filename || got.FileSize != fi.FileSize {
		t.Fatalf("decoded FileInfo mismatch: got %+v", got)
	}
}

func TestWriteReadChunkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	data := bytes.Repeat([]byte{0xAB}, 256)
	ch := ChunkHeader{ChunkID: 0, ChunkOffset: 0, ChunkSize: uint32(len(data)), ChunkCRC32: CRC32(data)}
	if err := WriteChunk(&buf, 2, ch, data); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	_, payload, err := ReadExpected(&buf, MsgChunkData)
	if err != nil {
		t.Fatalf("ReadExpected: %v", err)
	}
	gotHeader, gotData, err := ReadChunk(payload)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if gotHeader.ChunkID != ch.ChunkID || !bytes.Equal(gotData, data) {
		t.Fatalf("chunk round trip mismatch")
	}
}

func TestReadChunkDetectsCorruption(t *testing.T) {
	data := []byte("hello chunk")
	ch := ChunkHeader{ChunkID: 1, ChunkSize: uint32(len(data)), ChunkCRC32: CRC32(data)}
	payload := make([]byte, ChunkHeaderSize+len(data))
	copy(payload[:ChunkHeaderSize], SerializeChunkHeader(ch))
	copy(payload[ChunkHeaderSize:], data)
	payload[ChunkHeaderSize] ^= 0xFF // corrupt first data byte

	_, _, err := ReadChunk(payload)
	if !errors.Is(err, ErrChunkChecksum) {
		t.Fatalf("expected ErrChunkChecksum, got %v", err)
	}
}

func TestReadMessageRejectsTruncatedHeader(t *testing.T) {
	_, _, err := ReadMessage(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("expected error reading a truncated header")
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	h := MessageHeader{Magic: ProtocolMagic, Version: ProtocolVersion, MsgType: MsgChunkData, PayloadSize: maxPayloadSize + 1}
	raw := SerializeHeader(h)
	_, _, err := ReadMessage(bytes.NewReader(raw))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadExpectedPassesThroughError(t *testing.T) {
	var buf bytes.Buffer
	em := ErrorMessage{ErrorCode: ErrDiskFull, ChunkID: 4, Message: "no space left"}
	if err := WriteError(&buf, 1, em); err != nil {
		t.Fatalf("WriteError: %v", err)
	}
	h, payload, err := ReadExpected(&buf, MsgChunkAck)
	if err != nil {
		t.Fatalf("ReadExpected should let MSG_ERROR through: %v", err)
	}
	if h.MsgType != MsgError {
		t.Fatalf("msg_type = %v, want MsgError", h.MsgType)
	}
	got, err := ReadErrorMessage(payload)
	if err != nil {
		t.Fatalf("ReadErrorMessage: %v", err)
	}
	if got.ErrorCode != ErrDiskFull || got.Message != em.Message {
		t.Fatalf("decoded ErrorMessage mismatch: got %+v", got)
	}
}

func TestErrorCodeString(t *testing.T) {
	if ErrChecksum.String() != "checksum mismatch" {
		t.Fatalf("ErrChecksum.String() = %q", ErrChecksum.String())
	}
	if ErrorCode(250).String() != "unknown error" {
		t.Fatalf("unrecognized code should render as unknown error")
	}
}

func TestTransferErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	te := NewTransferError(ErrRecv, "recv_chunk", inner)
	if !errors.Is(te, inner) {
		t.Fatal("TransferError should unwrap to its inner error")
	}
}
