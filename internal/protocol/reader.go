package protocol

import (
	"fmt"
	"io"
)

// maxPayloadSize bounds what ReadMessage will allocate for an incoming
// payload. Chosen generously above DefaultChunkSize so a full chunk plus
// its header always fits, while still rejecting a corrupted or hostile
// payload_size field.
const maxPayloadSize = 16 * 1024 * 1024

// ReadMessage reads one framed message from r: a 32-byte header, validated
// for magic/version/msg_type and header checksum, followed by
// header.PayloadSize bytes of payload. It returns the decoded header and
// raw payload so callers can dispatch on MsgType before deserializing the
// type-specific body.
func ReadMessage(r io.Reader) (MessageHeader, []byte, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return MessageHeader{}, nil, fmt.Errorf("reading message header: %w", err)
	}
	if !HeaderChecksumValid(raw) {
		return MessageHeader{}, nil, ErrChunkChecksum
	}
	h, err := DeserializeHeader(raw)
	if err != nil {
		return MessageHeader{}, nil, err
	}
	if err := ValidateHeader(h); err != nil {
		return MessageHeader{}, nil, err
	}
	if h.PayloadSize > maxPayloadSize {
		return MessageHeader{}, nil, ErrPayloadTooLarge
	}
	if h.PayloadSize == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return MessageHeader{}, nil, fmt.Errorf("reading message payload: %w", err)
	}
	return h, payload, nil
}

// ReadExpected reads one message and verifies its type is want, returning
// ErrUnexpectedType (wrapped with the actual type encountered) otherwise.
// MSG_ERROR is always allowed through even when not the wanted type, so
// callers can surface the peer's failure report.
func ReadExpected(r io.Reader, want MessageType) (MessageHeader, []byte, error) {
	h, payload, err := ReadMessage(r)
	if err != nil {
		return h, payload, err
	}
	if h.MsgType == MsgError || h.MsgType == want {
		return h, payload, nil
	}
	return h, payload, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedType, h.MsgType, want)
}

// ReadHandshake reads and decodes a handshake payload already framed by
// ReadMessage/ReadExpected.
func ReadHandshake(payload []byte) (HandshakePayload, error) {
	return DeserializeHandshake(payload)
}

// ReadFileInfo decodes a FILE_INFO payload.
func ReadFileInfo(payload []byte) (FileInfo, error) {
	return DeserializeFileInfo(payload)
}

// ReadFileAck decodes a FILE_ACK payload.
func ReadFileAck(payload []byte) (FileAck, error) {
	return DeserializeFileAck(payload)
}

// ReadChunk splits a CHUNK_DATA payload into its header and data bytes and
// verifies the chunk's CRC-32 against the data actually received. A
// mismatch returns ErrChunkChecksum together with the decoded header so the
// caller can still reply with a retry ack naming the right chunk_id.
func ReadChunk(payload []byte) (ChunkHeader, []byte, error) {
	if len(payload) < ChunkHeaderSize {
		return ChunkHeader{}, nil, ErrTruncatedFrame
	}
	ch, err := DeserializeChunkHeader(payload[:ChunkHeaderSize])
	if err != nil {
		return ChunkHeader{}, nil, err
	}
	data := payload[ChunkHeaderSize:]
	if uint32(len(data)) != ch.ChunkSize {
		return ch, data, ErrTruncatedFrame
	}
	if CRC32(data) != ch.ChunkCRC32 {
		return ch, data, ErrChunkChecksum
	}
	return ch, data, nil
}

// ReadChunkAck decodes a CHUNK_ACK payload.
func ReadChunkAck(payload []byte) (ChunkAck, error) {
	return DeserializeChunkAck(payload)
}

// ReadErrorMessage decodes a MSG_ERROR payload.
func ReadErrorMessage(payload []byte) (ErrorMessage, error) {
	return DeserializeErrorMessage(payload)
}
