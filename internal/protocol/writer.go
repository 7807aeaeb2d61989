package protocol

import (
	"fmt"
	"io"
)

// WriteMessage frames payload behind a MessageHeader and writes both to w:
// one Write for the header, then one for the payload (skipped when the
// payload is empty). seq becomes the header's sequence_num; msgType selects
// the header's msg_type. The header checksum is computed here, not by the
// caller.
func WriteMessage(w io.Writer, msgType MessageType, seq uint64, payload []byte) error {
	h := MessageHeader{
		Magic:       ProtocolMagic,
		Version:     ProtocolVersion,
		MsgType:     msgType,
		SequenceNum: seq,
		PayloadSize: uint64(len(payload)),
	}
	if _, err := w.Write(SerializeHeader(h)); err != nil {
		return fmt.Errorf("writing message header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing message payload: %w", err)
	}
	return nil
}

// WriteHandshake sends MSG_HANDSHAKE_REQ or MSG_HANDSHAKE_ACK depending on
// msgType, both of which share the HandshakePayload body.
func WriteHandshake(w io.Writer, msgType MessageType, seq uint64, hp HandshakePayload) error {
	return WriteMessage(w, msgType, seq, SerializeHandshake(hp))
}

// WriteFileInfo sends MSG_FILE_INFO.
func WriteFileInfo(w io.Writer, seq uint64, fi FileInfo) error {
	return WriteMessage(w, MsgFileInfo, seq, SerializeFileInfo(fi))
}

// WriteFileAck sends MSG_FILE_ACK.
func WriteFileAck(w io.Writer, seq uint64, fa FileAck) error {
	return WriteMessage(w, MsgFileAck, seq, SerializeFileAck(fa))
}

// WriteChunk sends MSG_CHUNK_DATA: a ChunkHeader immediately followed by
// the chunk's data bytes, all as one payload. ch.ChunkCRC32 must already be
// set by the caller (see CRC32(data)).
func WriteChunk(w io.Writer, seq uint64, ch ChunkHeader, data []byte) error {
	payload := make([]byte, ChunkHeaderSize+len(data))
	copy(payload[:ChunkHeaderSize], SerializeChunkHeader(ch))
	copy(payload[ChunkHeaderSize:], data)
	return WriteMessage(w, MsgChunkData, seq, payload)
}

// WriteChunkAck sends MSG_CHUNK_ACK.
func WriteChunkAck(w io.Writer, seq uint64, ca ChunkAck) error {
	return WriteMessage(w, MsgChunkAck, seq, SerializeChunkAck(ca))
}

// WriteError sends MSG_ERROR. The receiver sends it best-effort before
// returning on the terminal faults listed in receiver.Receive; the sender
// never sends it.
func WriteError(w io.Writer, seq uint64, em ErrorMessage) error {
	return WriteMessage(w, MsgError, seq, SerializeErrorMessage(em))
}
