package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// CRC32 computes the IEEE 802.3 CRC-32 of b using the standard library's
// table-based implementation. It is called on every serialized header's
// first 24 bytes and on every chunk's data bytes, so it sits on the hot
// path of both state machines.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// putUint16/putUint64 etc. are thin wrappers kept local to this file so the
// rest of the codec reads as "write field at offset" rather than reaching
// for encoding/binary everywhere; all wire integers are big-endian
// regardless of host byte order.

func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func getUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func getUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func getUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// SerializeHeader writes h to a new 32-byte buffer. Offsets 0-23 are the
// header fields in wire order; CRC-32 over those 24 bytes is computed and
// written at offset 24; reserved is written at offset 28. The caller's
// h.HeaderChecksum and h.Reserved inputs are ignored for the checksum
// field (it's always recomputed) but h.Reserved is honored as the value
// written at offset 28.
func SerializeHeader(h MessageHeader) []byte {
	buf := make([]byte, HeaderSize)
	putUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = byte(h.MsgType)
	putUint16(buf[6:8], h.Flags)
	putUint64(buf[8:16], h.SequenceNum)
	putUint64(buf[16:24], h.PayloadSize)
	checksum := CRC32(buf[0:24])
	putUint32(buf[24:28], checksum)
	putUint32(buf[28:32], h.Reserved)
	return buf
}

// DeserializeHeader reads a 32-byte buffer into a MessageHeader. It does
// not itself validate the header (see ValidateHeader) nor verify the
// checksum; that is the caller's responsibility.
func DeserializeHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < HeaderSize {
		return MessageHeader{}, ErrTruncatedFrame
	}
	return MessageHeader{
		Magic:          getUint32(buf[0:4]),
		Version:        buf[4],
		MsgType:        MessageType(buf[5]),
		Flags:          getUint16(buf[6:8]),
		SequenceNum:    getUint64(buf[8:16]),
		PayloadSize:    getUint64(buf[16:24]),
		HeaderChecksum: getUint32(buf[24:28]),
		Reserved:       getUint32(buf[28:32]),
	}, nil
}

// ValidateHeader checks magic, version, and msg_type. It does not check
// the header checksum; that is computed separately so callers can also
// validate it on malformed-length frames.
func ValidateHeader(h MessageHeader) error {
	if h.Magic != ProtocolMagic {
		return ErrInvalidMagic
	}
	if h.Version != ProtocolVersion {
		return ErrInvalidVersion
	}
	if !IsValidMessageType(h.MsgType) {
		return ErrInvalidType
	}
	return nil
}

// HeaderChecksumValid recomputes the CRC-32 over the first 24 bytes of a
// serialized header and compares it against the checksum carried at
// offset 24.
func HeaderChecksumValid(buf []byte) bool {
	if len(buf) < HeaderSize {
		return false
	}
	return CRC32(buf[0:24]) == getUint32(buf[24:28])
}

// SerializeFileInfo writes fi to a new 1024-byte buffer, packed at fixed
// field offsets.
func SerializeFileInfo(fi FileInfo) []byte {
	buf := make([]byte, FileInfoSize)
	offset := 0

	putUint16(buf[offset:offset+2], fi.FilenameLength)
	offset += 2

	nameBytes := []byte(fi.Filename)
	if len(nameBytes) > MaxFilenameLength-1 {
		nameBytes = nameBytes[:MaxFilenameLength-1]
	}
	copy(buf[offset:offset+MaxFilenameLength], nameBytes)
	offset += MaxFilenameLength

	putUint64(buf[offset:offset+8], fi.FileSize)
	offset += 8

	putUint64(buf[offset:offset+8], fi.TotalChunks)
	offset += 8

	putUint32(buf[offset:offset+4], fi.ChunkSize)
	offset += 4

	buf[offset] = byte(fi.ChecksumType)
	offset++

	copy(buf[offset:offset+ReservedHashSize], fi.FileChecksum[:])
	offset += ReservedHashSize

	putUint32(buf[offset:offset+4], fi.FileMode)
	offset += 4

	putUint64(buf[offset:offset+8], fi.Timestamp)
	offset += 8

	// remaining bytes (offset 323 onward) are the 701-byte reserved tail;
	// already zero.
	return buf
}

// DeserializeFileInfo reads a 1024-byte buffer into a FileInfo.
func DeserializeFileInfo(buf []byte) (FileInfo, error) {
	if len(buf) < FileInfoSize {
		return FileInfo{}, ErrTruncatedFrame
	}
	var fi FileInfo
	offset := 0

	fi.FilenameLength = getUint16(buf[offset : offset+2])
	offset += 2

	nameField := buf[offset : offset+MaxFilenameLength]
	fi.Filename = decodeNullTerminated(nameField)
	offset += MaxFilenameLength

	fi.FileSize = getUint64(buf[offset : offset+8])
	offset += 8

	fi.TotalChunks = getUint64(buf[offset : offset+8])
	offset += 8

	fi.ChunkSize = getUint32(buf[offset : offset+4])
	offset += 4

	fi.ChecksumType = ChecksumType(buf[offset])
	offset++

	copy(fi.FileChecksum[:], buf[offset:offset+ReservedHashSize])
	offset += ReservedHashSize

	fi.FileMode = getUint32(buf[offset : offset+4])
	offset += 4

	fi.Timestamp = getUint64(buf[offset : offset+8])
	offset += 8

	return fi, nil
}

// decodeNullTerminated returns the string up to the first NUL byte, or the
// whole field if none is present.
func decodeNullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// SerializeChunkHeader writes ch to a new 24-byte buffer.
func SerializeChunkHeader(ch ChunkHeader) []byte {
	buf := make([]byte, ChunkHeaderSize)
	putUint64(buf[0:8], ch.ChunkID)
	putUint64(buf[8:16], ch.ChunkOffset)
	putUint32(buf[16:20], ch.ChunkSize)
	putUint32(buf[20:24], ch.ChunkCRC32)
	return buf
}

// DeserializeChunkHeader reads a 24-byte buffer into a ChunkHeader.
func DeserializeChunkHeader(buf []byte) (ChunkHeader, error) {
	if len(buf) < ChunkHeaderSize {
		return ChunkHeader{}, ErrTruncatedFrame
	}
	return ChunkHeader{
		ChunkID:     getUint64(buf[0:8]),
		ChunkOffset: getUint64(buf[8:16]),
		ChunkSize:   getUint32(buf[16:20]),
		ChunkCRC32:  getUint32(buf[20:24]),
	}, nil
}

// SerializeChunkAck writes ca to a new 12-byte buffer.
func SerializeChunkAck(ca ChunkAck) []byte {
	buf := make([]byte, ChunkAckSize)
	putUint64(buf[0:8], ca.ChunkID)
	buf[8] = ca.Status
	return buf
}

// DeserializeChunkAck reads a 12-byte buffer into a ChunkAck.
func DeserializeChunkAck(buf []byte) (ChunkAck, error) {
	if len(buf) < ChunkAckSize {
		return ChunkAck{}, ErrTruncatedFrame
	}
	return ChunkAck{
		ChunkID: getUint64(buf[0:8]),
		Status:  buf[8],
	}, nil
}

// SerializeFileAck writes fa to a new 4-byte buffer.
func SerializeFileAck(fa FileAck) []byte {
	buf := make([]byte, FileAckSize)
	buf[0] = fa.Status
	buf[1] = byte(fa.ErrorCode)
	return buf
}

// DeserializeFileAck reads a 4-byte buffer into a FileAck.
func DeserializeFileAck(buf []byte) (FileAck, error) {
	if len(buf) < FileAckSize {
		return FileAck{}, ErrTruncatedFrame
	}
	return FileAck{Status: buf[0], ErrorCode: ErrorCode(buf[1])}, nil
}

// SerializeHandshake writes hp to a new 4-byte buffer.
func SerializeHandshake(hp HandshakePayload) []byte {
	buf := make([]byte, HandshakeSize)
	buf[0] = hp.Version
	buf[1] = hp.Capabilities
	return buf
}

// DeserializeHandshake reads a 4-byte buffer into a HandshakePayload.
func DeserializeHandshake(buf []byte) (HandshakePayload, error) {
	if len(buf) < HandshakeSize {
		return HandshakePayload{}, ErrTruncatedFrame
	}
	return HandshakePayload{Version: buf[0], Capabilities: buf[1]}, nil
}

// SerializeErrorMessage writes em to a new 256-byte buffer.
func SerializeErrorMessage(em ErrorMessage) []byte {
	buf := make([]byte, ErrorMessageSize)
	buf[0] = byte(em.ErrorCode)
	putUint64(buf[1:9], em.ChunkID)
	msgBytes := []byte(em.Message)
	if len(msgBytes) > ErrorMessageSize-9-1 {
		msgBytes = msgBytes[:ErrorMessageSize-9-1]
	}
	copy(buf[9:9+len(msgBytes)], msgBytes)
	return buf
}

// DeserializeErrorMessage reads a 256-byte buffer into an ErrorMessage.
func DeserializeErrorMessage(buf []byte) (ErrorMessage, error) {
	if len(buf) < ErrorMessageSize {
		return ErrorMessage{}, ErrTruncatedFrame
	}
	return ErrorMessage{
		ErrorCode: ErrorCode(buf[0]),
		ChunkID:   getUint64(buf[1:9]),
		Message:   decodeNullTerminated(buf[9:ErrorMessageSize]),
	}, nil
}

// SerializeVerifyResponse writes vr to a new 4-byte buffer. Reserved for
// the future verification extension; never emitted by this revision.
func SerializeVerifyResponse(vr VerifyResponse) []byte {
	buf := make([]byte, VerifyRespSize)
	if vr.ChecksumMatch {
		buf[0] = 1
	}
	buf[1] = byte(vr.ErrorCode)
	return buf
}

// DeserializeVerifyResponse reads a 4-byte buffer into a VerifyResponse.
func DeserializeVerifyResponse(buf []byte) (VerifyResponse, error) {
	if len(buf) < VerifyRespSize {
		return VerifyResponse{}, ErrTruncatedFrame
	}
	return VerifyResponse{ChecksumMatch: buf[0] != 0, ErrorCode: ErrorCode(buf[1])}, nil
}
