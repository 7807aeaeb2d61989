// Package protocol implements the filexfer binary wire protocol used
// between the sender (client role) and the receiver (server role): a
// fixed 32-byte message header followed by a type-specific payload, and
// the FILE_INFO / CHUNK_DATA / CHUNK_ACK / ERROR structures carried inside
// it.
package protocol

import "errors"

// ProtocolMagic identifies a filexfer frame. It is the ASCII bytes "FTCP"
// read as a big-endian uint32.
const ProtocolMagic uint32 = 0x46544350

// ProtocolVersion is the only wire version this implementation speaks.
const ProtocolVersion uint8 = 0x01

// DefaultPort is the TCP port both CLIs default to.
const DefaultPort = 8080

// DefaultChunkSize is the chunk size used when the sender does not
// override it.
const DefaultChunkSize = 524288

// MaxFilenameLength is the fixed width of the filename field inside
// FileInfo.
const MaxFilenameLength = 256

// MaxChunkRetries bounds the sender's per-chunk retry loop. The receiver
// answers every corrupt chunk with a retry ack and does not count them.
const MaxChunkRetries = 3

// DefaultSocketTimeoutSeconds bounds every blocking network wait unless
// overridden.
const DefaultSocketTimeoutSeconds = 60

// Fixed wire sizes, in bytes.
const (
	HeaderSize       = 32
	FileInfoSize     = 1024
	ChunkHeaderSize  = 24
	ReservedHashSize = 32
	ChunkAckSize     = 12
	ErrorMessageSize = 256
	FileAckSize      = 4
	HandshakeSize    = 4
	VerifyRespSize   = 4
)

// Message types. MSG_ERROR is the only value above the highest
// application message type that is still considered well-formed.
type MessageType uint8

const (
	MsgHandshakeReq      MessageType = 0x01
	MsgHandshakeAck      MessageType = 0x02
	MsgFileInfo          MessageType = 0x03
	MsgFileAck           MessageType = 0x04
	MsgChunkData         MessageType = 0x05
	MsgChunkAck          MessageType = 0x06
	MsgTransferComplete  MessageType = 0x07 // reserved, never emitted
	MsgVerifyRequest     MessageType = 0x08 // reserved, never emitted
	MsgVerifyResponse    MessageType = 0x09 // reserved, never emitted
	MsgError             MessageType = 0xFF
)

// IsValidMessageType reports whether t is a recognized, non-zero message
// type. MSG_ERROR is always valid; msg_type == 0 and anything above
// MSG_VERIFY_RESPONSE (other than MSG_ERROR) is rejected.
func IsValidMessageType(t MessageType) bool {
	if t == MsgError {
		return true
	}
	return t >= MsgHandshakeReq && t <= MsgVerifyResponse
}

// ChecksumType identifies the algorithm named in FileInfo.checksum_type.
// Only CRC32 is meaningful in this revision; the others are defined for
// wire compatibility with a future whole-file verification extension.
type ChecksumType uint8

const (
	ChecksumCRC32  ChecksumType = 0
	ChecksumMD5    ChecksumType = 1
	ChecksumSHA256 ChecksumType = 2
)

// ChunkAckStatus values.
const (
	ChunkStatusOK    uint8 = 0
	ChunkStatusRetry uint8 = 1
)

// FileAck status values.
const (
	FileAckStatusReady uint8 = 0
	FileAckStatusError uint8 = 1
)

// ErrorCode identifies the failure taxonomy carried on the wire. These
// numeric values are part of the wire contract (they travel inside
// ErrorMessage.error_code and FileAck.error_code) and must never be
// renumbered.
type ErrorCode uint8

const (
	ErrSuccess            ErrorCode = 0
	ErrSocket             ErrorCode = 1 // -1 in the source's signed enum
	ErrConnect            ErrorCode = 2
	ErrBind               ErrorCode = 3
	ErrListen             ErrorCode = 4
	ErrAccept             ErrorCode = 5
	ErrSend               ErrorCode = 6
	ErrRecv               ErrorCode = 7
	ErrTimeout            ErrorCode = 8
	ErrFileOpen           ErrorCode = 10
	ErrFileRead           ErrorCode = 11
	ErrFileWrite          ErrorCode = 12
	ErrFileSeek           ErrorCode = 13
	ErrDiskFull           ErrorCode = 14
	ErrPermission         ErrorCode = 15
	ErrChecksum           ErrorCode = 20
	ErrProtocol           ErrorCode = 21
	ErrVersion            ErrorCode = 22
	ErrInvalidMsg         ErrorCode = 23
	ErrOutOfMemory        ErrorCode = 30
	ErrInvalidArg         ErrorCode = 31
	ErrFileNotFound       ErrorCode = 32
	ErrFilenameTooLong    ErrorCode = 33
)

// String renders a human-readable description of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrSuccess:
		return "success"
	case ErrSocket:
		return "socket error"
	case ErrConnect:
		return "connection failed"
	case ErrBind:
		return "bind failed"
	case ErrListen:
		return "listen failed"
	case ErrAccept:
		return "accept failed"
	case ErrSend:
		return "send failed"
	case ErrRecv:
		return "receive failed"
	case ErrTimeout:
		return "operation timed out"
	case ErrFileOpen:
		return "file open failed"
	case ErrFileRead:
		return "file read failed"
	case ErrFileWrite:
		return "file write failed"
	case ErrFileSeek:
		return "file seek failed"
	case ErrDiskFull:
		return "disk full"
	case ErrPermission:
		return "permission denied"
	case ErrChecksum:
		return "checksum mismatch"
	case ErrProtocol:
		return "protocol error"
	case ErrVersion:
		return "version mismatch"
	case ErrInvalidMsg:
		return "invalid message"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInvalidArg:
		return "invalid argument"
	case ErrFileNotFound:
		return "file not found"
	case ErrFilenameTooLong:
		return "filename too long"
	default:
		return "unknown error"
	}
}

// Sentinel errors returned by the codec and protocol engine.
var (
	ErrInvalidMagic     = errors.New("protocol: invalid magic bytes")
	ErrInvalidVersion   = errors.New("protocol: unsupported protocol version")
	ErrInvalidType      = errors.New("protocol: unrecognized message type")
	ErrTruncatedFrame   = errors.New("protocol: truncated frame")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds max size")
	ErrUnexpectedType   = errors.New("protocol: unexpected message type")
	ErrChunkChecksum    = errors.New("protocol: chunk checksum mismatch")
)

// TransferError is the tagged result type every core operation returns on
// failure. Code is the abstract taxonomy value; it is also what gets
// placed on the wire inside an ErrorMessage when the failure is
// reported to the peer.
type TransferError struct {
	Code    ErrorCode
	Op      string
	ChunkID uint64
	Err     error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Code.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Code.String()
}

func (e *TransferError) Unwrap() error { return e.Err }

// NewTransferError builds a TransferError wrapping err (which may be nil).
func NewTransferError(code ErrorCode, op string, err error) *TransferError {
	return &TransferError{Code: code, Op: op, Err: err}
}

// MessageHeader is the 32-byte preamble that precedes every message's
// payload on the wire.
type MessageHeader struct {
	Magic          uint32
	Version        uint8
	MsgType        MessageType
	Flags          uint16
	SequenceNum    uint64
	PayloadSize    uint64
	HeaderChecksum uint32
	Reserved       uint32
}

// FileInfo is the 1024-byte descriptor of the file being transferred.
type FileInfo struct {
	FilenameLength uint16
	Filename       string // decoded from the fixed 256-byte, NUL-padded field
	FileSize       uint64
	TotalChunks    uint64
	ChunkSize      uint32
	ChecksumType   ChecksumType
	FileChecksum   [ReservedHashSize]byte // reserved, always zero in this revision
	FileMode       uint32
	Timestamp      uint64
}

// ChunkHeader precedes the data bytes inside a CHUNK_DATA payload.
type ChunkHeader struct {
	ChunkID     uint64
	ChunkOffset uint64
	ChunkSize   uint32
	ChunkCRC32  uint32
}

// ChunkAck is the receiver's verdict on a single chunk.
type ChunkAck struct {
	ChunkID uint64
	Status  uint8
}

// FileAck is the receiver's reply to FILE_INFO.
type FileAck struct {
	Status    uint8
	ErrorCode ErrorCode
}

// HandshakePayload is exchanged in both directions during the handshake.
type HandshakePayload struct {
	Version      uint8
	Capabilities uint8
}

// ErrorMessage is a structured, terminal fault report sent by either side.
type ErrorMessage struct {
	ErrorCode ErrorCode
	ChunkID   uint64
	Message   string // decoded from the fixed 247-byte, NUL-terminated field
}

// VerifyResponse is defined for wire compatibility with the reserved
// MSG_VERIFY_RESPONSE extension. Never emitted by this revision.
type VerifyResponse struct {
	ChecksumMatch bool
	ErrorCode     ErrorCode
}
