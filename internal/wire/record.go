package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Field widths, taken directly from the original service's Message struct
// (MAX_USERNAME, MAX_FILENAME, BUFFER_SIZE).
const (
	UsernameSize = 64
	FilenameSize = 256
	DataSize     = 8192

	// RecordSize is the exact byte width of a record on the wire:
	// three uint32 header fields, the three fixed byte arrays, and the
	// trailing data_len uint32.
	RecordSize = 4 + 4 + 4 + UsernameSize + FilenameSize + DataSize + 4
)

// Message types (wire field msg_type).
const (
	MsgRegisterNode uint32 = 1
	MsgRegisterUser uint32 = 2
	MsgCommand      uint32 = 3
	MsgResponse     uint32 = 4
	MsgNodeCommand  uint32 = 5
)

// Command codes (wire field command, request records only).
const (
	CmdView     uint32 = 1
	CmdRead     uint32 = 2
	CmdCreate   uint32 = 3
	CmdWrite    uint32 = 4
	CmdDelete   uint32 = 5
	CmdInfo     uint32 = 6
	CmdList     uint32 = 7
	CmdAddAccess uint32 = 8
	CmdRemAccess uint32 = 9
	CmdStream   uint32 = 10
	CmdUndo     uint32 = 11
	CmdCopy     uint32 = 12
	CmdFileInfo uint32 = 13
	CmdExec     uint32 = 14
	CmdWriteCommit  uint32 = 15
	CmdLockAcquire  uint32 = 16
	CmdLockRelease  uint32 = 17

	CmdCreateFolder uint32 = 18
	CmdMove         uint32 = 19
	CmdViewFolder   uint32 = 20

	CmdCheckpoint      uint32 = 21
	CmdViewCheckpoint  uint32 = 22
	CmdRevert          uint32 = 23
	CmdListCheckpoints uint32 = 24

	CmdRequestAccess uint32 = 25
	CmdViewRequests  uint32 = 26
	CmdApproveRequest uint32 = 27
	CmdDenyRequest    uint32 = 28
)

// Record is the single fixed-size frame exchanged by every participant in
// the system. Encode/Decode translate it to and from its RecordSize-byte
// wire representation; every other package in this module talks in terms
// of Record, never raw bytes.
type Record struct {
	MsgType   uint32
	Command   uint32
	ErrorCode uint32
	Username  string
	Filename  string
	Data      []byte
	DataLen   uint32
}

// NewCommand builds a request record for the given command, username, and
// filename, with data treated as an ASCII payload.
func NewCommand(command uint32, username, filename string, data []byte) Record {
	return Record{
		MsgType:  MsgCommand,
		Command:  command,
		Username: username,
		Filename: filename,
		Data:     data,
		DataLen:  uint32(len(data)),
	}
}

// NewResponse builds a response record carrying the given error code and
// payload.
func NewResponse(errorCode uint32, data []byte) Record {
	return Record{
		MsgType:   MsgResponse,
		ErrorCode: errorCode,
		Data:      data,
		DataLen:   uint32(len(data)),
	}
}

// NewHeartbeat builds the periodic liveness ping a storage node sends the
// coordinator between full re-registrations, carrying only its node id.
func NewHeartbeat(nodeID string) Record {
	return Record{
		MsgType:  MsgNodeCommand,
		Username: nodeID,
	}
}

func putFixedString(buf []byte, s string) error {
	if len(s) > len(buf) {
		return fmt.Errorf("wire: field too long: %d > %d", len(s), len(buf))
	}
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, s)
	return nil
}

func getFixedString(buf []byte) string {
	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		n = len(buf)
	}
	return string(buf[:n])
}

// Encode writes r's RecordSize-byte wire representation.
func (r Record) Encode() ([]byte, error) {
	if len(r.Data) > DataSize {
		return nil, fmt.Errorf("wire: data too long: %d > %d", len(r.Data), DataSize)
	}

	buf := make([]byte, RecordSize)
	off := 0

	binary.BigEndian.PutUint32(buf[off:], r.MsgType)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], r.Command)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], r.ErrorCode)
	off += 4

	if err := putFixedString(buf[off:off+UsernameSize], r.Username); err != nil {
		return nil, err
	}
	off += UsernameSize

	if err := putFixedString(buf[off:off+FilenameSize], r.Filename); err != nil {
		return nil, err
	}
	off += FilenameSize

	dataField := buf[off : off+DataSize]
	for i := range dataField {
		dataField[i] = 0
	}
	copy(dataField, r.Data)
	off += DataSize

	dataLen := r.DataLen
	if dataLen == 0 && len(r.Data) > 0 {
		dataLen = uint32(len(r.Data))
	}
	binary.BigEndian.PutUint32(buf[off:], dataLen)

	return buf, nil
}

// Decode parses a RecordSize-byte buffer (as produced by Encode) into a
// Record.
func Decode(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, fmt.Errorf("wire: bad record length: %d != %d", len(buf), RecordSize)
	}

	var r Record
	off := 0

	r.MsgType = binary.BigEndian.Uint32(buf[off:])
	off += 4
	r.Command = binary.BigEndian.Uint32(buf[off:])
	off += 4
	r.ErrorCode = binary.BigEndian.Uint32(buf[off:])
	off += 4

	r.Username = getFixedString(buf[off : off+UsernameSize])
	off += UsernameSize

	r.Filename = getFixedString(buf[off : off+FilenameSize])
	off += FilenameSize

	dataField := buf[off : off+DataSize]
	off += DataSize

	r.DataLen = binary.BigEndian.Uint32(buf[off:])

	n := r.DataLen
	if n > DataSize {
		n = DataSize
	}
	r.Data = append([]byte(nil), dataField[:n]...)

	return r, nil
}
