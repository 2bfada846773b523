package recovery

import (
	"bytes"
	"encoding/binary"

	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/types"
)

type LogRecordType int32

const (
	INVALID LogRecordType = iota
	ALLOCATE_PAGE
	DEALLOCATE_PAGE
	FLUSH_PAGE
)

const LogHeaderSize = 16

// LogRecord is the unit the log manager appends to the log buffer.
// the page level record set is intentionally small: the durability and
// recovery protocols on top of it are out of scope of this core
type LogRecord struct {
	Size       uint32
	Lsn        types.LSN
	RecordType LogRecordType
	PageID     types.PageID
}

func NewLogRecordPage(recordType LogRecordType, pageID types.PageID) *LogRecord {
	ret := new(LogRecord)
	ret.Size = LogHeaderSize
	ret.Lsn = types.LSN(common.InvalidLSN)
	ret.RecordType = recordType
	ret.PageID = pageID
	return ret
}

// Serialize converts the record to its on-log representation
func (record *LogRecord) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, record.Size)
	binary.Write(buf, binary.LittleEndian, record.Lsn)
	binary.Write(buf, binary.LittleEndian, record.RecordType)
	binary.Write(buf, binary.LittleEndian, record.PageID)
	return buf.Bytes()
}

// NewLogRecordFromBytes reconstructs a record serialized with Serialize
func NewLogRecordFromBytes(data []byte) *LogRecord {
	ret := new(LogRecord)
	buf := bytes.NewBuffer(data)
	binary.Read(buf, binary.LittleEndian, &ret.Size)
	binary.Read(buf, binary.LittleEndian, &ret.Lsn)
	binary.Read(buf, binary.LittleEndian, &ret.RecordType)
	binary.Read(buf, binary.LittleEndian, &ret.PageID)
	return ret
}
