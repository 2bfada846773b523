package recovery

import (
	"sync"

	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/storage/disk"
	"github.com/shachidb/ShachiDB/types"
)

/**
 * LogManager buffers serialized log records and writes them to the log file
 * through the disk manager. the buffer pool manager flushes it before a dirty
 * victim page is written out so no page reaches disk ahead of its log records.
 */
type LogManager struct {
	offset          uint32
	logBufferLsn    types.LSN
	nextLsn         types.LSN
	persistentLsn   types.LSN
	logBuffer       []byte
	flushBuffer     []byte
	latch           common.ReaderWriterLatch
	wlogMutex       *sync.Mutex
	diskManager     disk.DiskManager
	isEnableLogging bool
}

func NewLogManager(diskManager disk.DiskManager) *LogManager {
	ret := new(LogManager)
	ret.nextLsn = 0
	ret.persistentLsn = common.InvalidLSN
	ret.diskManager = diskManager
	ret.logBuffer = make([]byte, common.LogBufferSize)
	ret.flushBuffer = make([]byte, common.LogBufferSize)
	ret.latch = common.NewRWLatch()
	ret.wlogMutex = new(sync.Mutex)
	ret.offset = 0
	ret.isEnableLogging = false
	return ret
}

func (lm *LogManager) GetNextLSN() types.LSN       { return lm.nextLsn }
func (lm *LogManager) GetPersistentLSN() types.LSN { return lm.persistentLsn }
func (lm *LogManager) IsEnabledLogging() bool      { return lm.isEnableLogging }
func (lm *LogManager) ActivateLogging()            { lm.isEnableLogging = true }
func (lm *LogManager) DeactivateLogging()          { lm.isEnableLogging = false }

// Flush writes the buffered records to the log file.
// buffers are swapped under the latch so appenders are blocked only for
// the swap, not for the file write
func (lm *LogManager) Flush() {
	if !lm.isEnableLogging {
		return
	}

	lm.wlogMutex.Lock()
	lm.latch.WLock()

	lsn := lm.logBufferLsn
	offset := lm.offset
	lm.offset = 0

	tmp := lm.flushBuffer
	lm.flushBuffer = lm.logBuffer
	lm.logBuffer = tmp

	lm.latch.WUnlock()

	// nothing buffered means nothing became durable, so persistentLsn
	// must not move
	if offset > 0 {
		err := lm.diskManager.WriteLog(lm.flushBuffer[:offset])
		if err != nil {
			common.ShPrintf(common.ERROR, "LogManager::Flush: log write failed: %v\n", err)
		}
		lm.persistentLsn = lsn
	}
	lm.wlogMutex.Unlock()
}

// AppendLogRecord assigns the record an LSN and copies its serialized form
// to the log buffer. a full buffer is flushed first
func (lm *LogManager) AppendLogRecord(logRecord *LogRecord) types.LSN {
	if !lm.isEnableLogging {
		return common.InvalidLSN
	}

	lm.latch.WLock()

	if lm.offset+logRecord.Size > uint32(len(lm.logBuffer)) {
		lm.latch.WUnlock()
		lm.Flush()
		lm.latch.WLock()
	}

	logRecord.Lsn = lm.nextLsn
	lm.nextLsn += 1

	logData := logRecord.Serialize()
	copy(lm.logBuffer[lm.offset:], logData)
	lm.offset += logRecord.Size
	lm.logBufferLsn = logRecord.Lsn

	lm.latch.WUnlock()
	return logRecord.Lsn
}
