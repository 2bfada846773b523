package common

import "time"

var LogTimeout time.Duration

const EnableDebug bool = false

// use on memory virtual storage or not
const EnableOnMemStorage = true

const (
	// invalid log sequence number
	InvalidLSN = -1
	// size of a data page in byte
	PageSize = 4096
	// default history depth of the LRU-K replacer
	LRUKReplacerK = 2
	// upper bound of buffer pool frames used on tests
	BufferPoolMaxFrameNumForTest = 32
	// number for calculate log buffer size (number of page size)
	LogBufferSizeBase = 128
	// size of a log buffer in byte
	LogBufferSize = (LogBufferSizeBase + 1) * PageSize

	LogLevelSetting = INFO
)
