package disk

import (
	"github.com/shachidb/ShachiDB/types"
)

// DiskManager is responsible for interacting with disk
type DiskManager interface {
	// ReadPage reads the content of the page into pageData
	ReadPage(pageID types.PageID, pageData []byte) error
	// WritePage writes the content of pageData to the page's location
	WritePage(pageID types.PageID, pageData []byte) error
	// WriteLog appends the passed bytes to the log file
	WriteLog(logData []byte) error
	// AllocatePage assigns a page id which has never been handed out before
	AllocatePage() types.PageID
	// DeallocatePage marks the page id as released. the id is never reused
	DeallocatePage(pageID types.PageID)
	GetNumWrites() uint64
	GetLogFileSize() int64
	Size() int64
	ShutDown()
}
