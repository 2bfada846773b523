package disk

import (
	"errors"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/types"
)

// VirtualDiskManagerImpl keeps the whole "disk" on memory.
// it exists for tests and for EnableOnMemStorage setups where
// persistence across restarts is not needed
type VirtualDiskManagerImpl struct {
	db           *memfile.File
	fileName     string
	log          *memfile.File
	fileNameLog  string
	nextPageID   types.PageID
	numWrites    uint64
	size         int64
	numFlushes   uint64
	deallocedIDs mapset.Set[types.PageID]
	dbFileMutex  *sync.Mutex
	logFileMutex *sync.Mutex
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))
	logfile := memfile.New(make([]byte, 0))

	return &VirtualDiskManagerImpl{file, dbFilename, logfile, dbFilename + ".log", types.PageID(0), 0, int64(0), 0, mapset.NewSet[types.PageID](), new(sync.Mutex), new(sync.Mutex)}
}

// ShutDown has nothing to close
func (d *VirtualDiskManagerImpl) ShutDown() {
}

// WritePage writes a page to the memory backed db file
func (d *VirtualDiskManagerImpl) WritePage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	d.db.WriteAt(pageData, offset)

	if offset >= d.size {
		d.size = offset + int64(len(pageData))
	}

	d.numWrites += 1
	return nil
}

// ReadPage reads a page from the memory backed db file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if d.deallocedIDs.Contains(pageID) {
		return types.DeallocatedPageErr
	}

	offset := int64(pageID) * int64(common.PageSize)

	if offset > d.size || offset+int64(len(pageData)) > d.size {
		return errors.New("I/O error past end of file")
	}

	_, err := d.db.ReadAt(pageData, offset)
	return err
}

// AllocatePage allocates a new page
func (d *VirtualDiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage records the page id as released.
// subsequent reads of the id fail with DeallocatedPageErr
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	d.deallocedIDs.Add(pageID)
}

// GetNumWrites returns the number of page writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the db content
func (d *VirtualDiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	return d.size
}

// WriteLog appends the contents of the log buffer to the memory backed log file
func (d *VirtualDiskManagerImpl) WriteLog(logData []byte) error {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.numFlushes += 1
	fileSize := int64(len(d.log.Bytes()))
	_, err := d.log.WriteAt(logData, fileSize)
	return err
}

// GetLogFileSize returns current size of the log content
func (d *VirtualDiskManagerImpl) GetLogFileSize() int64 {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	return int64(len(d.log.Bytes()))
}
