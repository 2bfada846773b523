package disk

import (
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/types"
)

// DiskManagerImpl is the disk implementation of DiskManager
type DiskManagerImpl struct {
	db           *os.File
	fileName     string
	log          *os.File
	fileNameLog  string
	nextPageID   types.PageID
	numWrites    uint64
	size         int64
	numFlushes   uint64
	dbFileMutex  *sync.Mutex
	logFileMutex *sync.Mutex
}

// NewDiskManagerImpl returns a DiskManager instance backed by the passed db file
// and a log file placed next to it
func NewDiskManagerImpl(dbFilename string) DiskManager {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		log.Fatalln("can't open db file")
		return nil
	}

	periodIdx := strings.LastIndex(dbFilename, ".")
	logfnameBase := dbFilename[:periodIdx]
	logfname := logfnameBase + "." + "log"
	logfile, err := os.OpenFile(logfname, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		log.Fatalln("can't open log file")
		return nil
	}

	fileInfo, err := file.Stat()
	if err != nil {
		log.Fatalln("file info error")
		return nil
	}

	logFileInfo, err := logfile.Stat()
	if err != nil {
		log.Fatalln("file info error (log file)")
		return nil
	}

	logfile.Seek(logFileInfo.Size(), io.SeekStart)

	fileSize := fileInfo.Size()
	nPages := fileSize / common.PageSize

	nextPageID := types.PageID(0)
	if nPages > 0 {
		nextPageID = types.PageID(int32(nPages + 1))
	}

	return &DiskManagerImpl{file, dbFilename, logfile, logfname, nextPageID, 0, fileSize, 0, new(sync.Mutex), new(sync.Mutex)}
}

// ShutDown closes the database and log file
func (d *DiskManagerImpl) ShutDown() {
	d.dbFileMutex.Lock()
	d.db.Close()
	d.dbFileMutex.Unlock()
	d.logFileMutex.Lock()
	d.log.Close()
	d.logFileMutex.Unlock()
}

// WritePage writes a page to the database file
func (d *DiskManagerImpl) WritePage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	d.db.Seek(offset, io.SeekStart)
	bytesWritten, err := d.db.Write(pageData)
	if err != nil {
		return err
	}

	if bytesWritten != common.PageSize {
		return errors.New("bytes written not equals page size")
	}

	if offset >= d.size {
		d.size = offset + int64(bytesWritten)
	}

	d.numWrites += 1
	d.db.Sync()
	return nil
}

// ReadPage reads a page from the database file
func (d *DiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)

	fileInfo, err := d.db.Stat()
	if err != nil {
		return errors.New("file info error")
	}

	if offset > fileInfo.Size() {
		return errors.New("I/O error past end of file")
	}

	d.db.Seek(offset, io.SeekStart)

	bytesRead, err := d.db.Read(pageData)
	if err != nil {
		return errors.New("I/O error while reading")
	}

	if bytesRead < common.PageSize {
		// the page was allocated but never written. callers expect zeroes
		for i := bytesRead; i < common.PageSize; i++ {
			pageData[i] = 0
		}
	}
	return nil
}

// AllocatePage allocates a new page
// page ids increase monotonically and are never handed out twice
func (d *DiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage deallocates page
// disk space reclamation needs a bitmap in a header page for tracking pages.
// this does not actually need to do anything for now
func (d *DiskManagerImpl) DeallocatePage(pageID types.PageID) {
}

// GetNumWrites returns the number of disk writes
func (d *DiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the file in disk
func (d *DiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	return d.size
}

// ATTENTION: this method can be called after calling of ShutDown method
func (d *DiskManagerImpl) RemoveDBFile() {
	os.Remove(d.fileName)
}

// ATTENTION: this method can be called after calling of ShutDown method
func (d *DiskManagerImpl) RemoveLogFile() {
	os.Remove(d.fileNameLog)
}

/**
 * WriteLog writes the contents of the log buffer into the log file.
 * Only returns when sync is done, and only performs sequential write
 */
func (d *DiskManagerImpl) WriteLog(logData []byte) error {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.numFlushes += 1
	_, err := d.log.Write(logData)
	if err != nil {
		return err
	}
	// needs to flush to keep disk file in sync
	d.log.Sync()
	return nil
}

// GetLogFileSize returns current size of the log file
func (d *DiskManagerImpl) GetLogFileSize() int64 {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	fileInfo, err := d.log.Stat()
	if err != nil {
		return -1
	}

	return fileInfo.Size()
}
