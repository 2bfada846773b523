package buffer

import (
	"github.com/ncw/directio"
	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/errors"
	"github.com/shachidb/ShachiDB/recovery"
	"github.com/shachidb/ShachiDB/storage/disk"
	"github.com/shachidb/ShachiDB/storage/page"
	"github.com/shachidb/ShachiDB/types"
)

// ErrOutOfFrames is returned when neither the free list nor the replacer can
// produce a frame. recoverable: release pins elsewhere and retry
const ErrOutOfFrames = errors.Error("no free frame and no evictable frame in the buffer pool")

// BufferPoolManager stages disk pages on a fixed set of in-memory frames.
// all frame/page bookkeeping is guarded by one exclusive latch; the latch is
// released around disk reads and writes so one slow I/O does not serialize
// unrelated traffic
type BufferPoolManager struct {
	diskManager disk.DiskManager
	pages       []*page.Page // index is FrameID
	replacer    *LRUKReplacer
	freeList    []FrameID
	pageTable   map[types.PageID]FrameID
	logManager  *recovery.LogManager
	mutex       common.Mutex
}

// NewBufferPoolManager returns an empty buffer pool manager with poolSize
// frames and an LRU-K replacer of history depth replacerK
func NewBufferPoolManager(poolSize uint32, replacerK uint32, diskManager disk.DiskManager, logManager *recovery.LogManager) *BufferPoolManager {
	common.SH_Assert(poolSize > 0, "BufferPoolManager: poolSize must be positive")

	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
		pages[i] = nil
	}

	replacer := NewLRUKReplacer(poolSize, replacerK)
	return &BufferPoolManager{diskManager: diskManager, pages: pages, replacer: replacer, freeList: freeList, pageTable: make(map[types.PageID]FrameID), logManager: logManager}
}

// FetchPage fetches the requested page from the buffer pool, reading it from
// disk when it is not resident
func (b *BufferPoolManager) FetchPage(pageID types.PageID, accessType AccessType) (*page.Page, error) {
	b.mutex.Lock()
	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.RecordAccess(frameID, accessType)
		b.replacer.SetEvictable(frameID, false)
		b.mutex.Unlock()
		return pg, nil
	}

	frameID, err := b.acquireFrame()
	if err != nil {
		b.mutex.Unlock()
		return nil, err
	}

	// the frame is not reachable from the page table yet, so the read can
	// happen with the latch released
	b.mutex.Unlock()
	data := directio.AlignedBlock(common.PageSize)
	err = b.diskManager.ReadPage(pageID, data)
	b.mutex.Lock()
	if err != nil {
		b.freeList = append(b.freeList, frameID)
		b.mutex.Unlock()
		return nil, err
	}

	// another caller may have loaded the page while the latch was released
	if residentFrameID, ok := b.pageTable[pageID]; ok {
		b.freeList = append(b.freeList, frameID)
		pg := b.pages[residentFrameID]
		pg.IncPinCount()
		b.replacer.RecordAccess(residentFrameID, accessType)
		b.replacer.SetEvictable(residentFrameID, false)
		b.mutex.Unlock()
		return pg, nil
	}

	var pageData [common.PageSize]byte
	copy(pageData[:], data)
	pg := page.New(pageID, false, &pageData)
	b.pageTable[pageID] = frameID
	b.pages[frameID] = pg
	b.replacer.RecordAccess(frameID, accessType)
	b.replacer.SetEvictable(frameID, false)
	b.mutex.Unlock()
	return pg, nil
}

// NewPage allocates a fresh page id and binds a zero filled page for it in
// the buffer pool. the returned page is pinned
func (b *BufferPoolManager) NewPage() (*page.Page, error) {
	b.mutex.Lock()
	frameID, err := b.acquireFrame()
	if err != nil {
		b.mutex.Unlock()
		return nil, err
	}

	pageID := b.diskManager.AllocatePage()
	pg := page.NewEmpty(pageID)

	b.pageTable[pageID] = frameID
	b.pages[frameID] = pg
	b.replacer.RecordAccess(frameID, AccessTypeUnknown)
	b.replacer.SetEvictable(frameID, false)

	if b.logManager.IsEnabledLogging() {
		b.logManager.AppendLogRecord(recovery.NewLogRecordPage(recovery.ALLOCATE_PAGE, pageID))
	}
	b.mutex.Unlock()

	return pg, nil
}

// UnpinPage unpins the target page from the buffer pool and ORs isDirty into
// its dirty flag. returns false when the page is not resident or its pin
// count is already zero
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}

	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		return false
	}

	pg.DecPinCount()
	if isDirty {
		pg.SetIsDirty(true)
	}

	if pg.PinCount() == 0 {
		b.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes the target page to disk regardless of its dirty flag and
// clears the flag. returns false when the page is not resident or the write
// fails
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.mutex.Lock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.mutex.Unlock()
		return false
	}

	// an extra pin keeps the frame from being victimized while the write
	// happens with the latch released
	pg := b.pages[frameID]
	pg.IncPinCount()
	b.replacer.SetEvictable(frameID, false)
	// cleared before the write so a concurrent modification re-dirties
	// the page instead of being masked by the flush
	pg.SetIsDirty(false)
	b.mutex.Unlock()

	pg.RLatch()
	data := pg.Data()
	err := b.diskManager.WritePage(pageID, data[:])
	pg.RUnlatch()

	b.mutex.Lock()
	pg.DecPinCount()
	if err != nil {
		pg.SetIsDirty(true)
	}
	if pg.PinCount() == 0 {
		b.replacer.SetEvictable(frameID, true)
	}
	b.mutex.Unlock()

	return err == nil
}

// FlushAllPages flushes every page resident in the buffer pool to disk
func (b *BufferPoolManager) FlushAllPages() {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID := range b.pageTable {
		pageIDs = append(pageIDs, pageID)
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		b.FlushPage(pageID)
	}
}

// FlushAllDirtyPages flushes all dirty pages in the buffer pool to disk
func (b *BufferPoolManager) FlushAllDirtyPages() bool {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID, frameID := range b.pageTable {
		if b.pages[frameID].IsDirty() {
			pageIDs = append(pageIDs, pageID)
		}
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		if !b.FlushPage(pageID) {
			return false
		}
	}
	return true
}

// DeletePage drops the target page from the buffer pool, returns its frame
// to the free list and deallocates the page id. returns false when the page
// is pinned. deleting a page which is not resident is a no-op success
func (b *BufferPoolManager) DeletePage(pageID types.PageID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return true
	}

	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		return false
	}

	delete(b.pageTable, pageID)
	err := b.replacer.Remove(frameID)
	common.SH_Assert(err == nil, "BPM::DeletePage: a page with zero pin count must be removable from the replacer")
	b.pages[frameID] = nil
	b.freeList = append(b.freeList, frameID)
	b.diskManager.DeallocatePage(pageID)

	if b.logManager.IsEnabledLogging() {
		b.logManager.AppendLogRecord(recovery.NewLogRecordPage(recovery.DEALLOCATE_PAGE, pageID))
	}
	return true
}

// GetPoolSize returns the number of frames of the pool
func (b *BufferPoolManager) GetPoolSize() uint32 {
	return uint32(len(b.pages))
}

// GetPages returns the frame array. index is FrameID
func (b *BufferPoolManager) GetPages() []*page.Page {
	return b.pages
}

// acquireFrame obtains an unbound frame, evicting a victim when the free
// list is empty. b.mutex must be held on entry and is held again on return;
// it is released while a dirty victim's content is written to disk.
// fails with ErrOutOfFrames when every frame is pinned
func (b *BufferPoolManager) acquireFrame() (FrameID, error) {
	for {
		if len(b.freeList) > 0 {
			frameID := b.freeList[0]
			b.freeList = b.freeList[1:]
			return frameID, nil
		}

		victimFrame := b.replacer.Evict()
		if victimFrame == nil {
			return InvalidFrameID, ErrOutOfFrames
		}
		frameID := *victimFrame

		victim := b.pages[frameID]
		if victim == nil {
			return frameID, nil
		}
		common.SH_Assert(victim.PinCount() == 0, "BPM::acquireFrame: pin count of page to be cached out must be zero")

		if !victim.IsDirty() {
			delete(b.pageTable, victim.GetPageId())
			b.pages[frameID] = nil
			return frameID, nil
		}

		// the victim stays in the page table and pinned while its content
		// goes to disk. concurrent fetches of the page keep hitting the
		// in-memory copy instead of racing the write-back. the dirty flag
		// is cleared up front so an unpin during the write re-dirties it
		victim.IncPinCount()
		victim.SetIsDirty(false)
		b.mutex.Unlock()

		b.logManager.Flush()
		victim.RLatch()
		data := victim.Data()
		err := b.diskManager.WritePage(victim.GetPageId(), data[:])
		victim.RUnlatch()

		b.mutex.Lock()
		victim.DecPinCount()

		if err != nil {
			victim.SetIsDirty(true)
			if victim.PinCount() == 0 {
				b.replacer.SetEvictable(frameID, true)
			}
			return InvalidFrameID, err
		}

		// another caller re-pinned or re-dirtied the victim during the
		// write. the page is live again, look for another frame
		if victim.PinCount() > 0 || victim.IsDirty() {
			if victim.PinCount() == 0 {
				b.replacer.SetEvictable(frameID, true)
			}
			continue
		}

		// a raced access during the write may have re-created the frame's
		// record, possibly still non evictable behind the guard pin. the
		// frame is reclaimed, so the record goes with it
		b.replacer.discard(frameID)
		delete(b.pageTable, victim.GetPageId())
		b.pages[frameID] = nil
		return frameID, nil
	}
}
