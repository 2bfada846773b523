package buffer

import (
	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/storage/page"
	"github.com/shachidb/ShachiDB/types"
)

// BasicPageGuard ties the lifetime of a pin to a value with an explicit
// Drop, so a caller cannot forget the matching unpin or unpin twice
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *page.Page
	isDirty bool
	dropped bool
}

func (g *BasicPageGuard) GetPage() *page.Page {
	return g.page
}

func (g *BasicPageGuard) GetPageId() types.PageID {
	return g.page.GetPageId()
}

func (g *BasicPageGuard) GetData() *[common.PageSize]byte {
	return g.page.Data()
}

// MarkDirty makes Drop report the page as modified
func (g *BasicPageGuard) MarkDirty() {
	g.isDirty = true
}

// Drop unpins the guarded page. calling Drop again is a no-op
func (g *BasicPageGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.bpm.UnpinPage(g.page.GetPageId(), g.isDirty)
}

// ReadPageGuard additionally holds the page read latch for its lifetime
type ReadPageGuard struct {
	guard BasicPageGuard
}

func (g *ReadPageGuard) GetPageId() types.PageID {
	return g.guard.GetPageId()
}

func (g *ReadPageGuard) GetData() *[common.PageSize]byte {
	return g.guard.GetData()
}

func (g *ReadPageGuard) Drop() {
	if g.guard.dropped {
		return
	}
	g.guard.page.RUnlatch()
	g.guard.Drop()
}

// WritePageGuard holds the page write latch for its lifetime and always
// reports the page dirty on Drop
type WritePageGuard struct {
	guard BasicPageGuard
}

func (g *WritePageGuard) GetPageId() types.PageID {
	return g.guard.GetPageId()
}

func (g *WritePageGuard) GetData() *[common.PageSize]byte {
	return g.guard.GetData()
}

func (g *WritePageGuard) Drop() {
	if g.guard.dropped {
		return
	}
	g.guard.page.WUnlatch()
	g.guard.Drop()
}

// NewPageGuarded allocates a new page as NewPage does and wraps it in a guard
func (b *BufferPoolManager) NewPageGuarded() (*BasicPageGuard, error) {
	pg, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	return &BasicPageGuard{bpm: b, page: pg}, nil
}

// FetchPageBasic fetches the page and wraps it in a guard without latching
func (b *BufferPoolManager) FetchPageBasic(pageID types.PageID) (*BasicPageGuard, error) {
	pg, err := b.FetchPage(pageID, AccessTypeUnknown)
	if err != nil {
		return nil, err
	}
	return &BasicPageGuard{bpm: b, page: pg}, nil
}

// FetchPageRead fetches the page and returns it read latched
func (b *BufferPoolManager) FetchPageRead(pageID types.PageID) (*ReadPageGuard, error) {
	pg, err := b.FetchPage(pageID, AccessTypeLookup)
	if err != nil {
		return nil, err
	}
	pg.RLatch()
	return &ReadPageGuard{guard: BasicPageGuard{bpm: b, page: pg}}, nil
}

// FetchPageWrite fetches the page and returns it write latched
func (b *BufferPoolManager) FetchPageWrite(pageID types.PageID) (*WritePageGuard, error) {
	pg, err := b.FetchPage(pageID, AccessTypeLookup)
	if err != nil {
		return nil, err
	}
	pg.WLatch()
	return &WritePageGuard{guard: BasicPageGuard{bpm: b, page: pg, isDirty: true}}, nil
}
