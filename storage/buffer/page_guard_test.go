package buffer

import (
	"testing"

	testingpkg "github.com/shachidb/ShachiDB/testing/testing_assert"
)

func TestBasicPageGuard(t *testing.T) {
	bpm, dm := newTestBufferPoolManager(3)
	defer dm.ShutDown()

	guard, err := bpm.NewPageGuarded()
	testingpkg.Ok(t, err)
	pageID := guard.GetPageId()
	testingpkg.Equals(t, int32(1), guard.GetPage().PinCount())

	guard.GetData()[0] = 'x'
	guard.MarkDirty()
	guard.Drop()

	testingpkg.Equals(t, int32(0), guard.GetPage().PinCount())
	testingpkg.Assert(t, guard.GetPage().IsDirty(), "dropped dirty guard must mark the page dirty")

	// a second Drop must not unpin again
	guard.Drop()
	testingpkg.Assert(t, !bpm.UnpinPage(pageID, false), "guard must have released the only pin")
}

func TestReadWritePageGuards(t *testing.T) {
	bpm, dm := newTestBufferPoolManager(3)
	defer dm.ShutDown()

	basic, err := bpm.NewPageGuarded()
	testingpkg.Ok(t, err)
	pageID := basic.GetPageId()
	basic.Drop()

	wguard, err := bpm.FetchPageWrite(pageID)
	testingpkg.Ok(t, err)
	wguard.GetData()[0] = 'w'
	wguard.Drop()

	rguard, err := bpm.FetchPageRead(pageID)
	testingpkg.Ok(t, err)
	testingpkg.Equals(t, byte('w'), rguard.GetData()[0])
	rguard.Drop()
	rguard.Drop()

	// write guards always report the page as modified
	pg, err := bpm.FetchPage(pageID, AccessTypeLookup)
	testingpkg.Ok(t, err)
	testingpkg.Assert(t, pg.IsDirty(), "page modified through a write guard must be dirty")
	bpm.UnpinPage(pageID, false)
}
