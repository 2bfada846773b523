package buffer

import (
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	testingpkg "github.com/shachidb/ShachiDB/testing/testing_assert"
)

func recordAndMakeEvictable(t *testing.T, r *LRUKReplacer, frameID FrameID) {
	t.Helper()
	testingpkg.Ok(t, r.RecordAccess(frameID, AccessTypeLookup))
	testingpkg.Ok(t, r.SetEvictable(frameID, true))
}

func TestLRUKReplacerEvictOrder(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	// frame 1 gets a full k=2 history (timestamps 1 and 4), frames 2 and 3
	// stay under-saturated (timestamps 2 and 3)
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(2, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(3, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))

	testingpkg.Ok(t, r.SetEvictable(1, true))
	testingpkg.Ok(t, r.SetEvictable(2, true))
	testingpkg.Ok(t, r.SetEvictable(3, true))

	// the +inf frames win over frame 1's finite distance, oldest first
	victim := r.Evict()
	testingpkg.Assert(t, victim != nil, "a victim must exist")
	testingpkg.Equals(t, FrameID(2), *victim)

	victim = r.Evict()
	testingpkg.Equals(t, FrameID(3), *victim)

	victim = r.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)

	testingpkg.Assert(t, r.Evict() == nil, "no evictable frame must remain")
	testingpkg.Equals(t, uint32(0), r.Size())
}

func TestLRUKReplacerUnderSaturatedAlwaysPreferred(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// frame 0 saturates its history long before frame 1 is touched once.
	// the under-saturated frame must still be the victim
	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))

	testingpkg.Ok(t, r.SetEvictable(0, true))
	testingpkg.Ok(t, r.SetEvictable(1, true))

	victim := r.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
	victim = r.Evict()
	testingpkg.Equals(t, FrameID(0), *victim)
}

func TestLRUKReplacerFiniteDistanceOrder(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// interleaved accesses: frame 1 [1,3], frame 2 [2,4]. both saturated,
	// frame 1 has the larger backward k-distance
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(2, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(2, AccessTypeLookup))

	testingpkg.Ok(t, r.SetEvictable(1, true))
	testingpkg.Ok(t, r.SetEvictable(2, true))

	victim := r.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
	victim = r.Evict()
	testingpkg.Equals(t, FrameID(2), *victim)
}

func TestLRUKReplacerHistoryWindowSlides(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// frame 1 touched at 1,2,5 -> window [2,5]. frame 2 touched at 3,4 ->
	// window [3,4]. frame 1's k-th most recent access (2) is older
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(2, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(2, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))

	testingpkg.Ok(t, r.SetEvictable(1, true))
	testingpkg.Ok(t, r.SetEvictable(2, true))

	victim := r.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
}

func TestLRUKReplacerSetEvictableUntrackedFrame(t *testing.T) {
	r := NewLRUKReplacer(10, 2)

	// marking an untracked frame evictable starts tracking it
	testingpkg.Ok(t, r.SetEvictable(5, true))
	testingpkg.Equals(t, uint32(1), r.Size())

	victim := r.Evict()
	testingpkg.Equals(t, FrameID(5), *victim)
	testingpkg.Equals(t, uint32(0), r.Size())

	// marking an untracked frame non evictable changes nothing
	testingpkg.Ok(t, r.SetEvictable(7, false))
	testingpkg.Equals(t, uint32(0), r.Size())
}

func TestLRUKReplacerInvalidFrame(t *testing.T) {
	r := NewLRUKReplacer(10, 2)

	testingpkg.Equals(t, ErrInvalidFrame, r.RecordAccess(10, AccessTypeLookup))
	testingpkg.Equals(t, ErrInvalidFrame, r.SetEvictable(10, true))
	testingpkg.Equals(t, ErrInvalidFrame, r.Remove(10))
	testingpkg.Equals(t, uint32(0), r.Size())
}

func TestLRUKReplacerRemove(t *testing.T) {
	r := NewLRUKReplacer(10, 2)

	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeLookup))

	// a tracked but non evictable frame must not be removable
	testingpkg.Equals(t, ErrNotEvictable, r.Remove(0))

	testingpkg.Ok(t, r.SetEvictable(0, true))
	testingpkg.Ok(t, r.Remove(0))
	testingpkg.Equals(t, uint32(0), r.Size())

	// removing an untracked frame is silently accepted
	testingpkg.Ok(t, r.Remove(3))
}

func TestLRUKReplacerSizeConservation(t *testing.T) {
	r := NewLRUKReplacer(10, 3)

	for i := FrameID(0); i < 5; i++ {
		recordAndMakeEvictable(t, r, i)
	}
	testingpkg.Equals(t, uint32(5), r.Size())

	// idempotent toggles must not drift the count
	testingpkg.Ok(t, r.SetEvictable(0, true))
	testingpkg.Equals(t, uint32(5), r.Size())
	testingpkg.Ok(t, r.SetEvictable(0, false))
	testingpkg.Ok(t, r.SetEvictable(0, false))
	testingpkg.Equals(t, uint32(4), r.Size())
	testingpkg.Ok(t, r.SetEvictable(0, true))
	testingpkg.Equals(t, uint32(5), r.Size())

	for i := 0; i < 5; i++ {
		before := r.Size()
		victim := r.Evict()
		testingpkg.Assert(t, victim != nil, "a victim must exist")
		testingpkg.Equals(t, before-1, r.Size())
	}
	testingpkg.Assert(t, r.Evict() == nil, "no evictable frame must remain")
}

func TestLRUKReplacerPinnedFrameNeverEvicted(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.SetEvictable(1, true))

	// frame 0 is pinned (never marked evictable) and must be skipped even
	// though it is the older one
	victim := r.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
	testingpkg.Assert(t, r.Evict() == nil, "pinned frame must not be evicted")
}

func TestLRUKReplacerIgnoreScans(t *testing.T) {
	r := NewLRUKReplacerWithIgnoreScans(10, 2)

	// scans advance the clock but leave frame 0's history empty
	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeScan))
	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeScan))
	testingpkg.Ok(t, r.RecordAccess(0, AccessTypeScan))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, r.RecordAccess(1, AccessTypeLookup))

	testingpkg.Ok(t, r.SetEvictable(0, true))
	testingpkg.Ok(t, r.SetEvictable(1, true))

	victim := r.Evict()
	testingpkg.Equals(t, FrameID(0), *victim)
	victim = r.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)

	// the default replacer counts scans as ordinary accesses
	rd := NewLRUKReplacer(10, 2)
	testingpkg.Ok(t, rd.RecordAccess(0, AccessTypeScan))
	testingpkg.Ok(t, rd.RecordAccess(0, AccessTypeScan))
	testingpkg.Ok(t, rd.RecordAccess(1, AccessTypeLookup))
	testingpkg.Ok(t, rd.SetEvictable(0, true))
	testingpkg.Ok(t, rd.SetEvictable(1, true))

	// frame 0 is saturated by the two scans, frame 1 is +inf
	victim = rd.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
}

func TestLRUKReplacerConcurrentAccess(t *testing.T) {
	const numFrames = 64
	r := NewLRUKReplacer(numFrames, 2)

	var wg sync.WaitGroup
	for th := 0; th < 8; th++ {
		wg.Add(1)
		go func(th int) {
			defer wg.Done()
			for i := th * 8; i < (th+1)*8; i++ {
				r.RecordAccess(FrameID(i), AccessTypeLookup)
				r.RecordAccess(FrameID(i), AccessTypeLookup)
				r.SetEvictable(FrameID(i), true)
			}
		}(th)
	}
	wg.Wait()

	testingpkg.Equals(t, uint32(numFrames), r.Size())

	// every frame must be evicted exactly once
	evicted := mapset.NewSet[FrameID]()
	for i := 0; i < numFrames; i++ {
		victim := r.Evict()
		testingpkg.Assert(t, victim != nil, "a victim must exist")
		testingpkg.Assert(t, !evicted.Contains(*victim), "frame %d evicted twice", *victim)
		evicted.Add(*victim)
	}
	testingpkg.Equals(t, numFrames, evicted.Cardinality())
	testingpkg.Assert(t, r.Evict() == nil, "no evictable frame must remain")
}
