package buffer

import (
	"math"

	"github.com/shachidb/ShachiDB/common"
	"github.com/shachidb/ShachiDB/errors"
)

// FrameID is the type for frame id
type FrameID uint32

const InvalidFrameID FrameID = math.MaxUint32

// AccessType tags what kind of page access is being recorded.
// the replacer may treat full scans specially (see ignoreScans)
type AccessType int32

const (
	AccessTypeUnknown AccessType = iota
	AccessTypeLookup
	AccessTypeScan
	AccessTypeIndex
)

const (
	// ErrInvalidFrame is returned when a frame id beyond the replacer capacity is passed
	ErrInvalidFrame = errors.Error("frame id is out of the range the replacer tracks")
	// ErrNotEvictable is returned when Remove targets a tracked frame which is not evictable
	ErrNotEvictable = errors.Error("frame is tracked but not evictable")
)

// lruKNode keeps the access bookkeeping of one tracked frame.
// history holds up to k logical timestamps, oldest at the front
type lruKNode struct {
	history   []uint64
	evictable bool
}

// backKTimestamp is the timestamp of the k-th most recent access when the
// history is saturated, otherwise the oldest recorded one. an untouched
// frame reports 0 so it loses every recency comparison
func (n *lruKNode) backKTimestamp() uint64 {
	if len(n.history) == 0 {
		return 0
	}
	return n.history[0]
}

/**
 * LRUKReplacer implements the LRU-K replacement policy.
 *
 * The LRU-K algorithm evicts the frame whose backward k-distance is the maximum
 * of all evictable frames. Backward k-distance is computed as the difference in
 * time between the current timestamp and the timestamp of the k-th previous access.
 *
 * A frame with fewer than k recorded accesses is given +inf as its backward
 * k-distance. When several frames have +inf backward k-distance, classic LRU
 * (smallest oldest-access timestamp) picks the victim among them.
 */
type LRUKReplacer struct {
	nodeStore        map[FrameID]*lruKNode
	currentTimestamp uint64
	currSize         uint32
	numFrames        uint32
	k                uint32
	ignoreScans      bool
	mutex            common.Mutex
}

// NewLRUKReplacer instantiates a replacer which can track frames [0, numFrames)
// with history depth k
func NewLRUKReplacer(numFrames uint32, k uint32) *LRUKReplacer {
	common.SH_Assert(numFrames > 0, "LRUKReplacer: numFrames must be positive")
	common.SH_Assert(k > 0, "LRUKReplacer: k must be positive")
	return &LRUKReplacer{nodeStore: make(map[FrameID]*lruKNode), numFrames: numFrames, k: k}
}

// NewLRUKReplacerWithIgnoreScans additionally makes scan type accesses
// advance the logical clock without entering any frame's history, so one
// sequential sweep does not look like reuse to the policy
func NewLRUKReplacerWithIgnoreScans(numFrames uint32, k uint32) *LRUKReplacer {
	ret := NewLRUKReplacer(numFrames, k)
	ret.ignoreScans = true
	return ret
}

// RecordAccess records that the frame has been accessed at the current
// logical timestamp. The first access of a frame creates its bookkeeping
// entry in non evictable state
func (r *LRUKReplacer) RecordAccess(frameID FrameID, accessType AccessType) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if uint32(frameID) >= r.numFrames {
		return ErrInvalidFrame
	}

	r.currentTimestamp++

	node, ok := r.nodeStore[frameID]
	if !ok {
		node = &lruKNode{}
		r.nodeStore[frameID] = node
	}

	if r.ignoreScans && accessType == AccessTypeScan {
		return nil
	}

	node.history = append(node.history, r.currentTimestamp)
	if uint32(len(node.history)) > r.k {
		node.history = node.history[1:]
	}
	return nil
}

// SetEvictable toggles whether a frame may be chosen as a victim and keeps
// the evictable count in sync. Setting an untracked frame evictable creates
// its entry; setting an untracked frame non evictable is a no-op
func (r *LRUKReplacer) SetEvictable(frameID FrameID, setEvictable bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if uint32(frameID) >= r.numFrames {
		return ErrInvalidFrame
	}

	node, ok := r.nodeStore[frameID]
	if !ok {
		if !setEvictable {
			return nil
		}
		node = &lruKNode{}
		r.nodeStore[frameID] = node
	}

	if node.evictable != setEvictable {
		if setEvictable {
			r.currSize++
		} else {
			r.currSize--
		}
		node.evictable = setEvictable
	}
	return nil
}

// Evict selects the evictable frame with the largest backward k-distance,
// erases its access history and returns its id. nil is returned when no
// frame is evictable.
//
// A frame with fewer than k accesses (+inf distance) always wins over any
// frame with a saturated history, however old that one's k-th access is.
// Ties inside the +inf group fall back to LRU on the oldest recorded access,
// ties on a finite distance go to the smaller frame id
func (r *LRUKReplacer) Evict() *FrameID {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currSize == 0 {
		return nil
	}

	victim := InvalidFrameID
	victimIsInf := false
	var victimInfFront uint64
	var victimDistance uint64

	for frameID, node := range r.nodeStore {
		if !node.evictable {
			continue
		}

		if uint32(len(node.history)) < r.k {
			front := node.backKTimestamp()
			if !victimIsInf {
				victimIsInf = true
				victim = frameID
				victimInfFront = front
				continue
			}
			if front < victimInfFront || (front == victimInfFront && frameID < victim) {
				victim = frameID
				victimInfFront = front
			}
			continue
		}

		if victimIsInf {
			continue
		}

		distance := r.currentTimestamp - node.backKTimestamp()
		if victim == InvalidFrameID || distance > victimDistance || (distance == victimDistance && frameID < victim) {
			victim = frameID
			victimDistance = distance
		}
	}

	common.SH_Assert(victim != InvalidFrameID, "LRUKReplacer::Evict: currSize > 0 but no evictable frame found")

	delete(r.nodeStore, victim)
	r.currSize--

	ret := victim
	return &ret
}

// Remove erases the bookkeeping of the given frame regardless of its
// backward k-distance. Distinct from Evict in that the caller picks the
// frame. Untracked frames are silently accepted; a tracked but pinned
// frame is a caller bug and is rejected
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if uint32(frameID) >= r.numFrames {
		return ErrInvalidFrame
	}

	node, ok := r.nodeStore[frameID]
	if !ok {
		return nil
	}
	if !node.evictable {
		return ErrNotEvictable
	}

	delete(r.nodeStore, frameID)
	r.currSize--
	return nil
}

// discard erases the frame's bookkeeping whatever its evictable state.
// used by the buffer pool when a frame is reclaimed after a raced access
// left a fresh, possibly non evictable record behind
func (r *LRUKReplacer) discard(frameID FrameID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	node, ok := r.nodeStore[frameID]
	if !ok {
		return
	}
	if node.evictable {
		r.currSize--
	}
	delete(r.nodeStore, frameID)
}

// Size returns the number of evictable frames
func (r *LRUKReplacer) Size() uint32 {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.currSize
}
