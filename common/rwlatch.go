package common

import (
	"github.com/sasha-s/go-deadlock"
)

type ReaderWriterLatch interface {
	WLock()
	WUnlock()
	RLock()
	RUnlock()
}

// deadlock.RWMutex is a drop-in replacement of sync.RWMutex which
// aborts with a report when lock acquisition order can deadlock.
// detection is turned off unless EnableDebug is set (see latch.go)
type readerWriterLatch struct {
	mutex *deadlock.RWMutex
}

func NewRWLatch() ReaderWriterLatch {
	latch := readerWriterLatch{}
	latch.mutex = new(deadlock.RWMutex)

	return &latch
}

func (l *readerWriterLatch) WLock() {
	l.mutex.Lock()
}

func (l *readerWriterLatch) WUnlock() {
	l.mutex.Unlock()
}

func (l *readerWriterLatch) RLock() {
	l.mutex.RLock()
}

func (l *readerWriterLatch) RUnlock() {
	l.mutex.RUnlock()
}
