package common

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Mutex is the exclusive latch used by the buffer pool manager and the
// replacer. with EnableDebug it detects latch ordering bugs and lockups,
// otherwise it behaves as a plain sync.Mutex.
type Mutex = deadlock.Mutex

func init() {
	if EnableDebug {
		deadlock.Opts.DeadlockTimeout = 20 * time.Second
	} else {
		deadlock.Opts.Disable = true
	}
}
