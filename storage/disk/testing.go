package disk

import (
	"os"

	"github.com/shachidb/ShachiDB/common"
)

// DiskManagerTest is the disk implementation of DiskManager for testing purposes
type DiskManagerTest struct {
	path string
	DiskManager
}

// NewDiskManagerTest returns a DiskManager instance for testing purposes
func NewDiskManagerTest() DiskManager {
	if common.EnableOnMemStorage {
		return NewVirtualDiskManagerImpl("test.db")
	}

	// Retrieve a temporary path.
	f, err := os.CreateTemp("", "shachi-*.db")
	if err != nil {
		panic(err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path)

	diskManager := NewDiskManagerImpl(path)
	return &DiskManagerTest{path, diskManager}
}

// ShutDown closes of the database file
func (d *DiskManagerTest) ShutDown() {
	defer os.Remove(d.path)
	d.DiskManager.ShutDown()
}
