package batch

import (
	"github.com/banshee-data/simsweep/internal/faults"
	"github.com/banshee-data/simsweep/internal/fsutil"
)

// Cleanup removes the transient run-config tree. A missing directory is not
// an error.
func Cleanup(fsys fsutil.FileSystem, dir string) error {
	if dir == "" || !fsys.Exists(dir) {
		return nil
	}
	if err := fsys.RemoveAll(dir); err != nil {
		return faults.New(faults.KindCleanup, "remove run configs", dir, err)
	}
	return nil
}
