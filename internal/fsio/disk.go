package fsio

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskAvailable returns the free bytes on the filesystem containing path.
// It uses gopsutil instead of a raw syscall.Statfs so the receiver probes
// disk space the same way across every supported GOOS.
func DiskAvailable(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("checking disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}

// HasSpaceFor reports whether path's filesystem has at least needed bytes
// free.
func HasSpaceFor(path string, needed uint64) (bool, error) {
	free, err := DiskAvailable(path)
	if err != nil {
		return false, err
	}
	return free >= needed, nil
}
