//go:build !windows

package util

import (
	"syscall"
)

func GetDiskSpace(path string) (DiskSpaceInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return DiskSpaceInfo{}, err
	}
	return newDiskSpaceInfo(stat.Bavail*uint64(stat.Bsize), stat.Blocks*uint64(stat.Bsize)), nil
}
