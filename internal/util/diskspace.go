package util

import "github.com/dustin/go-humanize"

type DiskSpaceInfo struct {
	AvailBytes uint64  `json:"availBytes"`
	TotalBytes uint64  `json:"totalBytes"`
	AvailGB    float64 `json:"availGB"`
	TotalGB    float64 `json:"totalGB"`
	UsedGB     float64 `json:"usedGB"`
}

func newDiskSpaceInfo(avail, total uint64) DiskSpaceInfo {
	const gb = 1024 * 1024 * 1024
	availGB := float64(avail) / gb
	totalGB := float64(total) / gb
	return DiskSpaceInfo{
		AvailBytes: avail,
		TotalBytes: total,
		AvailGB:    availGB,
		TotalGB:    totalGB,
		UsedGB:     totalGB - availGB,
	}
}

// String renders e.g. "12 GiB free of 50 GiB".
func (d DiskSpaceInfo) String() string {
	return humanize.IBytes(d.AvailBytes) + " free of " + humanize.IBytes(d.TotalBytes)
}
